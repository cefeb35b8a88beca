package teleprompt

import (
	"math/rand"

	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/program"
)

// DropWorst drops the single lowest-scoring demo from the source
// program without adding a new one. It exists so the strategy
// registry has more than one registrant to dispatch across
// (SPEC_FULL.md §5): registered after AppendDemo, it only fires when
// AppendDemo skips (e.g. the bucket's best trajectory is below the
// quality threshold) but the source program still carries demos worth
// pruning.
type DropWorst struct{}

func (DropWorst) Name() string { return "drop_worst" }

// Apply implements Strategy.
func (DropWorst) Apply(bucket *Bucket, source program.Module, sourceIndex int, rng *rand.Rand, opts StrategyOptions) (*Candidate, SkipReason) {
	if bucket == nil || len(bucket.Trajectories) == 0 {
		return nil, SkipEmptyBucket
	}

	demos := source.Demos()
	if len(demos) == 0 {
		return nil, SkipNoDemosToDrop
	}

	worst := 0
	worstScore := demoScore(demos[0])
	for i := 1; i < len(demos); i++ {
		s := demoScore(demos[i])
		if s <= worstScore {
			worst = i
			worstScore = s
		}
	}

	kept := make([]*primitives.Demo, 0, len(demos)-1)
	for i, demo := range demos {
		if i != worst {
			kept = append(kept, demo)
		}
	}

	return &Candidate{Program: source.WithDemos(kept), SourceProgramIndex: sourceIndex, Strategy: "drop_worst"}, ""
}

// demoScore reads the origin_score metadata AppendDemo attaches,
// defaulting to 1.0 for demos that never went through a strategy
// (e.g. seeded up front) so they are the last candidates dropped.
func demoScore(demo *primitives.Demo) float64 {
	if demo.Metadata == nil {
		return 1.0
	}
	if v, ok := demo.Metadata["origin_score"]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 1.0
}

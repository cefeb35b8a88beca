package teleprompt

import (
	"math"
	"math/rand"

	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/program"
)

// DefaultQualityThreshold is AppendDemo's default applicability gate.
const DefaultQualityThreshold = 0.7

// AppendDemo distills the best trajectory in a viable bucket into a
// new demo, Poisson-drops some of the source program's existing
// demos, and puts the new one in front of the survivors, capped at
// MaxDemos total.
type AppendDemo struct{}

func (AppendDemo) Name() string { return "append_demo" }

// Apply implements Strategy.
func (AppendDemo) Apply(bucket *Bucket, source program.Module, sourceIndex int, rng *rand.Rand, opts StrategyOptions) (*Candidate, SkipReason) {
	if bucket == nil || len(bucket.Trajectories) == 0 {
		return nil, SkipEmptyBucket
	}

	threshold := opts.QualityThreshold
	if threshold == 0 {
		threshold = DefaultQualityThreshold
	}

	best := bucket.Trajectories[0]
	if best.Score < threshold {
		return nil, SkipBelowQualityThreshold
	}

	demo := buildDemo(best, opts.DemoInputFieldMaxLen, rng)
	if demo == nil {
		return nil, SkipDemoConstructionFailed
	}

	kept := dropDemos(rng, source.Demos(), opts.MaxDemos)
	newDemos := append([]*primitives.Demo{demo}, kept...)
	if opts.MaxDemos > 0 && len(newDemos) > opts.MaxDemos {
		newDemos = newDemos[:opts.MaxDemos]
	}

	candidate := source.WithDemos(newDemos)
	if opts.EnableInstructionDrift {
		candidate = candidate.WithInstruction(driftedInstruction(candidate.Signature().Instructions))
	}

	return &Candidate{Program: candidate, SourceProgramIndex: sourceIndex, Strategy: "append_demo"}, ""
}

// buildDemo stamps the new demo's "created_at" from rng rather than
// wall-clock time: the loop's rng is seeded once per Compile run, so
// two runs sharing a seed (and a deterministic client) produce
// byte-identical metadata, not just identical Values (spec §8
// property 6).
func buildDemo(best *Trajectory, maxFieldBytes int, rng *rand.Rand) *primitives.Demo {
	if len(best.Inputs) == 0 {
		return nil
	}

	values := make(map[string]interface{}, len(best.Inputs)+len(best.Outputs))
	inputKeys := make([]string, 0, len(best.Inputs))
	for k, v := range best.Inputs {
		values[k] = v
		inputKeys = append(inputKeys, k)
	}
	for k, v := range best.Outputs {
		values[k] = v
	}

	demo := primitives.NewDemo(values, inputKeys, maxFieldBytes)
	return demo.WithMetadata(map[string]interface{}{
		"origin_score": best.Score,
		"created_at":   rng.Int63(),
		"strategy":     "append_demo",
	})
}

// dropDemos samples a Poisson-distributed drop count (Knuth's
// algorithm over rng) and removes that many demos uniformly at random
// without replacement, preserving the relative order of the survivors.
func dropDemos(rng *rand.Rand, demos []*primitives.Demo, maxDemos int) []*primitives.Demo {
	n := len(demos)
	if n == 0 {
		return demos
	}

	maxDemosTmp := maxDemos
	if maxDemosTmp < 1 {
		maxDemosTmp = 1
	}
	lambda := float64(n) / float64(maxDemosTmp)
	d := poissonSample(rng, lambda)
	if n >= maxDemosTmp && d < 1 {
		d = 1
	}
	if d > n {
		d = n
	}
	if d == 0 {
		return demos
	}

	drop := make(map[int]bool, d)
	for len(drop) < d {
		drop[rng.Intn(n)] = true
	}

	kept := make([]*primitives.Demo, 0, n-d)
	for i, demo := range demos {
		if !drop[i] {
			kept = append(kept, demo)
		}
	}
	return kept
}

// poissonSample draws from Poisson(lambda) via Knuth's algorithm. No
// third-party distribution library covers a single sampler this
// narrow, so it is hand-rolled rather than pulling one in.
func poissonSample(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= rng.Float64()
		if p <= l {
			break
		}
	}
	return k - 1
}

func driftedInstruction(base string) string {
	if base != "" {
		base += "\n"
	}
	return base + "Follow the style of the highest-scoring example above."
}

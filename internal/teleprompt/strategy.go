package teleprompt

import (
	"math/rand"

	"github.com/dspygo/simba/internal/program"
)

// SkipReason names why a strategy declined to produce a candidate
// from a bucket. It is not an error: the registry moves
// on to the next strategy, and drops the bucket only if every
// strategy skips.
type SkipReason string

const (
	SkipEmptyBucket            SkipReason = "empty_bucket"
	SkipBelowQualityThreshold  SkipReason = "below_quality_threshold"
	SkipDemoConstructionFailed SkipReason = "demo_construction_failed"
	SkipNoDemosToDrop          SkipReason = "no_demos_to_drop"
)

// Candidate is a program proposed by a strategy for a viable bucket,
// tagged with the pool index of the program it was derived from
// (glossary "Candidate").
type Candidate struct {
	Program            program.Module
	SourceProgramIndex int
	Strategy           string
}

// StrategyOptions configures every registered strategy uniformly.
type StrategyOptions struct {
	MaxDemos               int
	DemoInputFieldMaxLen   int
	QualityThreshold       float64
	EnableInstructionDrift bool
}

// Strategy transforms (bucket, source program) into a candidate
// program or a skip reason.
type Strategy interface {
	Name() string
	Apply(bucket *Bucket, source program.Module, sourceIndex int, rng *rand.Rand, opts StrategyOptions) (*Candidate, SkipReason)
}

// Registry applies its strategies in order against a bucket; the
// first to return a candidate wins.
type Registry struct {
	strategies []Strategy
}

// NewRegistry builds a registry trying strategies in the given order.
func NewRegistry(strategies ...Strategy) *Registry {
	return &Registry{strategies: strategies}
}

// Apply tries each registered strategy in order, returning the first
// candidate produced. ok is false if every strategy skipped.
func (r *Registry) Apply(bucket *Bucket, source program.Module, sourceIndex int, rng *rand.Rand, opts StrategyOptions) (*Candidate, bool) {
	for _, s := range r.strategies {
		candidate, reason := s.Apply(bucket, source, sourceIndex, rng, opts)
		if reason == "" {
			return candidate, true
		}
	}
	return nil, false
}

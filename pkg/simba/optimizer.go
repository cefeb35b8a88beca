// Package simba is the public API of the prompt-program optimizer:
// construct an Optimizer with functional options, then Compile a
// student program against a trainset and metric. The options pattern
// is value-typed rather than a global mutable settings singleton, so
// multiple Compile runs with different configs can coexist in one
// process.
package simba

import (
	"context"
	"math/rand"

	"github.com/dspygo/simba/internal/evaluate"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/program"
	"github.com/dspygo/simba/internal/teleprompt"
	"github.com/dspygo/simba/pkg/simba/telemetry"
)

// Optimizer holds a resolved Config and runs the SIMBA loop against
// it. The zero value is usable: New() with no options reproduces the
// canonical SIMBA defaults that teleprompt.Config applies.
type Optimizer struct {
	cfg teleprompt.Config
}

// Option configures an Optimizer at construction time.
type Option func(*teleprompt.Config)

// New builds an Optimizer, applying opts over the zero Config (which
// teleprompt.Compile fills out to its defaults on first use).
func New(opts ...Option) *Optimizer {
	var cfg teleprompt.Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Optimizer{cfg: cfg}
}

// WithBatchSize sets the per-step mini-batch size (default 32).
func WithBatchSize(n int) Option { return func(c *teleprompt.Config) { c.Bsize = n } }

// WithNumCandidates sets the number of model variants/top-programs/
// viable-buckets considered each step (default 6).
func WithNumCandidates(n int) Option { return func(c *teleprompt.Config) { c.NumCandidates = n } }

// WithMaxSteps sets the number of optimization steps (default 8). 0
// is a valid, intentional value: Compile returns the student
// unchanged.
func WithMaxSteps(n int) Option {
	return func(c *teleprompt.Config) { c.MaxSteps = &n }
}

// WithMaxDemos caps the number of demos any candidate program carries
// (default 4).
func WithMaxDemos(n int) Option { return func(c *teleprompt.Config) { c.MaxDemos = n } }

// WithDemoInputFieldMaxLen caps the byte length a demo's string fields
// are truncated to on construction (default 100000).
func WithDemoInputFieldMaxLen(n int) Option {
	return func(c *teleprompt.Config) { c.DemoInputFieldMaxLen = n }
}

// WithStrategies overrides the default AppendDemo/DropWorst registry.
func WithStrategies(registry *teleprompt.Registry) Option {
	return func(c *teleprompt.Config) { c.Strategies = registry }
}

// WithTemperatures sets the softmax temperatures used for trajectory
// source-program sampling and candidate source-program sampling
// (default 0.2 each).
func WithTemperatures(sampling, candidates float64) Option {
	return func(c *teleprompt.Config) {
		c.TemperatureForSampling = sampling
		c.TemperatureForCandidates = candidates
	}
}

// WithNumThreads bounds trajectory-sampling concurrency (default 20).
func WithNumThreads(n int) Option { return func(c *teleprompt.Config) { c.NumThreads = n } }

// WithCorrelationID tags every telemetry event this Optimizer emits.
func WithCorrelationID(id string) Option {
	return func(c *teleprompt.Config) { c.CorrelationID = id }
}

// WithMonitor attaches a telemetry.Monitor (default: NoOpMonitor).
func WithMonitor(m telemetry.Monitor) Option { return func(c *teleprompt.Config) { c.Monitor = m } }

// WithProgressCallback attaches a callback fired at each step
// boundary; panics inside it are recovered and swallowed.
func WithProgressCallback(fn func(step int, phase string)) Option {
	return func(c *teleprompt.Config) { c.ProgressCallback = fn }
}

// WithCancel wires a cooperative cancellation channel, checked
// between steps only: closing it returns the best-so-far
// winner instead of running to MaxSteps.
func WithCancel(cancel <-chan struct{}) Option {
	return func(c *teleprompt.Config) { c.Cancel = cancel }
}

// WithRNG seeds the loop's own random source. Pairing a fixed seed
// with a deterministic client (clients.MockClient) makes Compile
// replay-deterministic.
func WithRNG(rng *rand.Rand) Option { return func(c *teleprompt.Config) { c.Rng = rng } }

// WithTopSelectionUsesUniformPlaceholder toggles the softmax base
// used in top-program selection. The default (false) uses observed
// per-program means; true reproduces the source material's
// uniform-0.5-placeholder behavior, flagged there as a likely bug.
func WithTopSelectionUsesUniformPlaceholder(v bool) Option {
	return func(c *teleprompt.Config) { c.TopSelectionUsesUniformPlaceholder = v }
}

// WithInstructionDrift enables AppendDemo's optional instruction
// rewrite alongside its demo append (off by default).
func WithInstructionDrift(v bool) Option {
	return func(c *teleprompt.Config) { c.EnableInstructionDrift = v }
}

// Compile runs the SIMBA loop and returns the best
// program found. teacher may be nil, in which case it defaults to
// student.
func (o *Optimizer) Compile(
	ctx context.Context,
	student program.Module,
	teacher program.Module,
	trainset []*primitives.Example,
	metric evaluate.Metric,
) (program.Module, error) {
	return teleprompt.Compile(ctx, student, teacher, trainset, metric, o.cfg)
}

// Compile is a convenience entry point for one-shot use: New(opts...)
// followed immediately by Compile, for callers who don't need to
// reuse an Optimizer across runs.
func Compile(
	ctx context.Context,
	student program.Module,
	teacher program.Module,
	trainset []*primitives.Example,
	metric evaluate.Metric,
	opts ...Option,
) (program.Module, error) {
	return New(opts...).Compile(ctx, student, teacher, trainset, metric)
}

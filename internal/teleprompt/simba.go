package teleprompt

import (
	"context"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/dspygo/simba/internal/evaluate"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/program"
	"github.com/dspygo/simba/internal/simbaerr"
	"github.com/dspygo/simba/pkg/simba/telemetry"
)

// Config configures one Compile run. Zero-valued fields
// fall back to the canonical SIMBA defaults in withDefaults.
type Config struct {
	Bsize         int
	NumCandidates int
	// MaxSteps is a pointer so the zero value (unset) can be told
	// apart from an explicit 0.
	MaxSteps                 *int
	MaxDemos                 int
	DemoInputFieldMaxLen     int
	Strategies               *Registry
	TemperatureForSampling   float64
	TemperatureForCandidates float64
	NumThreads               int
	CorrelationID            string
	Monitor                  telemetry.Monitor
	ProgressCallback         func(step int, phase string)
	// Cancel is checked between steps only; closing it makes Compile return the best-so-far
	// winner rather than continuing to MaxSteps.
	Cancel <-chan struct{}
	// Rng seeds the loop's own random source. Supplying a fixed-seed
	// *rand.Rand together with a deterministic client (MockClient)
	// makes Compile replay-deterministic.
	Rng *rand.Rand
	// TopSelectionUsesUniformPlaceholder governs the softmax base used
	// in top-program selection. The field is phrased so its zero value
	// is the recommended default: false uses observed per-program
	// means; true reproduces the source material's
	// uniform-0.5-placeholder behavior, flagged there as a likely bug
	// and kept only for compatibility.
	TopSelectionUsesUniformPlaceholder bool
	EnableInstructionDrift             bool
}

func (c Config) withDefaults() Config {
	if c.Bsize <= 0 {
		c.Bsize = 32
	}
	if c.NumCandidates <= 0 {
		c.NumCandidates = 6
	}
	if c.MaxDemos <= 0 {
		c.MaxDemos = 4
	}
	if c.DemoInputFieldMaxLen <= 0 {
		c.DemoInputFieldMaxLen = primitives.DefaultDemoMaxFieldBytes
	}
	if c.Strategies == nil {
		c.Strategies = NewRegistry(AppendDemo{}, DropWorst{})
	}
	if c.TemperatureForSampling <= 0 {
		c.TemperatureForSampling = 0.2
	}
	if c.TemperatureForCandidates <= 0 {
		c.TemperatureForCandidates = 0.2
	}
	if c.NumThreads <= 0 {
		c.NumThreads = 20
	}
	if c.Monitor == nil {
		c.Monitor = telemetry.NoOpMonitor{}
	}
	if c.Rng == nil {
		c.Rng = rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(os.Getpid())))
	}
	// MaxSteps defaults to 8 only if the caller never set it at all;
	// an explicit 0 runs zero steps.
	if c.MaxSteps == nil {
		eight := 8
		c.MaxSteps = &eight
	}
	return c
}

// Compile runs the SIMBA loop and returns the best program found, or
// the original student on every boundary condition (empty strategy
// registry, always-timing-out client, etc).
func Compile(ctx context.Context, student, teacher program.Module, trainset []*primitives.Example, metric evaluate.Metric, cfg Config) (program.Module, error) {
	if err := validateCompileInputs(student, trainset, metric); err != nil {
		return nil, err
	}
	if teacher == nil {
		teacher = student
	}
	// teacher is accepted for API parity with the compile signature
	// but the stochastic-ascent loop never calls it: the source
	// material never references teacher after the input list.
	_ = teacher

	cfg = cfg.withDefaults()

	start := time.Now()
	cfg.Monitor.OptimizerStart(len(trainset), cfg.CorrelationID)

	programs := []program.Module{student}
	programScores := map[int][]float64{0: {}}
	winners := []program.Module{student}

	dataIndices := cfg.Rng.Perm(len(trainset))

	cancelled := false
	for step := 0; step < *cfg.MaxSteps; step++ {
		select {
		case <-cfg.Cancel:
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		cfg.Monitor.IterationStart(step, cfg.CorrelationID)
		notifyProgress(cfg, step, "iteration_start")

		runStep(ctx, step, &programs, programScores, &winners, trainset, dataIndices, metric, cfg)

		cfg.Monitor.IterationStop(step, cfg.CorrelationID)
		notifyProgress(cfg, step, "iteration_stop")
	}

	best, err := finalSelection(ctx, winners, trainset, metric, cfg)
	success := err == nil
	reason := ""
	if cancelled {
		reason = "cancelled"
	}
	cfg.Monitor.OptimizerStop(time.Since(start), success, cfg.CorrelationID, reason)
	if err != nil {
		return nil, err
	}
	return best, nil
}

func validateCompileInputs(student program.Module, trainset []*primitives.Example, metric evaluate.Metric) error {
	if student == nil {
		return simbaerr.New(simbaerr.KindInvalidStudentProgram, "student program must not be nil")
	}
	if len(trainset) == 0 {
		return simbaerr.New(simbaerr.KindInvalidOrEmptyTrainset, "trainset must contain at least one example")
	}
	if metric == nil {
		return simbaerr.New(simbaerr.KindInvalidMetricFunction, "metric function must not be nil")
	}
	return nil
}

func notifyProgress(cfg Config, step int, phase string) {
	if cfg.ProgressCallback == nil {
		return
	}
	defer func() { recover() }()
	cfg.ProgressCallback(step, phase)
}

// runStep executes one full SIMBA step,
// mutating programs, programScores and winners in place.
func runStep(
	ctx context.Context,
	step int,
	programs *[]program.Module,
	programScores map[int][]float64,
	winners *[]program.Module,
	trainset []*primitives.Example,
	dataIndices []int,
	metric evaluate.Metric,
	cfg Config,
) {
	// 1. Batch selection, wrapping modulo |data_indices|.
	batch := selectBatch(trainset, dataIndices, step, cfg.Bsize)

	// 2. Model variant preparation.
	variants := modelVariants(cfg.NumCandidates)

	// 3. Top-program selection.
	topIndices := topProgramIndices(programScores, len(*programs), cfg.NumCandidates)

	// 4. Trajectory sampling.
	trajectories := sampleTrajectories(ctx, batch, variants, *programs, topIndices, programScores, metric, cfg)
	cfg.Monitor.TrajectorySampled(len(trajectories), cfg.CorrelationID)

	// 5. Bucket formation.
	buckets := FormBuckets(trajectories, len(variants))
	cfg.Monitor.BucketCreated(len(buckets), cfg.CorrelationID)

	// 6. Candidate generation.
	candidates := generateCandidates(buckets, *programs, programScores, cfg)
	cfg.Monitor.StrategyApplied(len(candidates), cfg.CorrelationID)
	if len(candidates) == 0 {
		return
	}

	// 7. Candidate evaluation.
	means := evaluateCandidates(ctx, candidates, batch, metric, cfg)

	// 8. Winner update.
	bestLocal := 0
	for i := 1; i < len(means); i++ {
		if means[i] > means[bestLocal] {
			bestLocal = i
		}
	}
	*winners = append([]program.Module{candidates[bestLocal].Program}, *winners...)

	// 9. Pool update.
	base := len(*programs)
	for i, c := range candidates {
		*programs = append(*programs, c.Program)
		programScores[base+i] = []float64{means[i]}
	}
}

func selectBatch(trainset []*primitives.Example, dataIndices []int, step, bsize int) []*primitives.Example {
	n := len(dataIndices)
	batch := make([]*primitives.Example, bsize)
	start := step * bsize
	for i := 0; i < bsize; i++ {
		batch[i] = trainset[dataIndices[(start+i)%n]]
	}
	return batch
}

// modelVariants produces numCandidates (temperature, model) pairs: the
// first at the base temperature 0.7, the rest perturbed, de-duplicated.
func modelVariants(numCandidates int) []ModelVariant {
	seen := make(map[int]bool, numCandidates)
	variants := make([]ModelVariant, 0, numCandidates)

	add := func(t float64) {
		key := int(t * 1e6)
		if seen[key] {
			return
		}
		seen[key] = true
		variants = append(variants, ModelVariant{Temperature: t})
	}

	add(0.7)
	for i := 1; i < numCandidates; i++ {
		add(0.5 + float64(i)*(0.5/float64(numCandidates)))
	}
	if len(variants) > numCandidates {
		variants = variants[:numCandidates]
	}
	return variants
}

type scoredProgram struct {
	index int
	mean  float64
}

// topProgramIndices computes each program's mean observed score
// (0.5 if it has none yet), sorts descending, and returns the top
// numCandidates indices with index 0 (the student) guaranteed present.
func topProgramIndices(programScores map[int][]float64, numPrograms, numCandidates int) []int {
	ranked := make([]scoredProgram, numPrograms)
	for i := 0; i < numPrograms; i++ {
		ranked[i] = scoredProgram{index: i, mean: meanScore(programScores[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].mean > ranked[j].mean })

	n := numCandidates
	if n > len(ranked) {
		n = len(ranked)
	}
	top := make([]int, n)
	for i := 0; i < n; i++ {
		top[i] = ranked[i].index
	}

	for _, idx := range top {
		if idx == 0 {
			return top
		}
	}
	top = append([]int{0}, top[:len(top)-1]...)
	return top
}

func meanScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

package teleprompt

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dspygo/simba/internal/evaluate"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/program"
	"github.com/dspygo/simba/internal/simbaerr"
)

// sampleTrajectories builds the batch x variants cross-product, softmax-
// samples a source program for each pair from topIndices, and executes
// program.Forward under bounded concurrency num_threads with a 30s
// per-task timeout. Timed-out tasks are silently
// dropped rather than retried this step.
func sampleTrajectories(
	ctx context.Context,
	batch []*primitives.Example,
	variants []ModelVariant,
	programs []program.Module,
	topIndices []int,
	programScores map[int][]float64,
	metric evaluate.Metric,
	cfg Config,
) []*Trajectory {
	type pair struct {
		exampleIdx int
		variantIdx int
	}
	pairs := make([]pair, 0, len(batch)*len(variants))
	for i := range batch {
		for v := range variants {
			pairs = append(pairs, pair{exampleIdx: i, variantIdx: v})
		}
	}

	topScores := make([]float64, len(topIndices))
	for i, idx := range topIndices {
		if cfg.TopSelectionUsesUniformPlaceholder {
			// Open Question #2: the source material's
			// uniform-0.5-placeholder behavior, preserved as an
			// opt-in compatibility mode.
			topScores[i] = 0.5
		} else {
			topScores[i] = meanScore(programScores[idx])
		}
	}

	// Every softmax draw for this step happens here, sequentially, in
	// pair order, before any worker goroutine starts. This is also
	// what makes replay deterministic under a fixed seed — fan-out
	// scheduling order never affects which source program a pair
	// gets.
	sourceIdx := make([]int, len(pairs))
	for j := range pairs {
		sourceIdx[j] = topIndices[SoftmaxSample(cfg.Rng, topScores, cfg.TemperatureForSampling)]
	}

	results := make([]*Trajectory, len(pairs))

	jobs := make(chan int, len(pairs))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			p := pairs[j]
			example := batch[p.exampleIdx]
			variant := variants[p.variantIdx]
			srcIdx := sourceIdx[j]
			src := programs[srcIdx]

			execID := p.exampleIdx*len(variants) + p.variantIdx

			taskCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			traj := runTrajectory(taskCtx, srcIdx, p.exampleIdx, execID, src, example, variant, metric)
			cancel()
			if traj == nil {
				continue // timed out; discarded
			}
			if traj.Err != nil {
				cfg.Monitor.Error(errorKind(traj.Err), traj.Err.Error(), cfg.CorrelationID)
			}
			results[j] = traj
		}
	}

	workers := cfg.NumThreads
	if workers > len(pairs) {
		workers = len(pairs)
	}
	if workers < 1 {
		workers = 1
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	for j := range pairs {
		jobs <- j
	}
	close(jobs)
	wg.Wait()

	out := make([]*Trajectory, 0, len(results))
	for _, t := range results {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func runTrajectory(ctx context.Context, programIdx, exampleIdx, execID int, mod program.Module, example *primitives.Example, variant ModelVariant, metric evaluate.Metric) *Trajectory {
	start := time.Now()
	opts := program.ExecOpts{Temperature: variant.Temperature, Model: variant.Model}

	pred, err := mod.Forward(ctx, example.Inputs(), opts)
	duration := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return nil
	}

	traj := &Trajectory{
		ProgramIndex: programIdx,
		ExampleIndex: exampleIdx,
		ExecID:       execID,
		ModelConfig:  variant,
		DurationNS:   duration.Nanoseconds(),
	}
	if err != nil {
		traj.Err = err
		traj.Score = 0.0
		traj.Success = false
		return traj
	}

	traj.Inputs = example.Inputs()
	traj.Outputs = pred.Fields()

	score, merr := metric(example, pred.Fields())
	if merr != nil {
		traj.Score = 0.0
		traj.Success = false
		traj.Err = simbaerr.Wrap(simbaerr.KindMetricError, "metric raised", merr)
		return traj
	}
	if !isFiniteScore(score) {
		traj.Score = 0.0
		traj.Success = false
		traj.Err = simbaerr.New(simbaerr.KindMetricError, "metric returned a non-finite value")
		return traj
	}
	traj.Score = clampUnit(score)
	traj.Success = true
	return traj
}

func isFiniteScore(s float64) bool {
	return !math.IsNaN(s) && !math.IsInf(s, 0)
}

func clampUnit(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// generateCandidates filters to viable buckets, takes the top
// num_candidates by the global bucket order, and for each runs the
// strategy registry against a softmax-sampled source program.
func generateCandidates(buckets []*Bucket, programs []program.Module, programScores map[int][]float64, cfg Config) []*Candidate {
	viable := make([]*Bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Viable() {
			viable = append(viable, b)
		}
	}
	if len(viable) > cfg.NumCandidates {
		viable = viable[:cfg.NumCandidates]
	}

	// Softmax-sample the source program from the full pool using
	// uniform 0.5 placeholders; this is independent of the
	// TopSelectionUsesUniformPlaceholder knob, which governs top-program
	// selection only.
	placeholderScores := make([]float64, len(programs))
	for i := range placeholderScores {
		placeholderScores[i] = 0.5
	}

	opts := StrategyOptions{
		MaxDemos:             cfg.MaxDemos,
		DemoInputFieldMaxLen: cfg.DemoInputFieldMaxLen,
		// QualityThreshold left zero: AppendDemo falls back to
		// DefaultQualityThreshold itself.
		EnableInstructionDrift: cfg.EnableInstructionDrift,
	}

	candidates := make([]*Candidate, 0, len(viable))
	for _, bucket := range viable {
		srcIdx := SoftmaxSample(cfg.Rng, placeholderScores, cfg.TemperatureForCandidates)
		src := programs[srcIdx]

		candidate, ok := cfg.Strategies.Apply(bucket, src, srcIdx, cfg.Rng, opts)
		if !ok {
			continue // every strategy skipped; drop the bucket
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

// evaluateCandidates runs each candidate over batch with bounded
// concurrency 10 and a 30s per-task timeout.
func evaluateCandidates(ctx context.Context, candidates []*Candidate, batch []*primitives.Example, metric evaluate.Metric, cfg Config) []float64 {
	means := make([]float64, len(candidates))
	var wg sync.WaitGroup
	sem := make(chan struct{}, 10)

	for i, c := range candidates {
		wg.Add(1)
		go func(i int, mod program.Module) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			result, err := evaluate.Evaluate(ctx, mod, batch, metric, evaluate.Options{
				MaxConcurrency: 10,
				TimeoutMS:      30_000,
			})
			if err != nil {
				cfg.Monitor.Error(string(simbaerr.KindOptimizationFailed), err.Error(), cfg.CorrelationID)
				means[i] = 0.0
				return
			}
			if result.Stats.Failures > 0 {
				cfg.Monitor.Error(string(simbaerr.KindMetricError),
					fmt.Sprintf("candidate %d: %d/%d examples failed", i, result.Stats.Failures, len(batch)),
					cfg.CorrelationID)
			}
			means[i] = result.Mean
		}(i, c.Program)
	}
	wg.Wait()
	return means
}

// errorKind names the telemetry kind for an absorbed trajectory/
// candidate error: the typed simbaerr.Kind when available, otherwise
// a generic execution-error label.
func errorKind(err error) string {
	var e *simbaerr.Error
	if stderrors.As(err, &e) {
		return string(e.Kind)
	}
	return "execution_error"
}

// finalSelection evaluates every winner on a uniform random subsample
// of min(50, |trainset|) examples (concurrency 5, 60s timeout per
// example) and returns the argmax, ties broken by earliest winners
// position. If every evaluation fails, returns winners[0] (the
// most recent winner, since winners are prepended).
func finalSelection(ctx context.Context, winners []program.Module, trainset []*primitives.Example, metric evaluate.Metric, cfg Config) (program.Module, error) {
	if len(winners) == 0 {
		return nil, nil
	}

	n := 50
	if n > len(trainset) {
		n = len(trainset)
	}
	perm := cfg.Rng.Perm(len(trainset))[:n]
	sample := make([]*primitives.Example, n)
	for i, idx := range perm {
		sample[i] = trainset[idx]
	}

	type scored struct {
		pos  int
		mean float64
		ok   bool
	}
	results := make([]scored, len(winners))
	var wg sync.WaitGroup
	for i, w := range winners {
		wg.Add(1)
		go func(i int, mod program.Module) {
			defer wg.Done()
			result, err := evaluate.Evaluate(ctx, mod, sample, metric, evaluate.Options{
				MaxConcurrency: 5,
				TimeoutMS:      60_000,
			})
			if err != nil {
				results[i] = scored{pos: i}
				return
			}
			results[i] = scored{pos: i, mean: result.Mean, ok: true}
		}(i, w)
	}
	wg.Wait()

	best := -1
	bestMean := 0.0
	for _, r := range results {
		if !r.ok {
			continue
		}
		if best == -1 || r.mean > bestMean {
			best = r.pos
			bestMean = r.mean
		}
	}
	if best == -1 {
		return winners[0], nil
	}
	return winners[best], nil
}

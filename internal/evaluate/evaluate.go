// Package evaluate implements a bounded-concurrency fan-out evaluator:
// run a program over a set of examples under a metric, with per-task
// timeout and failure isolation, using a jobs channel and a
// sync.WaitGroup worker pool that writes each score into its
// input-order slot.
package evaluate

import (
	"context"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/program"
)

// Metric scores a prediction against an example's labels, returning a
// value in [0, 1]. Values outside that range are clamped by callers.
type Metric func(example *primitives.Example, outputs map[string]interface{}) (float64, error)

// Options configures a single Evaluate call.
type Options struct {
	// MaxConcurrency bounds the number of in-flight forward calls.
	// Default: min(2*NumCPU, 20).
	MaxConcurrency int
	// TimeoutMS bounds each example's Forward call; the metric runs
	// after it without a deadline. Default: 30000.
	TimeoutMS int
	ExecOpts  program.ExecOpts
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = defaultMaxConcurrency()
	}
	if o.TimeoutMS <= 0 {
		o.TimeoutMS = 30_000
	}
	return o
}

func defaultMaxConcurrency() int {
	n := 2 * runtime.NumCPU()
	if n > 20 {
		return 20
	}
	if n < 1 {
		return 1
	}
	return n
}

// Stats summarizes one Evaluate call.
type Stats struct {
	Failures int
}

// Result is the evaluate(...) return value: per-example scores in
// input order, their mean, and failure counts.
type Result struct {
	Scores []float64
	Mean   float64
	Stats  Stats
}

// Evaluate runs mod.Forward over examples under metric, bounded by
// opts.MaxConcurrency, with a hard opts.TimeoutMS per example.
// Failures (forward error or metric error) score 0.0 and are counted
// in Stats.Failures without aborting the batch.
func Evaluate(ctx context.Context, mod program.Module, examples []*primitives.Example, metric Metric, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	result := &Result{Scores: make([]float64, len(examples))}
	if len(examples) == 0 {
		return result, nil
	}

	type job struct {
		index   int
		example *primitives.Example
	}

	jobs := make(chan job, len(examples))
	var failures atomic.Int64
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			score, failed := evaluateOne(ctx, mod, j.example, metric, opts)
			result.Scores[j.index] = score
			if failed {
				failures.Add(1)
			}
		}
	}

	workers := opts.MaxConcurrency
	if workers > len(examples) {
		workers = len(examples)
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}

	for i, ex := range examples {
		jobs <- job{index: i, example: ex}
	}
	close(jobs)
	wg.Wait()

	result.Stats.Failures = int(failures.Load())

	sum := 0.0
	for _, s := range result.Scores {
		sum += s
	}
	result.Mean = sum / float64(len(result.Scores))

	return result, nil
}

func evaluateOne(ctx context.Context, mod program.Module, example *primitives.Example, metric Metric, opts Options) (score float64, failed bool) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.TimeoutMS)*time.Millisecond)
	defer cancel()

	pred, err := mod.Forward(callCtx, example.Inputs(), opts.ExecOpts)
	if err != nil {
		return 0.0, true
	}

	s, err := metric(example, pred.Fields())
	if err != nil {
		return 0.0, true
	}
	if !isFinite(s) {
		return 0.0, true
	}
	return clampScore(s), false
}

func isFinite(s float64) bool {
	return !math.IsNaN(s) && !math.IsInf(s, 0)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

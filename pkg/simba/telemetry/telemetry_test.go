package telemetry

import (
	"testing"
	"time"
)

type recordingMonitor struct {
	events []string
}

func (r *recordingMonitor) OptimizerStart(int, string)    { r.events = append(r.events, "start") }
func (r *recordingMonitor) OptimizerStop(time.Duration, bool, string, string) {
	r.events = append(r.events, "stop")
}
func (r *recordingMonitor) IterationStart(int, string) { r.events = append(r.events, "iter_start") }
func (r *recordingMonitor) IterationStop(int, string)  { r.events = append(r.events, "iter_stop") }
func (r *recordingMonitor) TrajectorySampled(int, string) {
	r.events = append(r.events, "trajectories")
}
func (r *recordingMonitor) BucketCreated(int, string) { r.events = append(r.events, "buckets") }
func (r *recordingMonitor) StrategyApplied(int, string) {
	r.events = append(r.events, "strategy")
}
func (r *recordingMonitor) Error(string, string, string) { r.events = append(r.events, "error") }

type panickingMonitor struct{}

func (panickingMonitor) OptimizerStart(int, string)                       { panic("boom") }
func (panickingMonitor) OptimizerStop(time.Duration, bool, string, string) { panic("boom") }
func (panickingMonitor) IterationStart(int, string)                       { panic("boom") }
func (panickingMonitor) IterationStop(int, string)                        { panic("boom") }
func (panickingMonitor) TrajectorySampled(int, string)                    { panic("boom") }
func (panickingMonitor) BucketCreated(int, string)                        { panic("boom") }
func (panickingMonitor) StrategyApplied(int, string)                      { panic("boom") }
func (panickingMonitor) Error(string, string, string)                     { panic("boom") }

func TestNoOpMonitorDoesNothing(t *testing.T) {
	var m Monitor = NoOpMonitor{}
	m.OptimizerStart(10, "corr")
	m.OptimizerStop(time.Second, true, "corr", "")
	m.IterationStart(0, "corr")
	m.IterationStop(0, "corr")
	m.TrajectorySampled(5, "corr")
	m.BucketCreated(2, "corr")
	m.StrategyApplied(1, "corr")
	m.Error("timeout", "boom", "corr")
}

func TestMultiMonitorFansOutToEveryHandler(t *testing.T) {
	a := &recordingMonitor{}
	b := &recordingMonitor{}
	m := NewMultiMonitor(a, b)

	m.OptimizerStart(10, "corr")
	m.IterationStop(0, "corr")

	for _, rec := range []*recordingMonitor{a, b} {
		if len(rec.events) != 2 {
			t.Fatalf("got %d events, want 2: %v", len(rec.events), rec.events)
		}
	}
}

func TestMultiMonitorIsolatesPanickingHandler(t *testing.T) {
	a := &recordingMonitor{}
	m := NewMultiMonitor(panickingMonitor{}, a)

	m.OptimizerStart(10, "corr")

	if len(a.events) != 1 {
		t.Fatalf("sibling handler did not run after a panicking handler: %v", a.events)
	}
}

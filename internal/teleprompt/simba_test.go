package teleprompt

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/dspygo/simba/internal/adapters"
	"github.com/dspygo/simba/internal/clients"
	"github.com/dspygo/simba/internal/evaluate"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/program"
	"github.com/dspygo/simba/internal/signatures"
	"github.com/dspygo/simba/internal/simbaerr"
	"github.com/dspygo/simba/pkg/simba/telemetry"
)

func mathQAProgram(t *testing.T, respond func(messages []clients.Message) string) program.Module {
	t.Helper()
	sig, err := signatures.Parse("question -> answer")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	mock := clients.NewMockClient()
	mock.ResponseFunc = func(messages []clients.Message, config clients.Config) (*clients.Response, error) {
		return &clients.Response{CompletionText: respond(messages)}, nil
	}
	return program.New(sig, mock, adapters.NewChatAdapter(), "mock", "mock-model")
}

func exactMatchMetric(example *primitives.Example, outputs map[string]interface{}) (float64, error) {
	if outputs["answer"] == example.Labels()["answer"] {
		return 1.0, nil
	}
	return 0.0, nil
}

func intPtr(n int) *int { return &n }

func evaluateModule(mod program.Module, trainset []*primitives.Example) (*evaluate.Result, error) {
	return evaluate.Evaluate(context.Background(), mod, trainset, exactMatchMetric, evaluate.Options{})
}

// Scenario 1: single-step identity. A student with no demos
// and a client that always answers correctly should round-trip to a
// program scoring 1.0, without crashing.
func TestCompileSingleStepIdentity(t *testing.T) {
	student := mathQAProgram(t, func(messages []clients.Message) string {
		return "[[ ## answer ## ]]\n4"
	})
	trainset := []*primitives.Example{
		primitives.NewExample(map[string]interface{}{"question": "What is 2+2?", "answer": "4"}, "question"),
	}

	got, err := Compile(context.Background(), student, nil, trainset, exactMatchMetric, Config{
		Bsize:         1,
		NumCandidates: 1,
		MaxSteps:      intPtr(1),
		Rng:           rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if len(got.Demos()) > 1 {
		t.Errorf("got %d demos, want <= 1", len(got.Demos()))
	}

	pred, err := got.Forward(context.Background(), map[string]interface{}{"question": "What is 2+2?"}, program.ExecOpts{})
	if err != nil {
		t.Fatalf("Forward error: %v", err)
	}
	score, _ := exactMatchMetric(trainset[0], pred.Fields())
	if score != 1.0 {
		t.Errorf("score = %v, want 1.0", score)
	}
}

// Scenario 2: demo appended lifts score. The stub client
// knows "What is 2+2?" unconditionally (bootstrapping one trajectory
// past AppendDemo's quality gate) and answers every other question
// only once the rendered prompt already carries a digit-valued demo
// in it — so the returned program must have appended a demo to climb
// above the student's 1-in-4 starting accuracy. Knowledge only pays
// off below the hottest model variant's temperature, so that even the
// bootstrap example's bucket has the score spread FormBuckets' Viable
// gate requires across the step's model variants.
func TestCompileAppendedDemoLiftsScore(t *testing.T) {
	answers := map[string]string{
		"What is 2+2?": "4",
		"What is 3+3?": "6",
		"What is 4+4?": "8",
		"What is 5+5?": "10",
	}

	hasDigitDemo := func(messages []clients.Message) bool {
		for _, m := range messages {
			if m.Role != "assistant" {
				continue
			}
			for _, v := range []string{"4", "6", "8", "10"} {
				if strings.Contains(m.Content, "## answer ## ]]\n"+v) {
					return true
				}
			}
		}
		return false
	}

	sig, err := signatures.Parse("question -> answer")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	mock := clients.NewMockClient()
	mock.ResponseFunc = func(messages []clients.Message, config clients.Config) (*clients.Response, error) {
		question := messages[len(messages)-1].Content
		known := hasDigitDemo(messages) || strings.Contains(question, "2+2?")
		if !known || config.Temperature > 0.75 {
			return &clients.Response{CompletionText: "I don't know"}, nil
		}
		for q, a := range answers {
			if strings.Contains(question, q) {
				return &clients.Response{CompletionText: "[[ ## answer ## ]]\n" + a}, nil
			}
		}
		return &clients.Response{CompletionText: "I don't know"}, nil
	}
	student := program.New(sig, mock, adapters.NewChatAdapter(), "mock", "mock-model")

	var trainset []*primitives.Example
	for q, a := range answers {
		trainset = append(trainset, primitives.NewExample(map[string]interface{}{"question": q, "answer": a}, "question"))
	}

	studentResult, err := evaluateModule(student, trainset)
	if err != nil {
		t.Fatalf("baseline evaluation error: %v", err)
	}

	got, err := Compile(context.Background(), student, nil, trainset, exactMatchMetric, Config{
		Bsize:         4,
		NumCandidates: 3,
		MaxSteps:      intPtr(2),
		Rng:           rand.New(rand.NewSource(7)),
	})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if len(got.Demos()) < 1 {
		t.Fatalf("got %d demos, want >= 1", len(got.Demos()))
	}

	gotResult, err := evaluateModule(got, trainset)
	if err != nil {
		t.Fatalf("optimized evaluation error: %v", err)
	}
	if gotResult.Mean <= studentResult.Mean {
		t.Errorf("optimized mean %v not strictly greater than student mean %v", gotResult.Mean, studentResult.Mean)
	}
	if gotResult.Mean < 0.5 {
		t.Errorf("optimized mean = %v, want >= 0.5", gotResult.Mean)
	}
}

// Scenario 3: metric exceptions do not abort the step.
func TestCompileMetricErrorsDoNotAbort(t *testing.T) {
	student := mathQAProgram(t, func(messages []clients.Message) string {
		return "[[ ## answer ## ]]\n4"
	})

	var trainset []*primitives.Example
	for i := 0; i < 6; i++ {
		trainset = append(trainset, primitives.NewExample(map[string]interface{}{"question": "q", "answer": "4"}, "question"))
	}

	var mu sync.Mutex
	calls := 0
	flaky := func(example *primitives.Example, outputs map[string]interface{}) (float64, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n%2 == 0 {
			return 0, errors.New("boom")
		}
		return 0.7, nil
	}

	got, err := Compile(context.Background(), student, nil, trainset, flaky, Config{
		Bsize:         6,
		NumCandidates: 2,
		MaxSteps:      intPtr(1),
		Rng:           rand.New(rand.NewSource(3)),
	})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a program back")
	}
}

// Boundary case: max_steps = 0 returns the student unchanged, with
// exactly one winner.
func TestCompileZeroStepsReturnsStudentUnchanged(t *testing.T) {
	student := mathQAProgram(t, func(messages []clients.Message) string {
		return "[[ ## answer ## ]]\n4"
	})
	trainset := []*primitives.Example{
		primitives.NewExample(map[string]interface{}{"question": "q", "answer": "4"}, "question"),
	}

	got, err := Compile(context.Background(), student, nil, trainset, exactMatchMetric, Config{
		MaxSteps: intPtr(0),
		Rng:      rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if got != student {
		t.Error("expected the student program back unchanged when max_steps=0")
	}
}

// Boundary case: an always-timing-out client leaves every
// trajectory scoring 0 and returns the student without crashing.
func TestCompileClientAlwaysTimesOutReturnsStudent(t *testing.T) {
	sig, err := signatures.Parse("question -> answer")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	mock := clients.NewMockClient()
	mock.ResponseFunc = func(messages []clients.Message, config clients.Config) (*clients.Response, error) {
		return nil, simbaerr.New(simbaerr.KindTimeout, "simulated timeout")
	}
	student := program.New(sig, mock, adapters.NewChatAdapter(), "mock", "mock-model")

	trainset := []*primitives.Example{
		primitives.NewExample(map[string]interface{}{"question": "q", "answer": "4"}, "question"),
	}

	got, err := Compile(context.Background(), student, nil, trainset, exactMatchMetric, Config{
		Bsize:         1,
		NumCandidates: 1,
		MaxSteps:      intPtr(1),
		Rng:           rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a program back even when every call times out")
	}
	if got != student {
		t.Error("expected the student program back when every call times out")
	}
}

// Empty trainset surfaces as a validation error before any step runs.
func TestCompileEmptyTrainsetIsValidationError(t *testing.T) {
	student := mathQAProgram(t, func(messages []clients.Message) string { return "" })
	_, err := Compile(context.Background(), student, nil, nil, exactMatchMetric, Config{})
	if err == nil {
		t.Fatal("expected invalid_or_empty_trainset error")
	}
}

type errorCountingMonitor struct {
	telemetry.NoOpMonitor
	mu   sync.Mutex
	errs int
}

func (m *errorCountingMonitor) Error(kind, description, correlationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs++
}

func (m *errorCountingMonitor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs
}

// A metric that always fails is absorbed as score 0 everywhere, and
// every absorbed failure fires the optimizer.error telemetry event
// (spec §6).
func TestCompileEmitsErrorEventOnAbsorbedMetricFailure(t *testing.T) {
	student := mathQAProgram(t, func(messages []clients.Message) string {
		return "[[ ## answer ## ]]\n4"
	})
	trainset := []*primitives.Example{
		primitives.NewExample(map[string]interface{}{"question": "q", "answer": "4"}, "question"),
	}
	alwaysFails := func(example *primitives.Example, outputs map[string]interface{}) (float64, error) {
		return 0, errors.New("boom")
	}

	monitor := &errorCountingMonitor{}
	_, err := Compile(context.Background(), student, nil, trainset, alwaysFails, Config{
		Bsize:         1,
		NumCandidates: 1,
		MaxSteps:      intPtr(1),
		Rng:           rand.New(rand.NewSource(7)),
		Monitor:       monitor,
	})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if monitor.count() == 0 {
		t.Error("expected at least one optimizer.error event for the always-failing metric")
	}
}

// Bucket ordering over a fixed set of trajectories with hand-picked
// scores.
func TestBucketOrderingMatchesLexicographicKey(t *testing.T) {
	mk := func(execID int, score float64) *Trajectory {
		return &Trajectory{ExecID: execID, Score: score}
	}
	// 3 examples x 4 candidates.
	trajectories := []*Trajectory{
		mk(0, 0.9), mk(1, 0.9), mk(2, 0.8), mk(3, 0.1), // example 0: gap 0.8, max 0.9
		mk(4, 0.5), mk(5, 0.5), mk(6, 0.5), mk(7, 0.5), // example 1: gap 0, not viable
		mk(8, 1.0), mk(9, 0.0), mk(10, 0.0), mk(11, 0.0), // example 2: gap 1.0, max 1.0
	}

	buckets := FormBuckets(trajectories, 4)
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(buckets))
	}
	// example 2 (gap 1.0) > example 0 (gap 0.8) > example 1 (gap 0).
	if buckets[0].ExampleIndex != 2 || buckets[1].ExampleIndex != 0 || buckets[2].ExampleIndex != 1 {
		t.Errorf("bucket order = %v, %v, %v", buckets[0].ExampleIndex, buckets[1].ExampleIndex, buckets[2].ExampleIndex)
	}
	if buckets[1].Viable() == false {
		t.Error("example 0's bucket should be viable (gap 0.8 > 0.01, max 0.9 > 0.1)")
	}
	if buckets[2].Viable() {
		t.Error("example 1's bucket should not be viable (gap 0)")
	}
}

// Poisson demo-drop bounds.
func TestAppendDemoPoissonDropBounds(t *testing.T) {
	demos := make([]*primitives.Demo, 6)
	for i := range demos {
		demos[i] = primitives.NewDemo(map[string]interface{}{"question": "q", "answer": "a"}, []string{"question"}, 0)
	}

	rng := rand.New(rand.NewSource(42))
	total := 0
	const trials = 1000
	for i := 0; i < trials; i++ {
		dropped := len(demos) - len(dropDemos(rng, demos, 4))
		if dropped < 1 || dropped > len(demos) {
			t.Fatalf("dropped = %d, want in [1, %d]", dropped, len(demos))
		}
		total += dropped
	}
	mean := float64(total) / float64(trials)
	if mean < 0.9 || mean > 2.1 {
		t.Errorf("mean dropped = %v, want in [0.9, 2.1]", mean)
	}
}

// A student that always answers wrong scores 0 on every trajectory,
// so no bucket passes the viability gate and no strategy produces a
// candidate: Compile runs three steps without crashing and returns
// the initial student.
func TestCompileReturnsStudentWhenNoBucketIsViable(t *testing.T) {
	student := mathQAProgram(t, func(messages []clients.Message) string {
		return "wrong answer always"
	})
	trainset := []*primitives.Example{
		primitives.NewExample(map[string]interface{}{"question": "q", "answer": "4"}, "question"),
	}

	got, err := Compile(context.Background(), student, nil, trainset, exactMatchMetric, Config{
		Bsize:         1,
		NumCandidates: 2,
		MaxSteps:      intPtr(3),
		Rng:           rand.New(rand.NewSource(9)),
	})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if got != student {
		t.Error("expected the initial student back when every trajectory scores 0")
	}
}

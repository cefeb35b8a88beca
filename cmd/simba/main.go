package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dspygo/simba/internal/adapters"
	"github.com/dspygo/simba/internal/clients"
	"github.com/dspygo/simba/internal/clients/anthropicclient"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/program"
	"github.com/dspygo/simba/internal/signatures"
	"github.com/dspygo/simba/pkg/simba"
	"github.com/dspygo/simba/pkg/simba/telemetry"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("simba v%s\n", simba.Version)
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "demo" {
		if err := runDemo(); err != nil {
			fmt.Fprintln(os.Stderr, "demo failed:", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("simba CLI")
	fmt.Println("=========")
	fmt.Printf("Version: %s\n", simba.Version)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  simba version    Show version information")
	fmt.Println("  simba demo       Run a tiny end-to-end optimization against a sample program")
}

// buildClient composes the production request pipeline: transport at
// the core, then the circuit breaker, then retries, then the rate
// limiter, then usage tracking, then the response cache outermost so
// a cache hit never touches any of the layers beneath it. It uses
// anthropicclient when ANTHROPIC_API_KEY is set, falling back to
// clients.MockClient otherwise so `simba demo` runs without network
// access.
func buildClient(tracker *clients.UsageTracker) (clients.Client, error) {
	var transport clients.Client
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		c, err := anthropicclient.New(anthropicclient.Options{APIKey: apiKey})
		if err != nil {
			return nil, err
		}
		transport = c
	} else {
		mock := clients.NewMockClient()
		mock.ResponseFunc = func(messages []clients.Message, config clients.Config) (*clients.Response, error) {
			return &clients.Response{CompletionText: "[[ ## answer ## ]]\n4"}, nil
		}
		transport = mock
	}

	guarded := clients.NewGuardedClient(transport, clients.NewCircuitBreakerRegistry(5, 30*time.Second))
	retrying := clients.NewRetryingClient(guarded)
	retrying.Backoff = clients.BackoffSchedule{
		InitialWait: 50 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Multiplier:  2,
		Jitter:      clients.DefaultBackoffSchedule().Jitter,
	}
	limited := clients.NewRateLimitedClient(retrying, 10, 5)
	tracked := clients.NewTrackingClient(limited, tracker)

	cache, err := clients.NewResponseCache(256)
	if err != nil {
		return nil, err
	}
	return clients.NewCachingClient(tracked, cache), nil
}

func runDemo() error {
	sig, err := signatures.Parse("question -> answer")
	if err != nil {
		return err
	}

	tracker := clients.NewUsageTracker()
	client, err := buildClient(tracker)
	if err != nil {
		return err
	}

	student := program.New(sig, client, adapters.NewChatAdapter(), "anthropic", "claude-3-5-haiku-20241022")

	trainset := []*primitives.Example{
		primitives.NewExample(map[string]interface{}{"question": "What is 2+2?", "answer": "4"}, "question"),
	}
	exactMatch := func(example *primitives.Example, outputs map[string]interface{}) (float64, error) {
		if outputs["answer"] == example.Labels()["answer"] {
			return 1.0, nil
		}
		return 0.0, nil
	}

	monitor := telemetry.NewPrometheusMonitor("simba_demo")

	best, err := simba.Compile(context.Background(), student, nil, trainset, exactMatch,
		simba.WithMaxSteps(1),
		simba.WithBatchSize(1),
		simba.WithNumCandidates(1),
		simba.WithMonitor(monitor),
		simba.WithCorrelationID("cli-demo"),
	)
	if err != nil {
		return err
	}

	fmt.Printf("optimized program has %d demo(s); %d token(s) used across %d call(s)\n",
		len(best.Demos()), tracker.TotalTokens(), tracker.ModelCalls("claude-3-5-haiku-20241022"))
	return nil
}

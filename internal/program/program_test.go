package program

import (
	"context"
	"strings"
	"testing"

	"github.com/dspygo/simba/internal/adapters"
	"github.com/dspygo/simba/internal/clients"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/signatures"
)

func mustSig(t *testing.T, spec string) *signatures.Signature {
	t.Helper()
	sig, err := signatures.Parse(spec)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", spec, err)
	}
	return sig
}

func TestProgramForwardHappyPath(t *testing.T) {
	sig := mustSig(t, "question -> answer")
	mock := clients.NewMockClient()
	mock.ResponseFunc = func(messages []clients.Message, config clients.Config) (*clients.Response, error) {
		return &clients.Response{CompletionText: "[[ ## answer ## ]]\n4"}, nil
	}

	p := New(sig, mock, adapters.NewChatAdapter(), "mock", "mock-model")
	pred, err := p.Forward(context.Background(), map[string]interface{}{"question": "2+2?"}, ExecOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := pred.Get("answer"); got != "4" {
		t.Errorf("answer = %v, want 4", got)
	}
}

func TestProgramForwardValidatesInputs(t *testing.T) {
	sig := mustSig(t, "question -> answer")
	mock := clients.NewMockClient()
	p := New(sig, mock, adapters.NewChatAdapter(), "mock", "mock-model")

	_, err := p.Forward(context.Background(), map[string]interface{}{}, ExecOpts{})
	if err == nil {
		t.Fatal("expected missing-field error")
	}
}

func TestProgramWithDemosIsStructuralReplacement(t *testing.T) {
	sig := mustSig(t, "question -> answer")
	mock := clients.NewMockClient()
	p := New(sig, mock, adapters.NewChatAdapter(), "mock", "mock-model")

	demo := primitives.NewDemo(map[string]interface{}{"question": "1+1?", "answer": "2"}, []string{"question"}, 0)
	updated := p.WithDemos([]*primitives.Demo{demo})

	if len(p.Demos()) != 0 {
		t.Error("original program's demos were mutated")
	}
	if len(updated.Demos()) != 1 {
		t.Errorf("updated program has %d demos, want 1", len(updated.Demos()))
	}
}

func TestProgramWithInstructionIsPure(t *testing.T) {
	sig := mustSig(t, "question -> answer")
	mock := clients.NewMockClient()
	p := New(sig, mock, adapters.NewChatAdapter(), "mock", "mock-model")

	updated := p.WithInstruction("Be terse.")
	if p.Signature().Instructions != "" {
		t.Error("original program's signature was mutated")
	}
	if updated.Signature().Instructions != "Be terse." {
		t.Errorf("got %q, want 'Be terse.'", updated.Signature().Instructions)
	}
}

func TestOptimizedProgramAdjoinsDemos(t *testing.T) {
	sig := mustSig(t, "question -> answer")
	mock := clients.NewMockClient()
	var lastMessages []clients.Message
	mock.ResponseFunc = func(messages []clients.Message, config clients.Config) (*clients.Response, error) {
		lastMessages = messages
		return &clients.Response{CompletionText: "[[ ## answer ## ]]\n4"}, nil
	}

	base := New(sig, mock, adapters.NewChatAdapter(), "mock", "mock-model")
	demo := primitives.NewDemo(map[string]interface{}{"question": "1+1?", "answer": "2"}, []string{"question"}, 0)
	wrapped := NewOptimizedProgram(base, []*primitives.Demo{demo}, "")

	if wrapped.Kind() != KindNeedsWrapper {
		t.Errorf("Kind() = %v, want needs_wrapper", wrapped.Kind())
	}

	_, err := wrapped.Forward(context.Background(), map[string]interface{}{"question": "2+2?"}, ExecOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, m := range lastMessages {
		if m.Role == "system" && len(m.Content) > 0 {
			found = found || strings.Contains(m.Content, "1+1?")
		}
	}
	if !found {
		t.Error("expected wrapped program's demo text to reach the system message")
	}
}

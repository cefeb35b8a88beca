// Package program implements the Program/OptimizedProgram execution
// unit: an immutable value binding a Signature to a Client through an
// Adapter, optionally carrying demos and an instruction override.
package program

import (
	"context"
	"time"

	"github.com/dspygo/simba/internal/adapters"
	"github.com/dspygo/simba/internal/clients"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/signatures"
	"github.com/dspygo/simba/internal/simbaerr"
)

// Kind distinguishes programs with native demo storage from ones that
// need an OptimizedProgram wrapper to carry demos.
type Kind string

const (
	KindNativeDemos  Kind = "native_demos"
	KindNeedsWrapper Kind = "needs_wrapper"
)

// ExecOpts overrides the defaults a Program.Forward call uses for a
// single execution.
type ExecOpts struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	TimeoutMS     int
	CorrelationID string
}

func (o ExecOpts) toConfig(provider, defaultModel string, defaultTemperature float64, defaultMaxTokens, defaultTimeoutMS int) clients.Config {
	cfg := clients.Config{
		Provider:      provider,
		Model:         defaultModel,
		Temperature:   defaultTemperature,
		MaxTokens:     defaultMaxTokens,
		TimeoutMS:     defaultTimeoutMS,
	}
	if o.Model != "" {
		cfg.Model = o.Model
	}
	if o.Temperature != 0 {
		cfg.Temperature = o.Temperature
	}
	if o.MaxTokens != 0 {
		cfg.MaxTokens = o.MaxTokens
	}
	if o.TimeoutMS != 0 {
		cfg.TimeoutMS = o.TimeoutMS
	}
	if o.CorrelationID != "" {
		cfg.CorrelationID = o.CorrelationID
	}
	return cfg
}

// Module is the capability set the SIMBA loop depends on:
// forward, demos, with_demos, signature, kind. Both Program and
// OptimizedProgram implement it.
type Module interface {
	Forward(ctx context.Context, inputs map[string]interface{}, opts ExecOpts) (*primitives.Prediction, error)
	Demos() []*primitives.Demo
	WithDemos(demos []*primitives.Demo) Module
	WithInstruction(text string) Module
	Signature() *signatures.Signature
	Kind() Kind
}

// Program is a Module with native demo storage: the common case.
type Program struct {
	sig      *signatures.Signature
	client   clients.Client
	adapter  adapters.Adapter
	demos    []*primitives.Demo
	provider string

	defaultModel       string
	defaultTemperature float64
	defaultMaxTokens   int
	defaultTimeoutMS   int
}

// New builds a Program bound to client via adapter, with no demos and
// no instruction override.
func New(sig *signatures.Signature, client clients.Client, adapter adapters.Adapter, provider, defaultModel string) *Program {
	return &Program{
		sig:                sig,
		client:             client,
		adapter:            adapter,
		provider:           provider,
		defaultModel:       defaultModel,
		defaultTemperature: 0.7,
		defaultMaxTokens:   1024,
		defaultTimeoutMS:   30_000,
	}
}

// Signature implements Module.
func (p *Program) Signature() *signatures.Signature { return p.sig }

// Demos implements Module.
func (p *Program) Demos() []*primitives.Demo { return p.demos }

// Kind implements Module.
func (p *Program) Kind() Kind { return KindNativeDemos }

// WithDemos implements Module: structural replacement, never mutation.
func (p *Program) WithDemos(demos []*primitives.Demo) Module {
	clone := *p
	clone.demos = demos
	return &clone
}

// WithInstruction implements Module: replaces the signature's
// instructions, never mutating the receiver.
func (p *Program) WithInstruction(text string) Module {
	clone := *p
	clone.sig = p.sig.WithInstructions(text)
	return &clone
}

// Forward runs the execution pipeline: validate inputs, build
// the effective signature, format via the adapter, call the client,
// parse the completion.
func (p *Program) Forward(ctx context.Context, inputs map[string]interface{}, opts ExecOpts) (*primitives.Prediction, error) {
	if err := p.sig.ValidateInputs(inputs); err != nil {
		return nil, err
	}

	config := opts.toConfig(p.provider, p.defaultModel, p.defaultTemperature, p.defaultMaxTokens, p.defaultTimeoutMS)

	timeout := time.Duration(config.TimeoutMS) * time.Millisecond
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	messages, err := p.adapter.Format(p.sig, p.demos, inputs)
	if err != nil {
		return nil, simbaerr.Wrap(simbaerr.KindAdapterFormat, "adapter format failed", err)
	}

	resp, err := p.client.Request(callCtx, messages, config)
	if err != nil {
		if callCtx.Err() != nil && !isSimbaErr(err) {
			return nil, simbaerr.Wrap(simbaerr.KindTimeout, "program forward timed out", callCtx.Err())
		}
		return nil, err
	}

	outputs, err := p.adapter.Parse(p.sig, resp.CompletionText)
	if err != nil {
		return nil, err
	}
	if err := p.sig.ValidateOutputs(outputs); err != nil {
		return nil, err
	}

	pred := primitives.NewPrediction(outputs)
	pred.SetMetadata("usage", resp.Usage)
	return pred, nil
}

func isSimbaErr(err error) bool {
	_, ok := err.(*simbaerr.Error)
	return ok
}

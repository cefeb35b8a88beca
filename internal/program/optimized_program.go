package program

import (
	"context"
	"fmt"
	"strings"

	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/signatures"
)

// OptimizedProgram adjoins demos and an instruction override to a base
// Module that has no native demo storage of its own. Since the only
// hook every Module exposes is WithInstruction, demos are adjoined by
// rendering them into the instruction text the base module already
// knows how to consume, wrapping an opaque Module rather than copying
// its internal struct.
type OptimizedProgram struct {
	base        Module
	demos       []*primitives.Demo
	instruction string
}

// NewOptimizedProgram wraps base with demos and an optional
// instruction override.
func NewOptimizedProgram(base Module, demos []*primitives.Demo, instruction string) *OptimizedProgram {
	return &OptimizedProgram{base: base, demos: demos, instruction: instruction}
}

// Signature implements Module.
func (o *OptimizedProgram) Signature() *signatures.Signature { return o.base.Signature() }

// Demos implements Module.
func (o *OptimizedProgram) Demos() []*primitives.Demo { return o.demos }

// Kind implements Module.
func (o *OptimizedProgram) Kind() Kind { return KindNeedsWrapper }

// WithDemos implements Module.
func (o *OptimizedProgram) WithDemos(demos []*primitives.Demo) Module {
	return NewOptimizedProgram(o.base, demos, o.instruction)
}

// WithInstruction implements Module.
func (o *OptimizedProgram) WithInstruction(text string) Module {
	return NewOptimizedProgram(o.base, o.demos, text)
}

func renderDemosAsText(sig *signatures.Signature, demos []*primitives.Demo) string {
	if len(demos) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nExamples:\n")
	for i, demo := range demos {
		fmt.Fprintf(&b, "Example %d:\n", i+1)
		for _, name := range sig.InputFieldNames() {
			if v, ok := demo.Values[name]; ok {
				fmt.Fprintf(&b, "  %s: %v\n", name, v)
			}
		}
		for _, name := range sig.OutputFieldNames() {
			if v, ok := demo.Values[name]; ok {
				fmt.Fprintf(&b, "  %s: %v\n", name, v)
			}
		}
	}
	return b.String()
}

// Forward implements Module: it augments the base's instructions with
// the wrapper's demos and instruction override, then delegates.
func (o *OptimizedProgram) Forward(ctx context.Context, inputs map[string]interface{}, opts ExecOpts) (*primitives.Prediction, error) {
	instruction := o.instruction
	if instruction == "" {
		instruction = o.base.Signature().Instructions
	}
	instruction += renderDemosAsText(o.base.Signature(), o.demos)

	return o.base.WithInstruction(instruction).Forward(ctx, inputs, opts)
}

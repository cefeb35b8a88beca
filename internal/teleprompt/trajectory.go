// Package teleprompt implements the SIMBA optimization loop: trace
// recording (Trajectory/Bucket), strategy-driven candidate generation
// (AppendDemo, DropWorst, Registry), and the step-by-step stochastic
// ascent itself, organized as a registration-style package with one
// strategy per file.
package teleprompt

// ModelVariant is one perturbed (temperature, model) pair produced by
// a step's model-variant preparation.
type ModelVariant struct {
	Temperature float64
	Model       string
}

// Trajectory is an immutable record of one program execution against
// one example under one model variant.
type Trajectory struct {
	ProgramIndex int
	ExampleIndex int
	Inputs       map[string]interface{}
	Outputs      map[string]interface{}
	Score        float64
	Success      bool
	DurationNS   int64
	ModelConfig  ModelVariant
	ExecID       int
	Err          error
}

// Package signatures implements the declarative input/output contract.
// A Signature is an immutable value: "modifying" it
// (WithInstructions) returns a new Signature sharing the same fields.
package signatures

import (
	"fmt"
	"strings"

	"github.com/dspygo/simba/internal/simbaerr"
)

// Signature is a named I/O contract: ordered input fields, ordered
// output fields, and free-form instructions. Input and output field
// names are disjoint, and names are unique within each set.
type Signature struct {
	Name         string
	Instructions string
	InputFields  []Field
	OutputFields []Field
}

// New builds a Signature from explicit field lists and validates that
// input and output field names are disjoint and each unique within
// its side.
func New(name string, input, output []Field) (*Signature, error) {
	sig := &Signature{Name: name, InputFields: input, OutputFields: output}
	if err := sig.validateShape(); err != nil {
		return nil, err
	}
	return sig, nil
}

// Parse builds a Signature from a string of the form
// "field1, field2 -> output1, output2".
func Parse(spec string) (*Signature, error) {
	parts := strings.Split(spec, "->")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid signature format: expected %q, got %q", "inputs -> outputs", spec)
	}

	input, err := parseFieldList(parts[0])
	if err != nil {
		return nil, fmt.Errorf("parsing input fields: %w", err)
	}
	output, err := parseFieldList(parts[1])
	if err != nil {
		return nil, fmt.Errorf("parsing output fields: %w", err)
	}

	return New("", input, output)
}

func parseFieldList(raw string) ([]Field, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("field list cannot be empty")
	}

	names := strings.Split(raw, ",")
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fields = append(fields, NewField(name))
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no valid fields found in %q", raw)
	}
	return fields, nil
}

// WithInstructions returns a new Signature with the instructions
// replaced. The receiver is never mutated.
func (s *Signature) WithInstructions(text string) *Signature {
	clone := *s
	clone.Instructions = text
	return &clone
}

// WithName returns a new Signature with the name replaced.
func (s *Signature) WithName(name string) *Signature {
	clone := *s
	clone.Name = name
	return &clone
}

// InputFieldNames returns the ordered input field names.
func (s *Signature) InputFieldNames() []string {
	return fieldNames(s.InputFields)
}

// OutputFieldNames returns the ordered output field names.
func (s *Signature) OutputFieldNames() []string {
	return fieldNames(s.OutputFields)
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// ValidateInputs checks that every declared input field is present in
// inputs. Unknown extra fields are permitted — adapters decide whether
// to surface them. Returns a *simbaerr.Error naming the
// missing fields.
func (s *Signature) ValidateInputs(inputs map[string]interface{}) error {
	return validatePresence(simbaerr.KindInvalidInputs, s.InputFields, inputs)
}

// ValidateOutputs checks that every declared output field is present
// in outputs.
func (s *Signature) ValidateOutputs(outputs map[string]interface{}) error {
	return validatePresence(simbaerr.KindInvalidOutputs, s.OutputFields, outputs)
}

func validatePresence(kind simbaerr.Kind, fields []Field, values map[string]interface{}) error {
	var missing []string
	for _, f := range fields {
		if _, ok := values[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return simbaerr.MissingFields(kind, missing)
	}
	return nil
}

// String renders the signature as "in1, in2 -> out1, out2".
func (s *Signature) String() string {
	return fmt.Sprintf("%s -> %s", strings.Join(s.InputFieldNames(), ", "), strings.Join(s.OutputFieldNames(), ", "))
}

func (s *Signature) validateShape() error {
	if len(s.InputFields) == 0 {
		return fmt.Errorf("signature must have at least one input field")
	}
	if len(s.OutputFields) == 0 {
		return fmt.Errorf("signature must have at least one output field")
	}

	seen := make(map[string]string, len(s.InputFields)+len(s.OutputFields))
	for _, f := range s.InputFields {
		if side, ok := seen[f.Name]; ok {
			return fmt.Errorf("duplicate field name %q (already an %s field)", f.Name, side)
		}
		seen[f.Name] = "input"
	}
	for _, f := range s.OutputFields {
		if side, ok := seen[f.Name]; ok {
			return fmt.Errorf("duplicate field name %q (already an %s field)", f.Name, side)
		}
		seen[f.Name] = "output"
	}
	return nil
}

package signatures

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantErr     bool
		wantInputs  int
		wantOutputs int
	}{
		{
			name:        "simple signature",
			input:       "question -> answer",
			wantInputs:  1,
			wantOutputs: 1,
		},
		{
			name:        "multiple inputs",
			input:       "question, context -> answer",
			wantInputs:  2,
			wantOutputs: 1,
		},
		{
			name:        "multiple outputs",
			input:       "text -> summary, sentiment",
			wantInputs:  1,
			wantOutputs: 2,
		},
		{
			name:    "missing arrow",
			input:   "question answer",
			wantErr: true,
		},
		{
			name:    "empty output list",
			input:   "question ->",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if len(sig.InputFields) != tt.wantInputs {
				t.Errorf("got %d input fields, want %d", len(sig.InputFields), tt.wantInputs)
			}
			if len(sig.OutputFields) != tt.wantOutputs {
				t.Errorf("got %d output fields, want %d", len(sig.OutputFields), tt.wantOutputs)
			}
		})
	}
}

func TestSignatureDisjointNames(t *testing.T) {
	_, err := New("", []Field{NewField("x")}, []Field{NewField("x")})
	if err == nil {
		t.Fatal("expected error for a field name shared between inputs and outputs")
	}
}

func TestSignatureDuplicateNames(t *testing.T) {
	_, err := New("", []Field{NewField("x"), NewField("x")}, []Field{NewField("y")})
	if err == nil {
		t.Fatal("expected error for duplicate input field names")
	}
}

func TestWithInstructionsIsPure(t *testing.T) {
	sig, err := Parse("question -> answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated := sig.WithInstructions("answer concisely")
	if sig.Instructions != "" {
		t.Errorf("original signature was mutated: %q", sig.Instructions)
	}
	if updated.Instructions != "answer concisely" {
		t.Errorf("got instructions %q, want %q", updated.Instructions, "answer concisely")
	}
	if updated == sig {
		t.Error("WithInstructions should return a distinct Signature value")
	}
}

func TestValidateInputsReportsMissingFields(t *testing.T) {
	sig, err := Parse("question, context -> answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = sig.ValidateInputs(map[string]interface{}{"question": "hi"})
	if err == nil {
		t.Fatal("expected error for missing 'context' field")
	}
}

func TestValidateInputsAllowsExtraFields(t *testing.T) {
	sig, err := Parse("question -> answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = sig.ValidateInputs(map[string]interface{}{"question": "hi", "extra": "ignored"})
	if err != nil {
		t.Errorf("unexpected error for extra unknown field: %v", err)
	}
}

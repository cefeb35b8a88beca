// Package simbaerr defines the typed error taxonomy shared across the
// optimizer's components (signatures, adapters, clients, programs, and
// the SIMBA loop itself): a struct implementing error, a Kind string
// instead of a concrete type hierarchy, and constructors per kind.
package simbaerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy used across the module.
type Kind string

const (
	KindInvalidInputs          Kind = "invalid_inputs"
	KindInvalidOutputs         Kind = "invalid_outputs"
	KindInvalidStudentProgram  Kind = "invalid_student_program"
	KindInvalidTeacherProgram  Kind = "invalid_teacher_program"
	KindInvalidOrEmptyTrainset Kind = "invalid_or_empty_trainset"
	KindInvalidMetricFunction  Kind = "invalid_metric_function"
	KindAdapterFormat          Kind = "adapter_format_failed"
	KindMalformedResponse      Kind = "malformed_response"
	KindNetwork                Kind = "network"
	KindRateLimit              Kind = "rate_limit"
	KindServer5xx              Kind = "server_5xx"
	KindAuth                   Kind = "auth"
	KindBadRequest             Kind = "bad_request"
	KindTimeout                Kind = "timeout"
	KindCircuitOpen            Kind = "circuit_open"
	KindStrategySkip           Kind = "strategy_skip"
	KindMetricError            Kind = "metric_error"
	KindOptimizationFailed     Kind = "optimization_failed"
)

// Error is the concrete error value for every typed failure in the module.
type Error struct {
	Kind    Kind
	Message string
	// Fields carries structured detail, e.g. the missing field names for
	// KindInvalidInputs.
	Fields []string
	// Cause is the wrapped underlying error, if any.
	Cause error
	// Retryable is a caller-set flag reported by IsRetryable. The LM
	// client's retry policy does not read it; it decides by Kind.
	Retryable bool
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s %v", e.Kind, e.Message, e.Fields)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is comparisons against a bare Kind sentinel created
// via New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// MissingFields creates a KindInvalidInputs/KindInvalidOutputs error
// naming the specific fields that were missing.
func MissingFields(kind Kind, fields []string) *Error {
	return &Error{Kind: kind, Message: "missing required fields", Fields: fields}
}

// IsRetryable reports whether err is a typed Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

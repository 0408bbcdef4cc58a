package errors

import (
	"fmt"
)

/*
EngineError represents a classified failure inside the retrieval/memory core.
The Kind determines how callers react: most kinds degrade the pipeline, only
validation and initialization failures are fatal to the caller.
*/
type EngineError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Kind string

const (
	KindGraphQuery     Kind = "graph_query"
	KindGeneration     Kind = "generation"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindInitialization Kind = "initialization"
)

/*
Error implements the error interface for EngineError.
*/
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Convenience errors. Call sites specialize these with WithMessagef so the
// package-level values stay untouched.
var (
	ErrGraphQuery     = &EngineError{Kind: KindGraphQuery, Message: "graph query failed"}
	ErrGeneration     = &EngineError{Kind: KindGeneration, Message: "generation backend failed"}
	ErrValidation     = &EngineError{Kind: KindValidation, Message: "invalid parameters"}
	ErrNotFound       = &EngineError{Kind: KindNotFound, Message: "not found"}
	ErrInitialization = &EngineError{Kind: KindInitialization, Message: "initialization failed"}
)

// WithMessagef creates a *copy* of an EngineError with a formatted message.
// It does not modify the original error variable.
func (e *EngineError) WithMessagef(format string, args ...any) *EngineError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

// Is matches any EngineError of the same Kind, so errors.Is recognizes the
// specialized copies WithMessagef hands out.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	return ok && t.Kind == e.Kind
}

// WithData creates a copy carrying extra structured context.
func (e *EngineError) WithData(data any) *EngineError {
	newErr := *e
	newErr.Data = data
	return &newErr
}

// IsFatal reports whether the error must abort the caller instead of
// degrading the pipeline.
func IsFatal(err error) bool {
	ee, ok := err.(*EngineError)
	if !ok {
		return false
	}
	return ee.Kind == KindValidation || ee.Kind == KindInitialization
}

// KindOf extracts the Kind from an error, or empty when the error is not an
// EngineError.
func KindOf(err error) Kind {
	if ee, ok := err.(*EngineError); ok {
		return ee.Kind
	}
	return ""
}

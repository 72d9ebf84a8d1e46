// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling for the automata runtime.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies automata errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeConfig indicates a configuration contract violation: a missing
	// declaration, a missing role template, a cyclic delegation graph or
	// a malformed validator verdict. Always fatal, never suppressed.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeCapability indicates a leaf capability failed.
	CodeCapability ErrorCode = "CAPABILITY_FAILURE"

	// CodeReasoning indicates the reasoning engine could not parse its
	// own output into a valid action.
	CodeReasoning ErrorCode = "REASONING_FAILURE"

	// CodeTimeout indicates an operation exceeded its budget.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeLLM indicates a model provider error.
	CodeLLM ErrorCode = "LLM_ERROR"
)

// AutomataError is a typed error with classification and context.
// It implements the error interface and supports errors.As traversal.
type AutomataError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]any
	Recoverable bool
}

// Error implements the error interface.
func (e *AutomataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AutomataError) Unwrap() error {
	return e.Err
}

// New creates a new AutomataError with the given code, message and cause.
func New(code ErrorCode, msg string, cause error) *AutomataError {
	return &AutomataError{
		Code:    code,
		Message: msg,
		Err:     cause,
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *AutomataError) WithContext(key string, value any) *AutomataError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
func (e *AutomataError) WithRecoverable(recoverable bool) *AutomataError {
	e.Recoverable = recoverable
	return e
}

// CodeOf returns the classification of err, or the empty code when err
// carries no AutomataError in its chain.
func CodeOf(err error) ErrorCode {
	var ae *AutomataError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsConfig reports whether err is a configuration contract violation.
// Configuration errors must surface immediately and are never suppressed.
func IsConfig(err error) bool {
	return CodeOf(err) == CodeConfig
}

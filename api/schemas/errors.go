// File: api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// ReasonCode classifies every way a task step or a whole task can go
// wrong. Codes are stable strings so they survive JSON round-trips in
// task reports.
type ReasonCode string

const (
	// ReasonCoordinateOutOfRange: a provider coordinate fell outside
	// the viewport by more than the configured tolerance. Aborts the
	// offending action only, never the task.
	ReasonCoordinateOutOfRange ReasonCode = "coordinate_out_of_range"

	// ReasonUnsupportedInstruction: the provider emitted an instruction
	// the adapter cannot express, or omitted a required field.
	ReasonUnsupportedInstruction ReasonCode = "unsupported_instruction"

	// ReasonTransportError: the provider API call itself failed
	// (network, HTTP status, malformed response, deadline).
	ReasonTransportError ReasonCode = "transport_error"

	// ReasonNavigationError: the browser could not reach or load the
	// target page.
	ReasonNavigationError ReasonCode = "navigation_error"

	// ReasonAuthenticationError: login did not produce the expected
	// post-login marker within the deadline.
	ReasonAuthenticationError ReasonCode = "authentication_error"

	// ReasonVerificationFailed: the provider declared success but the
	// page shows a failure indicator, or shows no success indicator.
	ReasonVerificationFailed ReasonCode = "verification_failed"

	// ReasonBlocked: the page presented a bot wall, CAPTCHA, or access
	// denial that no amount of stepping will clear.
	ReasonBlocked ReasonCode = "blocked"

	// ReasonAllProvidersExhausted: primary and fallback both ran out
	// of retry budget.
	ReasonAllProvidersExhausted ReasonCode = "all_providers_exhausted"

	// ReasonStepBudgetExhausted: the perceive-act loop hit its step
	// ceiling without a Done verdict.
	ReasonStepBudgetExhausted ReasonCode = "step_budget_exhausted"

	// ReasonSessionCrash: the browser process or its DevTools
	// connection died mid-task.
	ReasonSessionCrash ReasonCode = "session_crash"

	// ReasonCanceled: the operator canceled the task context.
	ReasonCanceled ReasonCode = "canceled"
)

// TaskError is the error type the engine and its collaborators return.
// It pairs a ReasonCode with the operation that produced it so callers
// can branch on the code with ReasonOf while logs keep the full chain.
type TaskError struct {
	Reason ReasonCode
	Op     string
	Err    error
}

func (e *TaskError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Is lets errors.Is match two TaskErrors by reason alone.
func (e *TaskError) Is(target error) bool {
	var te *TaskError
	if errors.As(target, &te) {
		return e.Reason == te.Reason
	}
	return false
}

// NewTaskError builds a TaskError. err may be nil.
func NewTaskError(reason ReasonCode, op string, err error) *TaskError {
	return &TaskError{Reason: reason, Op: op, Err: err}
}

// ReasonOf extracts the ReasonCode from err, unwrapping as needed.
// Returns the empty code when err carries no TaskError.
func ReasonOf(err error) ReasonCode {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}

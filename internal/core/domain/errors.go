// Package domain provides the canonical types of the trip-planning core:
// requests, invocation plans, envelopes, execution reports, money, eligibility
// verdicts and the aggregated trip plan.
package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a failure anywhere in the planning core.
type ErrorKind string

const (
	// KindProviderNotFound means the target provider is not registered.
	// Fatal to its intent and never retried.
	KindProviderNotFound ErrorKind = "provider_not_found"

	// KindUnknownOperation means the provider does not expose the operation.
	KindUnknownOperation ErrorKind = "unknown_operation"

	// KindTimeout means a provider call exceeded its per-call timeout.
	KindTimeout ErrorKind = "timeout"

	// KindTransientIO is a network/IO failure that is worth retrying.
	KindTransientIO ErrorKind = "transient_io"

	// KindProviderError is a non-retryable failure reported by a provider.
	KindProviderError ErrorKind = "provider_error"

	// KindDependencyFailed marks an intent skipped because a prerequisite failed.
	KindDependencyFailed ErrorKind = "dependency_failed"

	// KindRateUnavailable means no usable exchange rate could be found.
	KindRateUnavailable ErrorKind = "rate_unavailable"

	// KindVisaStatusUnknown is the explicit non-answer for a missing visa ruleset.
	KindVisaStatusUnknown ErrorKind = "visa_status_unknown"

	// KindPlanCycleDetected rejects a plan whose depends_on edges form a cycle.
	KindPlanCycleDetected ErrorKind = "plan_cycle_detected"

	// KindPlanDeadlineExceeded marks intents cut off by the aggregate deadline.
	KindPlanDeadlineExceeded ErrorKind = "plan_deadline_exceeded"

	// KindTotalPlanFailure means every planned section failed.
	KindTotalPlanFailure ErrorKind = "total_plan_failure"

	// KindInvalidRequest means the trip request or plan is structurally invalid.
	KindInvalidRequest ErrorKind = "invalid_request"

	// KindNotFound is returned by stores when a record does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindCanceled means the caller canceled the planning call.
	KindCanceled ErrorKind = "canceled"
)

// Error is the canonical error carried in failure envelopes and returned by
// providers and collaborators.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Retryable is set by providers for failures the coordinator may retry.
	Retryable bool `json:"retryable,omitempty"`

	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// AsRetryable marks the error as retryable.
func (e *Error) AsRetryable() *Error {
	e.Retryable = true
	return e
}

// HTTPStatusCode returns the status code the API layer uses for this error.
func (e *Error) HTTPStatusCode() int {
	return StatusForKind(e.Kind)
}

// StatusForKind maps an error kind to an HTTP status code.
func StatusForKind(kind ErrorKind) int {
	switch kind {
	case KindInvalidRequest, KindPlanCycleDetected, KindUnknownOperation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTotalPlanFailure:
		return http.StatusBadGateway
	case KindTimeout, KindPlanDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Convenience constructors for common errors

// ErrProviderNotFound creates a provider_not_found error.
func ErrProviderNotFound(message string) *Error {
	return NewError(KindProviderNotFound, message)
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *Error {
	return NewError(KindTimeout, message)
}

// ErrTransientIO creates a retryable transient_io error.
func ErrTransientIO(message string) *Error {
	return NewError(KindTransientIO, message).AsRetryable()
}

// ErrProvider creates a non-retryable provider error.
func ErrProvider(message string) *Error {
	return NewError(KindProviderError, message)
}

// ErrRateUnavailable creates a rate_unavailable error.
func ErrRateUnavailable(message string) *Error {
	return NewError(KindRateUnavailable, message)
}

// ErrNotFound creates a not_found error.
func ErrNotFound(message string) *Error {
	return NewError(KindNotFound, message)
}

// ErrInvalidRequest creates an invalid_request error.
func ErrInvalidRequest(message string) *Error {
	return NewError(KindInvalidRequest, message)
}

// KindOf extracts the error kind from any error in the chain. Errors that
// carry no kind are reported as provider_error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var k interface{ ErrorKind() ErrorKind }
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindProviderError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ValidationError reports a structurally invalid trip request or plan.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", KindInvalidRequest, e.Field, e.Reason)
}

// ErrorKind implements the kind lookup used by KindOf.
func (e *ValidationError) ErrorKind() ErrorKind { return KindInvalidRequest }

// CycleError is returned before any dispatch when depends_on edges form a cycle.
type CycleError struct {
	// Path lists the intent ids along the cycle; the first id is repeated at the end.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", KindPlanCycleDetected, strings.Join(e.Path, " -> "))
}

// ErrorKind implements the kind lookup used by KindOf.
func (e *CycleError) ErrorKind() ErrorKind { return KindPlanCycleDetected }

// TotalFailureError is returned instead of a TripPlan when every planned
// section failed.
type TotalFailureError struct {
	// Sections maps each failed section to its failure kind.
	Sections map[string]ErrorKind
}

func (e *TotalFailureError) Error() string {
	return fmt.Sprintf("%s: all %d sections failed", KindTotalPlanFailure, len(e.Sections))
}

// ErrorKind implements the kind lookup used by KindOf.
func (e *TotalFailureError) ErrorKind() ErrorKind { return KindTotalPlanFailure }

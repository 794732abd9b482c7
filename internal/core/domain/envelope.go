package domain

import (
	"encoding/json"
	"time"
)

// Status is the outcome of a provider invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Request is the request half of an envelope: one provider invocation.
type Request struct {
	Source        string         `json:"source"`
	Target        string         `json:"target"`
	Operation     string         `json:"operation"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	CreatedAt     time.Time      `json:"created_at"`

	// Trip is the originating request, available to every provider.
	Trip *TripRequest `json:"trip,omitempty"`

	// Inputs holds the success payloads of the intent's dependencies keyed
	// by intent id.
	Inputs map[string]json.RawMessage `json:"inputs,omitempty"`
}

// Response is the response half of an envelope.
type Response struct {
	Source        string          `json:"source"`
	Target        string          `json:"target"`
	Status        Status          `json:"status"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Error         *Error          `json:"error,omitempty"`
	CorrelationID string          `json:"correlation_id"`
	CompletedAt   time.Time       `json:"completed_at"`
}

// Succeeded reports whether the response carries a success status.
func (r *Response) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// Reply builds a success response matching the request.
func (r *Request) Reply(payload json.RawMessage) *Response {
	return &Response{
		Source:        r.Target,
		Target:        r.Source,
		Status:        StatusSuccess,
		Payload:       payload,
		CorrelationID: r.CorrelationID,
		CompletedAt:   time.Now(),
	}
}

// Fail builds a failure response matching the request. Partial data may be
// attached as payload.
func (r *Request) Fail(err *Error, partial json.RawMessage) *Response {
	return &Response{
		Source:        r.Target,
		Target:        r.Source,
		Status:        StatusFailure,
		Payload:       partial,
		Error:         err,
		CorrelationID: r.CorrelationID,
		CompletedAt:   time.Now(),
	}
}

// Param returns a string parameter or the fallback when absent.
func (r *Request) Param(key, fallback string) string {
	if v, ok := r.Parameters[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

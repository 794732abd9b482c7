package domain

import (
	"bytes"
	"slices"
	"sort"
	"time"
)

// ExecutionResult is the outcome of one executed intent.
type ExecutionResult struct {
	IntentID     string    `json:"intent_id"`
	Response     *Response `json:"response"`
	Attempts     int       `json:"attempts"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	DispatchedAt time.Time `json:"dispatched_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Succeeded reports whether the intent ended in success.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Response.Succeeded()
}

// Skip records why an intent was never dispatched.
type Skip struct {
	IntentID string    `json:"intent_id"`
	Reason   ErrorKind `json:"reason"`

	// FailedDependencies lists the direct dependencies that failed or were
	// skipped, for dependency_failed skips.
	FailedDependencies []string `json:"failed_dependencies,omitempty"`

	// Root lists the executed intents whose failure caused the skip chain.
	Root []string `json:"root,omitempty"`
}

// ExecutionReport collects every intent of a plan as either executed or
// skipped.
type ExecutionReport struct {
	PlanID   string                      `json:"plan_id"`
	Executed map[string]*ExecutionResult `json:"executed"`
	Skipped  map[string]*Skip            `json:"skipped"`
	Layers   [][]string                  `json:"layers"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewExecutionReport creates an empty report.
func NewExecutionReport(planID string) *ExecutionReport {
	return &ExecutionReport{
		PlanID:   planID,
		Executed: make(map[string]*ExecutionResult),
		Skipped:  make(map[string]*Skip),
	}
}

// Resolved reports whether the intent has been executed or skipped.
func (r *ExecutionReport) Resolved(id string) bool {
	if _, ok := r.Executed[id]; ok {
		return true
	}
	_, ok := r.Skipped[id]
	return ok
}

// Failed reports whether the intent was skipped or executed with failure.
func (r *ExecutionReport) Failed(id string) bool {
	if _, ok := r.Skipped[id]; ok {
		return true
	}
	res, ok := r.Executed[id]
	return ok && !res.Succeeded()
}

// Len returns the number of resolved intents.
func (r *ExecutionReport) Len() int {
	return len(r.Executed) + len(r.Skipped)
}

// SkippedIDs returns the skipped intent ids, sorted.
func (r *ExecutionReport) SkippedIDs() []string {
	ids := make([]string, 0, len(r.Skipped))
	for id := range r.Skipped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the report. Nil stays nil.
func (r *ExecutionReport) Clone() *ExecutionReport {
	if r == nil {
		return nil
	}
	out := *r
	if r.Executed != nil {
		out.Executed = make(map[string]*ExecutionResult, len(r.Executed))
		for id, res := range r.Executed {
			out.Executed[id] = res.Clone()
		}
	}
	if r.Skipped != nil {
		out.Skipped = make(map[string]*Skip, len(r.Skipped))
		for id, skip := range r.Skipped {
			out.Skipped[id] = skip.Clone()
		}
	}
	if r.Layers != nil {
		out.Layers = make([][]string, len(r.Layers))
		for i, layer := range r.Layers {
			out.Layers[i] = slices.Clone(layer)
		}
	}
	return &out
}

// Clone returns a deep copy of the result. Nil stays nil.
func (r *ExecutionResult) Clone() *ExecutionResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Response = r.Response.Clone()
	return &out
}

// Clone returns a deep copy of the skip. Nil stays nil.
func (s *Skip) Clone() *Skip {
	if s == nil {
		return nil
	}
	out := *s
	out.FailedDependencies = slices.Clone(s.FailedDependencies)
	out.Root = slices.Clone(s.Root)
	return &out
}

// Clone returns a deep copy of the response. Nil stays nil.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Payload = bytes.Clone(r.Payload)
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	return &out
}

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// Handler implements one named provider operation. The returned value is
// marshalled to JSON as the success payload.
type Handler func(ctx context.Context, req *domain.Request) (any, error)

// OperationSet is a provider built from named operation handlers.
type OperationSet struct {
	name string
	ops  map[string]Handler
	caps ports.Capabilities
}

// NewOperationSet creates a provider named name with no operations.
func NewOperationSet(name string) *OperationSet {
	return &OperationSet{name: name, ops: make(map[string]Handler)}
}

// Handle registers an operation handler. It returns the set for chaining.
func (s *OperationSet) Handle(operation string, h Handler) *OperationSet {
	s.ops[operation] = h
	return s
}

// SingleFlight declares that calls to this provider must be serialized.
func (s *OperationSet) SingleFlight() *OperationSet {
	s.caps.SingleFlight = true
	return s
}

// RetryOnTimeout declares that timed-out calls may be retried.
func (s *OperationSet) RetryOnTimeout() *OperationSet {
	s.caps.RetryOnTimeout = true
	return s
}

func (s *OperationSet) Name() string {
	return s.name
}

// Capabilities implements ports.Describer.
func (s *OperationSet) Capabilities() ports.Capabilities {
	caps := s.caps
	caps.Operations = make([]string, 0, len(s.ops))
	for op := range s.ops {
		caps.Operations = append(caps.Operations, op)
	}
	sort.Strings(caps.Operations)
	return caps
}

// Invoke dispatches to the handler registered for req.Operation.
func (s *OperationSet) Invoke(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	h, ok := s.ops[req.Operation]
	if !ok {
		return req.Fail(domain.NewError(domain.KindUnknownOperation,
			fmt.Sprintf("provider %s has no operation %q", s.name, req.Operation)), nil), nil
	}

	result, err := h(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, domain.ErrProvider("failed to encode payload").WithCause(err)
	}
	return req.Reply(payload), nil
}

var (
	_ ports.Provider  = (*OperationSet)(nil)
	_ ports.Describer = (*OperationSet)(nil)
)

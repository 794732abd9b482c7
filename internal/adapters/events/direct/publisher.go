// Package direct provides a direct event publisher that writes to the trip
// store.
package direct

import (
	"context"
	"fmt"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// Publisher implements ports.EventPublisher by appending events to the trip
// store, where they are listed next to the trip they belong to. This is the
// default implementation for single-instance deployments.
type Publisher struct {
	store ports.TripStore
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new direct event publisher.
func NewPublisher(store ports.TripStore) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("trip store required")
	}

	return &Publisher{
		store: store,
	}, nil
}

// Publish writes a lifecycle event directly to storage.
func (p *Publisher) Publish(ctx context.Context, event *domain.LifecycleEvent) error {
	if event == nil {
		return nil
	}
	return p.store.AppendEvent(ctx, event)
}

// Close is a no-op for direct publisher; the store is owned by the caller.
func (p *Publisher) Close() error {
	return nil
}

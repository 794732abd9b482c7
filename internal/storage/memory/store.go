package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/storage"
)

// Store is an in-memory implementation of TripStore
type Store struct {
	mu     sync.RWMutex
	trips  map[string]*domain.TripPlan
	events map[string][]*domain.LifecycleEvent
}

var _ storage.TripStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		trips:  make(map[string]*domain.TripPlan),
		events: make(map[string][]*domain.LifecycleEvent),
	}
}

func (s *Store) SaveTrip(ctx context.Context, plan *domain.TripPlan) error {
	if plan == nil || plan.ID() == "" {
		return domain.ErrInvalidRequest("trip plan has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trips[plan.ID()] = plan
	return nil
}

func (s *Store) GetTrip(ctx context.Context, id string) (*domain.TripPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, exists := s.trips[id]
	if !exists {
		return nil, domain.ErrNotFound(fmt.Sprintf("trip %s not found", id))
	}
	return plan, nil
}

// ListTrips returns trips newest first.
func (s *Store) ListTrips(ctx context.Context, opts storage.ListOptions) ([]*storage.TripSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.TripSummary, 0, len(s.trips))
	for _, plan := range s.trips {
		result = append(result, storage.Summarize(plan))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start, end := storage.Page(len(result), opts)
	return result[start:end], nil
}

func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trips[id]; !exists {
		return domain.ErrNotFound(fmt.Sprintf("trip %s not found", id))
	}
	delete(s.trips, id)
	delete(s.events, id)
	return nil
}

// AppendEvent records a lifecycle event. Events may arrive before their trip
// is saved.
func (s *Store) AppendEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	if event.PlanID == "" {
		return domain.ErrInvalidRequest("lifecycle event has no plan id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *event
	s.events[event.PlanID] = append(s.events[event.PlanID], &e)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, planID string) ([]*domain.LifecycleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[planID]
	out := make([]*domain.LifecycleEvent, len(events))
	for i, e := range events {
		c := *e
		out[i] = &c
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/storage"
)

// Store is a SQLite implementation of TripStore. Trip plans are stored
// verbatim as their JSON document next to a few listing columns.
type Store struct {
	db *sql.DB
}

// Ensure Store implements TripStore
var _ storage.TripStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trips (
			id TEXT PRIMARY KEY,
			origin TEXT NOT NULL,
			destination TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			degraded TEXT,
			document TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trip_events (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			intent_id TEXT,
			provider TEXT,
			attempt INTEGER,
			error_kind TEXT,
			message TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trips_created ON trips(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_events_plan ON trip_events(plan_id, seq)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveTrip(ctx context.Context, plan *domain.TripPlan) error {
	if plan == nil || plan.ID() == "" {
		return domain.ErrInvalidRequest("trip plan has no id")
	}

	document, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal trip: %w", err)
	}
	summary := storage.Summarize(plan)
	degraded, err := json.Marshal(summary.Degraded)
	if err != nil {
		return fmt.Errorf("failed to marshal degraded sections: %w", err)
	}

	query := `INSERT INTO trips (id, origin, destination, start_date, end_date, degraded, document, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	            origin = excluded.origin,
	            destination = excluded.destination,
	            start_date = excluded.start_date,
	            end_date = excluded.end_date,
	            degraded = excluded.degraded,
	            document = excluded.document`

	_, err = s.db.ExecContext(ctx, query,
		summary.ID, summary.Origin, summary.Destination, summary.StartDate, summary.EndDate,
		string(degraded), string(document), summary.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save trip: %w", err)
	}
	return nil
}

func (s *Store) GetTrip(ctx context.Context, id string) (*domain.TripPlan, error) {
	var document string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM trips WHERE id = ?`, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound(fmt.Sprintf("trip %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	plan, err := domain.UnmarshalTripPlan([]byte(document))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trip: %w", err)
	}
	return plan, nil
}

// ListTrips returns trips newest first.
func (s *Store) ListTrips(ctx context.Context, opts storage.ListOptions) ([]*storage.TripSummary, error) {
	query := `SELECT id, origin, destination, start_date, end_date, degraded, created_at
	          FROM trips
	          ORDER BY created_at DESC, id ASC
	          LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit <= 0 {
		limit = 100 // default limit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	trips := []*storage.TripSummary{}
	for rows.Next() {
		var t storage.TripSummary
		var degraded sql.NullString
		if err := rows.Scan(&t.ID, &t.Origin, &t.Destination, &t.StartDate, &t.EndDate, &degraded, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		if degraded.Valid && degraded.String != "" {
			if err := json.Unmarshal([]byte(degraded.String), &t.Degraded); err != nil {
				return nil, fmt.Errorf("failed to unmarshal degraded sections: %w", err)
			}
		}
		trips = append(trips, &t)
	}

	return trips, rows.Err()
}

func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound(fmt.Sprintf("trip %s not found", id))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trip_events WHERE plan_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete trip events: %w", err)
	}

	return tx.Commit()
}

// AppendEvent records a lifecycle event. Events may arrive before their trip
// is saved, so there is no foreign key to trips.
func (s *Store) AppendEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	if event.PlanID == "" {
		return domain.ErrInvalidRequest("lifecycle event has no plan id")
	}
	id := event.ID
	if id == "" {
		id = fmt.Sprintf("%s-%d", event.PlanID, time.Now().UnixNano())
	}
	createdAt := event.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO trip_events (id, plan_id, seq, type, intent_id, provider, attempt, error_kind, message, created_at)
	          VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM trip_events WHERE plan_id = ?), ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		id, event.PlanID, event.PlanID, string(event.Type), event.IntentID, event.Provider,
		event.Attempt, string(event.ErrorKind), event.Message, createdAt)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, planID string) ([]*domain.LifecycleEvent, error) {
	query := `SELECT id, plan_id, type, intent_id, provider, attempt, error_kind, message, created_at
	          FROM trip_events WHERE plan_id = ?
	          ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []*domain.LifecycleEvent{}
	for rows.Next() {
		var (
			e                                 domain.LifecycleEvent
			typ                               string
			intentID, provider, kind, message sql.NullString
			attempt                           sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.PlanID, &typ, &intentID, &provider, &attempt, &kind, &message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = domain.LifecycleEventType(typ)
		e.IntentID = intentID.String
		e.Provider = provider.String
		e.Attempt = int(attempt.Int64)
		e.ErrorKind = domain.ErrorKind(kind.String)
		e.Message = message.String
		events = append(events, &e)
	}

	return events, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

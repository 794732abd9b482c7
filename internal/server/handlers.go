package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// maxBodyBytes bounds plan request bodies.
const maxBodyBytes = 1 << 20

// PlanRequest is the body of POST /v1/plans: the trip request fields plus an
// optional invocation plan. Without intents the default plan runs.
type PlanRequest struct {
	domain.TripRequest
	Intents []domain.InvocationIntent `json:"intents,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind     string                      `json:"kind"`
	Message  string                      `json:"message"`
	Field    string                      `json:"field,omitempty"`
	Cycle    []string                    `json:"cycle,omitempty"`
	Sections map[string]domain.ErrorKind `json:"sections,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.svc.Providers()
	if providers == nil {
		providers = map[string]ports.Capabilities{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var body PlanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, domain.ErrInvalidRequest("malformed request body: "+err.Error()))
		return
	}

	trip, err := s.svc.Plan(r.Context(), body.TripRequest, body.Intents)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	AddLogField(r.Context(), "plan_id", trip.ID())
	AddLogField(r.Context(), "degraded", strings.Join(trip.Degraded(), ","))
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	store := s.store(w, r)
	if store == nil {
		return
	}
	opts := ports.ListOptions{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, domain.ErrInvalidRequest("limit must be a non-negative integer"))
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, domain.ErrInvalidRequest("offset must be a non-negative integer"))
			return
		}
		opts.Offset = n
	}

	trips, err := store.ListTrips(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trips": trips})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	store := s.store(w, r)
	if store == nil {
		return
	}
	trip, err := store.GetTrip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	store := s.store(w, r)
	if store == nil {
		return
	}
	if err := store.DeleteTrip(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	store := s.store(w, r)
	if store == nil {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := store.GetTrip(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := store.ListEvents(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// store returns the trip store or answers 404 when history is disabled.
func (s *Server) store(w http.ResponseWriter, r *http.Request) ports.TripStore {
	store := s.svc.Store()
	if store == nil {
		s.writeError(w, r, domain.ErrNotFound("trip history is disabled"))
	}
	return store
}

// writeError maps err to a status code and the JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	detail := errorDetail{Kind: string(kind), Message: err.Error()}

	var (
		de    *domain.Error
		verr  *domain.ValidationError
		cycle *domain.CycleError
		total *domain.TotalFailureError
	)
	switch {
	case errors.As(err, &verr):
		detail.Field = verr.Field
		detail.Message = verr.Reason
	case errors.As(err, &cycle):
		detail.Cycle = cycle.Path
	case errors.As(err, &total):
		detail.Sections = total.Sections
	case errors.As(err, &de):
		detail.Message = de.Message
	}

	AddLogField(r.Context(), "error_kind", string(kind))
	AddError(r.Context(), err)
	writeJSON(w, domain.StatusForKind(kind), errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

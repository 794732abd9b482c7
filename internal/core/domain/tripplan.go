package domain

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// Section names used by the default plan.
const (
	SectionWeather   = "weather"
	SectionFlights   = "flights"
	SectionHotels    = "hotels"
	SectionItinerary = "itinerary"
	SectionBudget    = "budget"
	SectionVisa      = "visa"
	SectionTransport = "transport"
	SectionLanguage  = "language"
)

// SectionFailure is recorded in place of a section payload when its intent
// failed or was skipped.
type SectionFailure struct {
	Kind    ErrorKind       `json:"kind"`
	Message string          `json:"message"`
	Partial json.RawMessage `json:"partial,omitempty"`

	// Chain lists the failed intents behind a dependency_failed skip.
	Chain []string `json:"chain,omitempty"`
}

// Section is one named slice of a trip plan: either a payload or a failure.
type Section struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Failure *SectionFailure `json:"failure,omitempty"`
}

// Degraded reports whether the section holds a failure.
func (s Section) Degraded() bool {
	return s.Failure != nil
}

// TripPlan is the immutable aggregate returned by a planning call. Only the
// aggregator constructs it; accessors return copies.
type TripPlan struct {
	id        string
	request   TripRequest
	sections  map[string]Section
	report    *ExecutionReport
	createdAt time.Time
}

// NewTripPlan builds a trip plan. Section payloads and the report are
// copied so later mutation of the inputs cannot leak into the plan.
func NewTripPlan(id string, req TripRequest, sections map[string]Section, report *ExecutionReport, createdAt time.Time) *TripPlan {
	owned := make(map[string]Section, len(sections))
	for name, s := range sections {
		owned[name] = cloneSection(s)
	}
	req.Interests = append([]string(nil), req.Interests...)
	if req.TravelerAge != nil {
		age := *req.TravelerAge
		req.TravelerAge = &age
	}
	return &TripPlan{
		id:        id,
		request:   req,
		sections:  owned,
		report:    report.Clone(),
		createdAt: createdAt,
	}
}

func cloneSection(s Section) Section {
	out := Section{Name: s.Name, Payload: bytes.Clone(s.Payload)}
	if s.Failure != nil {
		f := *s.Failure
		f.Partial = bytes.Clone(s.Failure.Partial)
		f.Chain = append([]string(nil), s.Failure.Chain...)
		out.Failure = &f
	}
	return out
}

// ID returns the plan id.
func (p *TripPlan) ID() string { return p.id }

// Request returns a copy of the originating request.
func (p *TripPlan) Request() TripRequest {
	req := p.request
	req.Interests = append([]string(nil), p.request.Interests...)
	if p.request.TravelerAge != nil {
		age := *p.request.TravelerAge
		req.TravelerAge = &age
	}
	return req
}

// CreatedAt returns when the plan was aggregated.
func (p *TripPlan) CreatedAt() time.Time { return p.createdAt }

// Section returns a copy of the named section.
func (p *TripPlan) Section(name string) (Section, bool) {
	s, ok := p.sections[name]
	if !ok {
		return Section{}, false
	}
	return cloneSection(s), true
}

// SectionNames returns all section names, sorted.
func (p *TripPlan) SectionNames() []string {
	names := make([]string, 0, len(p.sections))
	for name := range p.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Degraded returns the names of sections holding a failure, sorted.
func (p *TripPlan) Degraded() []string {
	var names []string
	for name, s := range p.sections {
		if s.Degraded() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DecodeSection unmarshals a populated section payload into v. It returns
// false when the section is absent or degraded.
func (p *TripPlan) DecodeSection(name string, v any) (bool, error) {
	s, ok := p.sections[name]
	if !ok || s.Degraded() {
		return false, nil
	}
	if err := json.Unmarshal(s.Payload, v); err != nil {
		return false, err
	}
	return true, nil
}

// Report returns a copy of the execution report the plan was built from.
func (p *TripPlan) Report() *ExecutionReport { return p.report.Clone() }

type tripPlanJSON struct {
	ID        string             `json:"id"`
	Request   TripRequest        `json:"request"`
	Sections  map[string]Section `json:"sections"`
	Degraded  []string           `json:"degraded,omitempty"`
	Report    *ExecutionReport   `json:"report,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// MarshalJSON exposes the plan as a read-only document.
func (p *TripPlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(tripPlanJSON{
		ID:        p.id,
		Request:   p.request,
		Sections:  p.sections,
		Degraded:  p.Degraded(),
		Report:    p.report,
		CreatedAt: p.createdAt,
	})
}

// UnmarshalTripPlan restores a plan persisted with MarshalJSON.
func UnmarshalTripPlan(data []byte) (*TripPlan, error) {
	var doc tripPlanJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return NewTripPlan(doc.ID, doc.Request, doc.Sections, doc.Report, doc.CreatedAt), nil
}

package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar date layout used for trip dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	time.Time
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// MustDate parses a date and panics on failure. Intended for tests and fixtures.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the date in ISO layout.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidCurrency reports whether code looks like an ISO 4217 alphabetic code.
func ValidCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}

// TripRequest is the structured input to one planning call. It is never
// mutated after validation.
type TripRequest struct {
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	StartDate      Date            `json:"start_date"`
	EndDate        Date            `json:"end_date"`
	TravelerCount  int             `json:"traveler_count"`
	BudgetAmount   decimal.Decimal `json:"budget_amount"`
	BudgetCurrency string          `json:"budget_currency"`
	TravelerAge    *int            `json:"traveler_age,omitempty"`
	HomeCountry    string          `json:"home_country"`

	// DestinationCountry is the ISO country code of the destination. Optional;
	// providers resolve it from Destination when empty.
	DestinationCountry string   `json:"destination_country,omitempty"`
	Interests          []string `json:"interests,omitempty"`
}

// Nights returns the number of nights between start and end date.
func (r *TripRequest) Nights() int {
	return int(r.EndDate.Sub(r.StartDate.Time).Hours() / 24)
}

// Validate checks the structural invariants of the request and normalizes
// the interest set (deduplicated, sorted).
func (r *TripRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Origin) == "":
		return &ValidationError{Field: "origin", Reason: "required"}
	case strings.TrimSpace(r.Destination) == "":
		return &ValidationError{Field: "destination", Reason: "required"}
	case r.StartDate.IsZero():
		return &ValidationError{Field: "start_date", Reason: "required"}
	case r.EndDate.IsZero():
		return &ValidationError{Field: "end_date", Reason: "required"}
	case !r.StartDate.Before(r.EndDate.Time):
		return &ValidationError{Field: "end_date", Reason: "must be after start_date"}
	case r.TravelerCount < 1:
		return &ValidationError{Field: "traveler_count", Reason: "must be at least 1"}
	case r.BudgetAmount.IsNegative():
		return &ValidationError{Field: "budget_amount", Reason: "must not be negative"}
	case !ValidCurrency(r.BudgetCurrency):
		return &ValidationError{Field: "budget_currency", Reason: "must be an ISO 4217 code"}
	case r.TravelerAge != nil && *r.TravelerAge < 0:
		return &ValidationError{Field: "traveler_age", Reason: "must not be negative"}
	case strings.TrimSpace(r.HomeCountry) == "":
		return &ValidationError{Field: "home_country", Reason: "required"}
	}

	seen := make(map[string]struct{}, len(r.Interests))
	interests := make([]string, 0, len(r.Interests))
	for _, tag := range r.Interests {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		interests = append(interests, tag)
	}
	sort.Strings(interests)
	r.Interests = interests
	return nil
}

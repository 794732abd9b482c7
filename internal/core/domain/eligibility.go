package domain

// VisaRequirement is a tri-state visa answer. Unknown is never coerced to
// required or not required.
type VisaRequirement string

const (
	VisaRequired    VisaRequirement = "required"
	VisaNotRequired VisaRequirement = "not_required"
	VisaUnknown     VisaRequirement = "unknown"
)

// VisaRuleset is the reference entry for an origin/destination country pair.
type VisaRuleset struct {
	OriginCountry      string          `json:"origin_country"`
	DestinationCountry string          `json:"destination_country"`
	VisaRequired       bool            `json:"visa_required"`
	VisaType           string          `json:"visa_type,omitempty"`
	RequiredDocuments  []string        `json:"required_documents,omitempty"`
	ProcessingTimeDays *int            `json:"processing_time_days,omitempty"`
	Cost               *MonetaryAmount `json:"cost,omitempty"`
	MaxStayDays        *int            `json:"max_stay_days,omitempty"`
	Notes              string          `json:"notes,omitempty"`
}

// VisaVerdict is the eligibility filter's visa answer for one trip.
type VisaVerdict struct {
	OriginCountry      string          `json:"origin_country"`
	DestinationCountry string          `json:"destination_country"`
	VisaRequired       VisaRequirement `json:"visa_required"`
	VisaType           string          `json:"visa_type,omitempty"`
	RequiredDocuments  []string        `json:"required_documents"`
	ProcessingTimeDays *int            `json:"processing_time_days,omitempty"`
	Cost               *MonetaryAmount `json:"cost,omitempty"`

	// Error is set to visa_status_unknown when no ruleset exists.
	Error *Error `json:"error,omitempty"`
}

// Activity is a candidate itinerary activity with optional age constraints.
type Activity struct {
	ID                      string          `json:"activity_id"`
	Name                    string          `json:"name"`
	Day                     int             `json:"day,omitempty"`
	Cost                    *MonetaryAmount `json:"cost,omitempty"`
	MinimumAge              *int            `json:"minimum_age,omitempty"`
	MaximumAge              *int            `json:"maximum_age,omitempty"`
	RequiresParentalConsent bool            `json:"requires_parental_consent,omitempty"`
	Tags                    []string        `json:"tags,omitempty"`
}

// EligibilityVerdict is the age verdict for one activity.
type EligibilityVerdict struct {
	ActivityID string `json:"activity_id"`
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
}

// RequirementKind classifies a blocking requirement.
type RequirementKind string

const (
	RequirementVisa            RequirementKind = "visa"
	RequirementVisaUnknown     RequirementKind = "visa_status_unknown"
	RequirementParentalConsent RequirementKind = "parental_consent"
)

// Requirement is something the traveler must resolve before the trip.
type Requirement struct {
	Kind       RequirementKind `json:"kind"`
	Message    string          `json:"message"`
	ActivityID string          `json:"activity_id,omitempty"`
	Documents  []string        `json:"documents,omitempty"`
}

// EligibilityReport is the total output of the eligibility filter.
type EligibilityReport struct {
	Visa         VisaVerdict          `json:"visa"`
	Verdicts     []EligibilityVerdict `json:"verdicts"`
	Allowed      []Activity           `json:"allowed_activities"`
	Requirements []Requirement        `json:"blocking_requirements"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetStatus reports whether spending stays within the budget.
type BudgetStatus string

const (
	BudgetWithin   BudgetStatus = "within_budget"
	BudgetExceeded BudgetStatus = "exceeded"
)

// LineStatus describes how a category figure was obtained.
type LineStatus string

const (
	// LineConverted is a category converted (or already) in home currency.
	LineConverted LineStatus = "converted"

	// LineCachedRate was converted with a cached rate after the live lookup failed.
	LineCachedRate LineStatus = "cached_rate"

	// LineUnconverted could not be converted and is excluded from totals.
	LineUnconverted LineStatus = "unconverted"

	// LineDataMissing had no cost data at all, distinct from a genuine zero.
	LineDataMissing LineStatus = "data_missing"
)

// DualAmount is a figure in both home and destination currency.
type DualAmount struct {
	Home        decimal.Decimal  `json:"home"`
	Destination *decimal.Decimal `json:"destination,omitempty"`
}

// BudgetLine is the reconciled figure for one category.
type BudgetLine struct {
	Category Category   `json:"category"`
	Status   LineStatus `json:"status"`

	// Original lists the amounts as reported, in their own currencies.
	Original []MonetaryAmount `json:"original,omitempty"`

	// Converted is the per-category total; zero for unconverted/missing lines.
	Converted DualAmount `json:"converted"`

	// RateAsOf is when the rate used was obtained, for cached_rate lines.
	RateAsOf *time.Time `json:"rate_as_of,omitempty"`
	Note     string     `json:"note,omitempty"`
}

// BudgetBreakdown is the reconciled budget of a trip.
type BudgetBreakdown struct {
	HomeCurrency        string `json:"home_currency"`
	DestinationCurrency string `json:"destination_currency"`

	// ExchangeRate is destination units per home unit; nil when unavailable.
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`

	Budget     DualAmount              `json:"budget"`
	Categories map[Category]BudgetLine `json:"categories"`
	TotalSpent DualAmount              `json:"total_spent"`
	Remaining  DualAmount              `json:"remaining"`
	Status     BudgetStatus            `json:"status"`
}

// Flagged returns the categories whose line is not fully converted.
func (b *BudgetBreakdown) Flagged() map[Category]LineStatus {
	out := make(map[Category]LineStatus)
	for cat, line := range b.Categories {
		if line.Status == LineUnconverted || line.Status == LineDataMissing {
			out[cat] = line.Status
		}
	}
	return out
}

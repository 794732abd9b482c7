package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places money is rounded to.
const MoneyPlaces = 2

// MonetaryAmount is a non-negative decimal value in an ISO 4217 currency.
type MonetaryAmount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// Money builds an amount from a string value, panicking on malformed input.
// Intended for fixtures and tests.
func Money(value, currency string) MonetaryAmount {
	return MonetaryAmount{Value: decimal.RequireFromString(value), Currency: currency}
}

// Validate checks the amount is non-negative and the currency well formed.
func (m MonetaryAmount) Validate() error {
	if m.Value.IsNegative() {
		return fmt.Errorf("amount %s is negative", m.Value)
	}
	if !ValidCurrency(m.Currency) {
		return fmt.Errorf("invalid currency %q", m.Currency)
	}
	return nil
}

func (m MonetaryAmount) String() string {
	return m.Value.StringFixed(MoneyPlaces) + " " + m.Currency
}

// Category is a budget category.
type Category string

const (
	CategoryFlights    Category = "flights"
	CategoryHotel      Category = "hotel"
	CategoryActivities Category = "activities"
	CategoryMeals      Category = "meals"
	CategoryTransport  Category = "transport"
)

// Categories lists the budget categories in breakdown order.
var Categories = []Category{
	CategoryFlights,
	CategoryHotel,
	CategoryActivities,
	CategoryMeals,
	CategoryTransport,
}

// CategoryCost is one cost line reported by a provider payload under "costs".
type CategoryCost struct {
	Category Category       `json:"category"`
	Amount   MonetaryAmount `json:"amount"`
	Source   string         `json:"source,omitempty"`
}

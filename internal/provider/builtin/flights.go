package builtin

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

// FlightOption is one round-trip fare.
type FlightOption struct {
	Carrier       string                `json:"carrier"`
	From          string                `json:"from"`
	To            string                `json:"to"`
	Stops         int                   `json:"stops"`
	DurationHours int                   `json:"duration_hours"`
	Cabin         string                `json:"cabin"`
	PerTraveler   domain.MonetaryAmount `json:"per_traveler"`
}

// FlightsPayload is the flights provider's search result. Options are sorted
// by price; the first one is selected and priced in Costs.
type FlightsPayload struct {
	Options  []FlightOption        `json:"options"`
	Selected int                   `json:"selected"`
	Costs    []domain.CategoryCost `json:"costs"`
}

var carriers = []struct {
	name  string
	ratio string
	stops int
}{
	{"Air Meridian", "1.00", 0},
	{"Polar Wings", "0.86", 1},
	{"Coastline Airways", "1.12", 0},
}

func newFlights(cfg config.ProviderConfig, _ provider.Dependencies) (ports.Provider, error) {
	set := provider.NewOperationSet(cfg.Name).Handle("search", searchFlights)
	return configure(set, cfg), nil
}

func searchFlights(ctx context.Context, req *domain.Request) (any, error) {
	t, err := trip(req)
	if err != nil {
		return nil, err
	}
	origin := cityOrGeneric(t.Origin, t.BudgetCurrency)
	dest := cityOrGeneric(t.Destination, t.BudgetCurrency)
	currency := origin.Currency
	if currency == "" {
		currency = t.BudgetCurrency
	}

	cabin := req.Param("cabin", "economy")
	multiplier := decimal.NewFromInt(1)
	if cabin == "business" {
		multiplier = d("2.8")
	}

	// Base fare in USD scaled by a per-route factor, then expressed in the
	// origin currency using a coarse local-price factor.
	base := decimal.NewFromInt(int64(380 + 10*spread(90, origin.Name, dest.Name)))
	hours := 2 + spread(12, dest.Name, origin.Name)

	var options []FlightOption
	for _, c := range carriers {
		price := base.Mul(d(c.ratio)).Mul(multiplier).Mul(localPriceFactor(currency)).Round(0)
		options = append(options, FlightOption{
			Carrier:       c.name,
			From:          airportOf(origin),
			To:            airportOf(dest),
			Stops:         c.stops,
			DurationHours: hours + 3*c.stops,
			Cabin:         cabin,
			PerTraveler:   domain.MonetaryAmount{Value: price, Currency: currency},
		})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].PerTraveler.Value.LessThan(options[j].PerTraveler.Value)
	})

	total := options[0].PerTraveler.Value.Mul(decimal.NewFromInt(int64(t.TravelerCount)))
	return FlightsPayload{
		Options:  options,
		Selected: 0,
		Costs: []domain.CategoryCost{{
			Category: domain.CategoryFlights,
			Amount:   domain.MonetaryAmount{Value: total, Currency: currency},
			Source:   Flights,
		}},
	}, nil
}

func airportOf(c City) string {
	if c.Airport != "" {
		return c.Airport
	}
	return c.Name
}

// localPriceFactor approximates how many local units a USD-priced fare costs.
func localPriceFactor(currency string) decimal.Decimal {
	switch currency {
	case "EUR":
		return d("0.92")
	case "GBP":
		return d("0.79")
	case "JPY":
		return d("150")
	case "MXN":
		return d("17")
	default:
		return decimal.NewFromInt(1)
	}
}

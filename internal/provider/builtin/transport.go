package builtin

import (
	"context"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

// TransportOption is one way of getting around.
type TransportOption struct {
	Mode        string                `json:"mode"`
	Description string                `json:"description"`
	Minutes     int                   `json:"minutes,omitempty"`
	Price       domain.MonetaryAmount `json:"price"`
}

// TransportPayload lists airport transfers and local transit.
type TransportPayload struct {
	City            string            `json:"city"`
	AirportTransfer []TransportOption `json:"airport_transfer"`
	Local           []TransportOption `json:"local"`
}

func newTransport(cfg config.ProviderConfig, _ provider.Dependencies) (ports.Provider, error) {
	set := provider.NewOperationSet(cfg.Name).Handle("options", transportOptions)
	return configure(set, cfg), nil
}

func transportOptions(ctx context.Context, req *domain.Request) (any, error) {
	t, err := trip(req)
	if err != nil {
		return nil, err
	}
	city := cityOrGeneric(t.Destination, t.BudgetCurrency)
	price := func(ratio string) domain.MonetaryAmount {
		return domain.MonetaryAmount{Value: city.TransitPerDay.Mul(d(ratio)).Round(domain.MoneyPlaces), Currency: city.Currency}
	}

	return TransportPayload{
		City: city.Name,
		AirportTransfer: []TransportOption{
			{Mode: "train", Description: "Airport rail link from " + airportOf(city), Minutes: 35 + spread(20, city.Name), Price: price("1.4")},
			{Mode: "taxi", Description: "Flat-rate taxi", Minutes: 45 + spread(25, city.Name, "taxi"), Price: price("6.5")},
		},
		Local: []TransportOption{
			{Mode: "metro", Description: "Single ride", Price: price("0.3")},
			{Mode: "pass", Description: "Unlimited day pass", Price: price("1")},
			{Mode: "bike", Description: "Bike share, 30 minutes", Price: price("0.35")},
		},
	}, nil
}

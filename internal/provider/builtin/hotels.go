package builtin

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

// HotelOption is one bookable stay.
type HotelOption struct {
	Name     string                `json:"name"`
	Tier     string                `json:"tier"`
	Rating   float64               `json:"rating"`
	Nightly  domain.MonetaryAmount `json:"nightly"`
	Rooms    int                   `json:"rooms"`
	Nights   int                   `json:"nights"`
	StayCost domain.MonetaryAmount `json:"stay_cost"`
}

// HotelsPayload is the hotels provider's search result.
type HotelsPayload struct {
	Options  []HotelOption         `json:"options"`
	Selected int                   `json:"selected"`
	Costs    []domain.CategoryCost `json:"costs"`
}

var hotelTiers = []struct {
	tier   string
	prefix string
	ratio  string
	rating float64
}{
	{"budget", "Hostel", "0.55", 3.9},
	{"standard", "Hotel", "1.00", 4.3},
	{"luxury", "Grand", "2.10", 4.8},
}

func newHotels(cfg config.ProviderConfig, _ provider.Dependencies) (ports.Provider, error) {
	// Hotel searches are idempotent, so a killed call is safe to repeat.
	set := provider.NewOperationSet(cfg.Name).
		Handle("search", searchHotels).
		RetryOnTimeout()
	return configure(set, cfg), nil
}

func searchHotels(ctx context.Context, req *domain.Request) (any, error) {
	t, err := trip(req)
	if err != nil {
		return nil, err
	}
	city := cityOrGeneric(t.Destination, t.BudgetCurrency)
	nights := t.Nights()
	rooms := (t.TravelerCount + 1) / 2
	want := req.Param("tier", "standard")

	out := HotelsPayload{}
	for i, tier := range hotelTiers {
		nightly := city.HotelPerNight.Mul(d(tier.ratio)).Round(domain.MoneyPlaces)
		stay := nightly.Mul(decimal.NewFromInt(int64(nights * rooms)))
		out.Options = append(out.Options, HotelOption{
			Name:     tier.prefix + " " + city.Name + " " + districtOf(city.Name, tier.tier),
			Tier:     tier.tier,
			Rating:   tier.rating,
			Nightly:  domain.MonetaryAmount{Value: nightly, Currency: city.Currency},
			Rooms:    rooms,
			Nights:   nights,
			StayCost: domain.MonetaryAmount{Value: stay, Currency: city.Currency},
		})
		if tier.tier == want {
			out.Selected = i
		}
	}

	selected := out.Options[out.Selected]
	out.Costs = []domain.CategoryCost{{
		Category: domain.CategoryHotel,
		Amount:   selected.StayCost,
		Source:   Hotels,
	}}
	return out, nil
}

var districts = []string{"Central", "Riverside", "Old Town", "Station", "Garden"}

func districtOf(city, tier string) string {
	return districts[spread(len(districts), city, tier)]
}

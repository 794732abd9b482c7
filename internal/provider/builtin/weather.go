package builtin

import (
	"context"
	"time"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

// DayForecast is the forecast for one day of the trip.
type DayForecast struct {
	Date                string `json:"date"`
	HighC               int    `json:"high_c"`
	LowC                int    `json:"low_c"`
	Condition           string `json:"condition"`
	PrecipitationChance int    `json:"precipitation_chance"`
}

// ForecastPayload is the weather provider's forecast result.
type ForecastPayload struct {
	City     string        `json:"city"`
	Days     []DayForecast `json:"days"`
	PackList []string      `json:"pack_list"`
}

func newWeather(cfg config.ProviderConfig, _ provider.Dependencies) (ports.Provider, error) {
	set := provider.NewOperationSet(cfg.Name).Handle("forecast", forecast)
	return configure(set, cfg), nil
}

func forecast(ctx context.Context, req *domain.Request) (any, error) {
	t, err := trip(req)
	if err != nil {
		return nil, err
	}
	city := cityOrGeneric(req.Param("city", t.Destination), t.BudgetCurrency)

	out := ForecastPayload{City: city.Name}
	rainy := false
	for i, day := range dates(t) {
		if i >= 31 {
			break
		}
		date := day.Format(domain.DateLayout)
		high := city.ClimateHighC + spread(7, city.Name, date) - 3
		f := DayForecast{
			Date:                date,
			HighC:               high,
			LowC:                high - 7 - spread(3, date, city.Name),
			Condition:           "sunny",
			PrecipitationChance: 10 * spread(3, "rain", date),
		}
		if spread(10, city.Name, date, "rain") < city.ClimateRainDays {
			f.Condition = "rain"
			f.PrecipitationChance = 60 + 10*spread(4, date)
			rainy = true
		} else if spread(3, date, "cloud") == 0 {
			f.Condition = "partly cloudy"
		}
		out.Days = append(out.Days, f)
	}

	out.PackList = []string{"comfortable walking shoes"}
	if rainy {
		out.PackList = append(out.PackList, "umbrella")
	}
	if city.ClimateHighC >= 25 {
		out.PackList = append(out.PackList, "sunscreen")
	}
	if city.ClimateHighC < 20 {
		out.PackList = append(out.PackList, "light jacket")
	}
	return out, nil
}

// dates lists the trip's dates, start through end inclusive.
func dates(t *domain.TripRequest) []time.Time {
	var out []time.Time
	for day := t.StartDate.Time; !day.After(t.EndDate.Time); day = day.AddDate(0, 0, 1) {
		out = append(out, day)
	}
	return out
}

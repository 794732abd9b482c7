package builtin

import (
	"hash/fnv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
)

// City is the reference data the built-in providers share.
type City struct {
	Name     string
	Country  string // ISO 3166-1 alpha-2
	Currency string
	Language string
	Airport  string

	// Daily cost levels in the local currency.
	MealsPerDay     decimal.Decimal
	TransitPerDay   decimal.Decimal
	HotelPerNight   decimal.Decimal
	ClimateHighC    int
	ClimateRainDays int // per 10 days

	Activities []domain.Activity
	Phrases    map[string]string
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func age(v int) *int { return &v }

func fee(value, currency string) *domain.MonetaryAmount {
	m := domain.Money(value, currency)
	return &m
}

var cities = []City{
	{
		Name: "Paris", Country: "FR", Currency: "EUR", Language: "French", Airport: "CDG",
		MealsPerDay: d("55"), TransitPerDay: d("8.50"), HotelPerNight: d("160"),
		ClimateHighC: 22, ClimateRainDays: 3,
		Activities: []domain.Activity{
			{ID: "paris-louvre", Name: "Louvre Museum", Cost: fee("22", "EUR"), Tags: []string{"art", "history"}},
			{ID: "paris-eiffel", Name: "Eiffel Tower summit", Cost: fee("29.40", "EUR"), Tags: []string{"sightseeing"}},
			{ID: "paris-wine", Name: "Montmartre wine tasting", Cost: fee("45", "EUR"), MinimumAge: age(18), Tags: []string{"food", "nightlife"}},
			{ID: "paris-seine", Name: "Seine river cruise", Cost: fee("18", "EUR"), Tags: []string{"sightseeing"}},
			{ID: "paris-puppets", Name: "Luxembourg Gardens puppet show", Cost: fee("6", "EUR"), MaximumAge: age(12), Tags: []string{"family"}},
			{ID: "paris-catacombs", Name: "Catacombs tour", Cost: fee("29", "EUR"), MinimumAge: age(14), RequiresParentalConsent: true, Tags: []string{"history", "adventure"}},
		},
		Phrases: map[string]string{"hello": "Bonjour", "thank you": "Merci", "please": "S'il vous plaît", "where is": "Où est"},
	},
	{
		Name: "London", Country: "GB", Currency: "GBP", Language: "English", Airport: "LHR",
		MealsPerDay: d("50"), TransitPerDay: d("8.10"), HotelPerNight: d("150"),
		ClimateHighC: 19, ClimateRainDays: 4,
		Activities: []domain.Activity{
			{ID: "london-museum", Name: "British Museum", Cost: fee("0", "GBP"), Tags: []string{"history", "art"}},
			{ID: "london-eye", Name: "London Eye", Cost: fee("32", "GBP"), Tags: []string{"sightseeing"}},
			{ID: "london-pub", Name: "Historic pub crawl", Cost: fee("35", "GBP"), MinimumAge: age(18), Tags: []string{"nightlife", "food"}},
			{ID: "london-theatre", Name: "West End show", Cost: fee("75", "GBP"), Tags: []string{"art", "nightlife"}},
		},
		Phrases: map[string]string{"hello": "Hello", "thank you": "Cheers", "where is": "Where is"},
	},
	{
		Name: "Tokyo", Country: "JP", Currency: "JPY", Language: "Japanese", Airport: "HND",
		MealsPerDay: d("6000"), TransitPerDay: d("1200"), HotelPerNight: d("22000"),
		ClimateHighC: 26, ClimateRainDays: 4,
		Activities: []domain.Activity{
			{ID: "tokyo-sensoji", Name: "Senso-ji temple", Cost: fee("0", "JPY"), Tags: []string{"history", "sightseeing"}},
			{ID: "tokyo-tsukiji", Name: "Tsukiji food tour", Cost: fee("12000", "JPY"), Tags: []string{"food"}},
			{ID: "tokyo-izakaya", Name: "Shinjuku izakaya night", Cost: fee("8000", "JPY"), MinimumAge: age(20), Tags: []string{"nightlife", "food"}},
			{ID: "tokyo-teamlab", Name: "teamLab Planets", Cost: fee("3800", "JPY"), Tags: []string{"art", "family"}},
			{ID: "tokyo-kart", Name: "Street go-karting", Cost: fee("9000", "JPY"), MinimumAge: age(16), RequiresParentalConsent: true, Tags: []string{"adventure"}},
		},
		Phrases: map[string]string{"hello": "Konnichiwa", "thank you": "Arigatou gozaimasu", "please": "Onegaishimasu", "where is": "Doko desu ka"},
	},
	{
		Name: "New York", Country: "US", Currency: "USD", Language: "English", Airport: "JFK",
		MealsPerDay: d("70"), TransitPerDay: d("8"), HotelPerNight: d("240"),
		ClimateHighC: 25, ClimateRainDays: 3,
		Activities: []domain.Activity{
			{ID: "nyc-met", Name: "Metropolitan Museum of Art", Cost: fee("30", "USD"), Tags: []string{"art"}},
			{ID: "nyc-liberty", Name: "Statue of Liberty ferry", Cost: fee("24.50", "USD"), Tags: []string{"sightseeing", "history"}},
			{ID: "nyc-jazz", Name: "Village jazz club", Cost: fee("40", "USD"), MinimumAge: age(21), Tags: []string{"nightlife"}},
			{ID: "nyc-broadway", Name: "Broadway show", Cost: fee("120", "USD"), Tags: []string{"art", "nightlife"}},
		},
		Phrases: map[string]string{"hello": "Hi", "thank you": "Thanks"},
	},
	{
		Name: "Rome", Country: "IT", Currency: "EUR", Language: "Italian", Airport: "FCO",
		MealsPerDay: d("45"), TransitPerDay: d("7"), HotelPerNight: d("130"),
		ClimateHighC: 28, ClimateRainDays: 2,
		Activities: []domain.Activity{
			{ID: "rome-colosseum", Name: "Colosseum and Forum", Cost: fee("18", "EUR"), Tags: []string{"history", "sightseeing"}},
			{ID: "rome-vatican", Name: "Vatican Museums", Cost: fee("20", "EUR"), Tags: []string{"art", "history"}},
			{ID: "rome-wine", Name: "Trastevere wine bar tour", Cost: fee("50", "EUR"), MinimumAge: age(18), Tags: []string{"food", "nightlife"}},
			{ID: "rome-vespa", Name: "Vespa tour", Cost: fee("95", "EUR"), MinimumAge: age(18), Tags: []string{"adventure"}},
		},
		Phrases: map[string]string{"hello": "Ciao", "thank you": "Grazie", "please": "Per favore", "where is": "Dov'è"},
	},
	{
		Name: "Mexico City", Country: "MX", Currency: "MXN", Language: "Spanish", Airport: "MEX",
		MealsPerDay: d("700"), TransitPerDay: d("60"), HotelPerNight: d("1800"),
		ClimateHighC: 24, ClimateRainDays: 5,
		Activities: []domain.Activity{
			{ID: "cdmx-teotihuacan", Name: "Teotihuacan pyramids", Cost: fee("95", "MXN"), Tags: []string{"history", "sightseeing"}},
			{ID: "cdmx-frida", Name: "Frida Kahlo Museum", Cost: fee("320", "MXN"), Tags: []string{"art"}},
			{ID: "cdmx-mezcal", Name: "Mezcal tasting", Cost: fee("650", "MXN"), MinimumAge: age(18), Tags: []string{"food", "nightlife"}},
			{ID: "cdmx-lucha", Name: "Lucha libre night", Cost: fee("500", "MXN"), Tags: []string{"nightlife", "family"}},
		},
		Phrases: map[string]string{"hello": "Hola", "thank you": "Gracias", "please": "Por favor", "where is": "¿Dónde está"},
	},
}

var cityAliases = map[string]string{
	"nyc":  "new york",
	"cdmx": "mexico city",
	"ldn":  "london",
}

// LookupCity finds a city by name or alias, case-insensitively.
func LookupCity(name string) (City, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := cityAliases[key]; ok {
		key = alias
	}
	for _, c := range cities {
		if strings.ToLower(c.Name) == key {
			return c, true
		}
	}
	return City{}, false
}

// CountryOf returns the country code of a city, or "".
func CountryOf(name string) string {
	c, _ := LookupCity(name)
	return c.Country
}

// CurrencyOf returns the local currency of a city, or fallback.
func CurrencyOf(name, fallback string) string {
	if c, ok := LookupCity(name); ok {
		return c.Currency
	}
	return fallback
}

// genericCity stands in for destinations without reference data. Its prices
// are quoted in currency.
func genericCity(name, currency string) City {
	return City{
		Name: name, Currency: currency, Language: "unknown",
		MealsPerDay: d("50"), TransitPerDay: d("10"), HotelPerNight: d("140"),
		ClimateHighC: 21, ClimateRainDays: 3,
	}
}

func cityOrGeneric(name, currency string) City {
	if c, ok := LookupCity(name); ok {
		return c
	}
	return genericCity(name, currency)
}

// spread deterministically maps the key parts to [0, n).
func spread(n int, parts ...string) int {
	h := fnv.New32a()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(p)))
		h.Write([]byte{0})
	}
	return int(h.Sum32() % uint32(n))
}

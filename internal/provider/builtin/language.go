package builtin

import (
	"context"
	"sort"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

// Phrase is an English phrase and its local translation.
type Phrase struct {
	English string `json:"english"`
	Local   string `json:"local"`
}

// LanguagePayload describes the destination's language.
type LanguagePayload struct {
	City     string   `json:"city"`
	Language string   `json:"language"`
	Phrases  []Phrase `json:"phrases"`
}

func newLanguage(cfg config.ProviderConfig, _ provider.Dependencies) (ports.Provider, error) {
	// Stateless lookups; safe to call concurrently.
	set := provider.NewOperationSet(cfg.Name).Handle("phrases", phrases)
	return configure(set, cfg), nil
}

func phrases(ctx context.Context, req *domain.Request) (any, error) {
	t, err := trip(req)
	if err != nil {
		return nil, err
	}
	city, ok := LookupCity(t.Destination)
	if !ok {
		return nil, domain.ErrProvider("no language data for " + t.Destination)
	}

	out := LanguagePayload{City: city.Name, Language: city.Language, Phrases: []Phrase{}}
	for en, local := range city.Phrases {
		out.Phrases = append(out.Phrases, Phrase{English: en, Local: local})
	}
	sort.Slice(out.Phrases, func(i, j int) bool { return out.Phrases[i].English < out.Phrases[j].English })
	return out, nil
}

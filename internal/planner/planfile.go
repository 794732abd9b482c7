package planner

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
)

// LoadIntents reads an invocation plan from a YAML (or JSON) file:
//
//	intents:
//	  - intent_id: weather
//	    provider: weather
//	    operation: forecast
//	  - intent_id: budget
//	    provider: budget
//	    operation: estimate
//	    depends_on: [weather]
//
// The plan is only parsed here; structure and cycles are checked when it
// runs.
func LoadIntents(path string) ([]domain.InvocationIntent, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load plan %s: %w", path, err)
	}

	var intents []domain.InvocationIntent
	if err := k.UnmarshalWithConf("intents", &intents, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if len(intents) == 0 {
		return nil, &domain.ValidationError{Field: "intents", Reason: "plan file has no intents"}
	}
	return intents, nil
}

package domain

import (
	"fmt"
	"sort"
)

// InvocationIntent is one planned provider call.
type InvocationIntent struct {
	ID         string         `json:"intent_id" koanf:"intent_id"`
	Provider   string         `json:"provider" koanf:"provider"`
	Operation  string         `json:"operation" koanf:"operation"`
	Parameters map[string]any `json:"parameters,omitempty" koanf:"parameters"`
	DependsOn  []string       `json:"depends_on,omitempty" koanf:"depends_on"`

	// Section names the trip-plan section this intent fills. Defaults to ID.
	Section string `json:"section,omitempty" koanf:"section"`
}

// SectionName returns the section this intent fills.
func (i InvocationIntent) SectionName() string {
	if i.Section != "" {
		return i.Section
	}
	return i.ID
}

// Plan is an invocation plan: a set of intents forming a DAG via DependsOn.
type Plan struct {
	ID      string             `json:"plan_id"`
	Intents []InvocationIntent `json:"intents"`
}

// Validate checks intent ids are unique and non-empty and every dependency
// refers to an intent of the same plan. Cycles are detected separately by
// the coordinator.
func (p *Plan) Validate() error {
	if len(p.Intents) == 0 {
		return &ValidationError{Field: "intents", Reason: "plan has no intents"}
	}
	ids := make(map[string]struct{}, len(p.Intents))
	for _, in := range p.Intents {
		if in.ID == "" {
			return &ValidationError{Field: "intent_id", Reason: "required"}
		}
		if in.Provider == "" {
			return &ValidationError{Field: "provider", Reason: fmt.Sprintf("intent %s has no provider", in.ID)}
		}
		if _, dup := ids[in.ID]; dup {
			return &ValidationError{Field: "intent_id", Reason: fmt.Sprintf("duplicate intent %s", in.ID)}
		}
		ids[in.ID] = struct{}{}
	}
	for _, in := range p.Intents {
		for _, dep := range in.DependsOn {
			if _, ok := ids[dep]; !ok {
				return &ValidationError{
					Field:  "depends_on",
					Reason: fmt.Sprintf("intent %s depends on unknown intent %s", in.ID, dep),
				}
			}
		}
	}
	return nil
}

// Sections returns the distinct section names of the plan, sorted.
func (p *Plan) Sections() []string {
	seen := make(map[string]struct{}, len(p.Intents))
	var names []string
	for _, in := range p.Intents {
		name := in.SectionName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

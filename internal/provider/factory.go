// Package provider contains the provider registry, the factory table used to
// build providers from configuration, and helpers for writing providers.
//
// # Adding a New Provider
//
// Implement ports.Provider (usually with an OperationSet) and expose an
// explicit registration function that calls RegisterFactory. Wire that
// registration from cmd/planner (or tests) so we avoid init() side effects.
//
//	func RegisterFactories() {
//	    if provider.IsRegistered("weather") {
//	        return
//	    }
//	    provider.RegisterFactory(provider.Factory{
//	        Name:        "weather",
//	        Description: "Daily forecast for the trip dates",
//	        Create:      newWeather,
//	    })
//	}
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
)

// Dependencies are shared collaborators a factory may hand to its provider.
type Dependencies struct {
	Visa  ports.VisaRulesetService
	Rates ports.RateService
}

// Factory defines how to create a provider of a specific name.
type Factory struct {
	// Name is the provider name used in plans and configuration.
	Name string

	// Description provides a human-readable description of the provider.
	Description string

	// Create instantiates the provider.
	Create func(cfg config.ProviderConfig, deps Dependencies) (ports.Provider, error)
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// RegisterFactory registers a provider factory.
// Panics if a factory with the same name is already registered.
func RegisterFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Name == "" {
		panic("provider factory name cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("provider factory %q must have a Create function", f.Name))
	}
	if _, exists := factoryMap[f.Name]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", f.Name))
	}
	factoryMap[f.Name] = f
}

// GetFactory returns the factory for a provider name, if registered.
func GetFactory(name string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[name]
	return f, ok
}

// IsRegistered returns true if a factory is registered under name.
func IsRegistered(name string) bool {
	_, ok := GetFactory(name)
	return ok
}

// ListFactories returns all registered factories sorted by name.
func ListFactories() []Factory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	result := make([]Factory, 0, len(factoryMap))
	for _, f := range factoryMap {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[string]Factory)
}

// BuildRegistry creates a registry holding one provider per configured
// entry, or one per registered factory when cfgs is empty. Disabled entries
// are skipped. The returned registry is frozen.
func BuildRegistry(cfgs []config.ProviderConfig, deps Dependencies) (*Registry, error) {
	if len(cfgs) == 0 {
		for _, f := range ListFactories() {
			cfgs = append(cfgs, config.ProviderConfig{Name: f.Name})
		}
	}

	reg := NewRegistry()
	for _, cfg := range cfgs {
		if cfg.Disabled {
			continue
		}
		factoryName := cfg.Type
		if factoryName == "" {
			factoryName = cfg.Name
		}
		f, ok := GetFactory(factoryName)
		if !ok {
			return nil, fmt.Errorf("unknown provider type: %s", factoryName)
		}
		p, err := f.Create(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", cfg.Name, err)
		}
		if cfg.SingleFlight != nil || cfg.RetryOnTimeout != nil {
			p = NewCapabilityOverride(p, cfg.SingleFlight, cfg.RetryOnTimeout)
		}
		if err := reg.Register(cfg.Name, p); err != nil {
			return nil, err
		}
	}
	reg.Freeze()
	return reg, nil
}

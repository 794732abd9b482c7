package provider

import (
	"fmt"
	"sort"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// DuplicateProviderError is returned when a name is registered twice.
type DuplicateProviderError struct {
	Name string
}

func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("provider %q already registered", e.Name)
}

// UnknownProviderError is returned when resolving an unregistered name.
type UnknownProviderError struct {
	Name       string
	Registered []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider: %s (registered providers: %v)", e.Name, e.Registered)
}

// Registry maps provider names to provider instances.
//
// Registration happens once at startup, before any concurrent access; after
// Freeze the map is read-only and Resolve needs no locking.
type Registry struct {
	providers map[string]ports.Provider
	frozen    bool
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]ports.Provider)}
}

// Register adds a provider under name.
func (r *Registry) Register(name string, p ports.Provider) error {
	if r.frozen {
		return fmt.Errorf("registry is frozen: cannot register %q", name)
	}
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if p == nil {
		return fmt.Errorf("provider %q is nil", name)
	}
	if _, exists := r.providers[name]; exists {
		return &DuplicateProviderError{Name: name}
	}
	r.providers[name] = p
	return nil
}

// MustRegister registers a provider and panics on failure.
func (r *Registry) MustRegister(name string, p ports.Provider) {
	if err := r.Register(name, p); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Resolve returns the provider registered under name.
func (r *Registry) Resolve(name string) (ports.Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, &UnknownProviderError{Name: name, Registered: r.Names()}
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the declared capabilities of every registered provider.
func (r *Registry) Describe() map[string]ports.Capabilities {
	out := make(map[string]ports.Capabilities, len(r.providers))
	for name, p := range r.providers {
		out[name] = ports.CapabilitiesOf(p)
	}
	return out
}

package providers

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrModelNotSupported is returned when a model is not supported by any provider
	ErrModelNotSupported = errors.New("model not supported")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry manages provider instances and model mappings
type Registry struct {
	mu             sync.RWMutex
	providers      map[string]Provider
	order          []string
	modelProviders map[string]string // model -> provider name
	modelPrefixes  map[string]string // model prefix -> provider name
	defaultName    string
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers:      make(map[string]Provider),
		modelProviders: make(map[string]string),
		modelPrefixes:  make(map[string]string),
	}
}

// RegisterProvider registers a provider instance. The first provider
// registered becomes the default.
func (r *Registry) RegisterProvider(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	if _, exists := r.providers[name]; exists {
		return ErrProviderAlreadyRegistered
	}

	r.providers[name] = provider
	r.order = append(r.order, name)
	if r.defaultName == "" {
		r.defaultName = name
	}

	return nil
}

// SetDefault selects the provider used when no mapping matches a model
func (r *Registry) SetDefault(providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[providerName]; !exists {
		return ErrProviderNotFound
	}
	r.defaultName = providerName
	return nil
}

// GetProvider retrieves a provider by name
func (r *Registry) GetProvider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, ErrProviderNotFound
	}

	return provider, nil
}

// Default returns the default provider
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultName == "" {
		return nil, ErrProviderNotFound
	}
	return r.providers[r.defaultName], nil
}

// GetProviderForModel resolves a model to a provider. Explicit mappings win,
// then the longest registered prefix, then the first provider (in
// registration order) that supports the model, then the default provider.
func (r *Registry) GetProviderForModel(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return nil, ErrProviderNotFound
	}

	if name, ok := r.modelProviders[model]; ok {
		if p, ok := r.providers[name]; ok {
			return p, nil
		}
	}

	bestPrefix := ""
	for prefix, name := range r.modelPrefixes {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(bestPrefix) {
			if _, ok := r.providers[name]; ok {
				bestPrefix = prefix
			}
		}
	}
	if bestPrefix != "" {
		return r.providers[r.modelPrefixes[bestPrefix]], nil
	}

	for _, name := range r.order {
		if name == r.defaultName {
			continue
		}
		if p := r.providers[name]; p.SupportsModel(model) {
			return p, nil
		}
	}

	if p, ok := r.providers[r.defaultName]; ok && p.SupportsModel(model) {
		return p, nil
	}

	return nil, ErrModelNotSupported
}

// RegisterModelPrefix registers a model prefix to provider mapping
// (e.g., "gpt-" -> "openai")
func (r *Registry) RegisterModelPrefix(prefix, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[providerName]; !exists {
		return ErrProviderNotFound
	}

	r.modelPrefixes[prefix] = providerName
	return nil
}

// RegisterModelMapping manually registers a model to provider mapping
func (r *Registry) RegisterModelMapping(model, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[providerName]; !exists {
		return ErrProviderNotFound
	}

	r.modelProviders[model] = providerName
	return nil
}

// ListProviders returns all registered provider names, sorted
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Count returns the number of registered providers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

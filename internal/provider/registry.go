package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
)

// ProviderRegistry defines the interface for managing AI providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry
	Register(name string, provider ProviderClient, config *ProviderConfig) error

	// Get retrieves a provider by name
	Get(name string) (ProviderClient, error)

	// GetConfig retrieves a provider's configuration
	GetConfig(name string) (*ProviderConfig, error)

	// List returns all registered provider names in sorted order
	List() []string

	// Remove removes a provider from the registry and closes it
	Remove(name string) error

	// CloseAll closes all registered providers
	CloseAll() error

	// LoadFromConfig loads a provider from configuration
	LoadFromConfig(ctx context.Context, config *ProviderConfig) error
}

// Registry manages all loaded providers and implements ProviderRegistry interface
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderClient
	configs   map[string]*ProviderConfig
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]ProviderClient),
		configs:   make(map[string]*ProviderConfig),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(name string, provider ProviderClient, config *ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = provider
	r.configs[name] = config

	return nil
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (ProviderClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}

	return provider, nil
}

// GetConfig retrieves a provider's configuration
func (r *Registry) GetConfig(name string) (*ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, exists := r.configs[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}

	return config, nil
}

// List returns all registered provider names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Remove removes a provider from the registry and closes it
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	// Close the provider
	if err := provider.Close(); err != nil {
		return fmt.Errorf("failed to close provider %s: %w", name, err)
	}

	delete(r.providers, name)
	delete(r.configs, name)

	return nil
}

// CloseAll closes all registered providers
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, provider := range r.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %s: %w", name, err))
		}
	}

	r.providers = make(map[string]ProviderClient)
	r.configs = make(map[string]*ProviderConfig)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing providers: %v", errs)
	}

	return nil
}

// LoadFromConfig builds the provider described by config and registers it.
// Disabled providers are skipped.
func (r *Registry) LoadFromConfig(ctx context.Context, config *ProviderConfig) error {
	if config.Name == "" {
		return fmt.Errorf("provider name is required")
	}

	if !config.Enabled {
		return nil
	}

	if config.Type != "" && config.Type != ProviderTypeAPI {
		return fmt.Errorf("unknown provider type: %s", config.Type)
	}

	var provider ProviderClient
	var err error

	switch config.Name {
	case NameOpenAI:
		provider, err = NewOpenAIProvider(config)
	case NameGemini:
		provider, err = NewGeminiProvider(ctx, config)
	default:
		return berrors.NewProviderNotFoundError(config.Name)
	}

	if err != nil {
		return fmt.Errorf("failed to create provider %s: %w", config.Name, err)
	}

	return r.Register(config.Name, provider, config)
}

// Compile-time verification that Registry implements ProviderRegistry
var _ ProviderRegistry = (*Registry)(nil)

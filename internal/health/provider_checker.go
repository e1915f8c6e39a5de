package health

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/blueprint/internal/provider"
)

// ProviderChecker verifies that the server's default AI provider can be
// built and answers a health round trip. Template exports never depend on a
// provider, so failures report degraded rather than unhealthy.
type ProviderChecker struct {
	factory  provider.Factory
	settings provider.Settings
}

// NewProviderChecker checks the provider described by settings. A nil
// factory uses provider.DefaultFactory.
func NewProviderChecker(factory provider.Factory, settings provider.Settings) *ProviderChecker {
	if factory == nil {
		factory = provider.DefaultFactory
	}
	return &ProviderChecker{factory: factory, settings: settings}
}

func (c *ProviderChecker) Name() string {
	return "ai-provider"
}

func (c *ProviderChecker) Check(ctx context.Context) *Result {
	name := strings.ToLower(strings.TrimSpace(c.settings.Name))
	if strings.TrimSpace(c.settings.APIKey) == "" {
		return Degraded("no server-side API key configured; AI exports need a key per request").
			WithDetail("provider", name)
	}

	client, err := c.factory(ctx, c.settings)
	if err != nil {
		return Degraded("AI provider could not be configured").
			WithDetail("provider", name).
			WithDetail("error", err.Error())
	}
	defer client.Close()

	info := client.GetInfo()
	if !client.IsAvailable() {
		return Degraded("AI provider is not available").
			WithDetail("provider", info.Name)
	}
	if err := client.Health(ctx); err != nil {
		return Degraded("AI provider health check failed").
			WithDetail("provider", info.Name).
			WithDetail("model", info.Model).
			WithDetail("error", err.Error())
	}
	return Healthy("AI provider reachable").
		WithDetail("provider", info.Name).
		WithDetail("model", info.Model)
}

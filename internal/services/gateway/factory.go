package gateway

import (
	"fmt"
)

// Config selects and configures a provider.
type Config struct {
	Provider Provider
	REST     RESTConfig
}

// New creates a gateway instance for the configured provider.
func New(cfg *Config) (Gateway, error) {
	switch cfg.Provider {
	case ProviderSandbox, "":
		return NewSandbox(), nil
	case ProviderREST:
		if cfg.REST.BaseURL == "" {
			return nil, fmt.Errorf("gateway: rest provider requires a base url")
		}
		return NewREST(&cfg.REST), nil
	default:
		return nil, fmt.Errorf("gateway: unsupported provider %q", cfg.Provider)
	}
}

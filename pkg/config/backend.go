package config

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ormasoftchile/itemforge/pkg/backend"
)

// NewBackend builds the configured backend, wrapped with retries and rate
// limiting. A non-empty recordDir adds a fixture recorder around the raw
// backend so retried calls are recorded once.
func (c Config) NewBackend(log *zap.Logger, recordDir string) (backend.Backend, error) {
	bc := c.Backend
	var (
		b   backend.Backend
		err error
	)
	switch bc.Provider {
	case ProviderOpenAI, ProviderAzure:
		b, err = backend.NewOpenAI(backend.OpenAIConfig{
			BaseURL:         bc.BaseURL,
			APIKey:          bc.APIKey,
			Model:           bc.Model,
			APIVersion:      bc.APIVersion,
			Azure:           bc.Provider == ProviderAzure,
			MaxOutputTokens: bc.MaxOutputTokens,
			Timeout:         bc.Timeout,
		})
	case ProviderAnthropic:
		b, err = backend.NewAnthropic(backend.AnthropicConfig{
			APIKey:    bc.APIKey,
			Model:     bc.Model,
			BaseURL:   bc.BaseURL,
			MaxTokens: int64(bc.MaxOutputTokens),
		})
	case ProviderReplay:
		// Replayed fixtures are deterministic; retrying or pacing them is pointless.
		return backend.LoadReplay(bc.ReplayDir)
	default:
		return nil, fmt.Errorf("unknown backend provider %q", bc.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", bc.Provider, err)
	}

	if recordDir != "" {
		rec := backend.NewRecorder(b, recordDir)
		rec.SetSecrets(SecretEnvVars)
		b = rec
	}
	if bc.RetryAttempts > 1 {
		b = backend.Retrying(b, bc.RetryAttempts, bc.RetryDelay, log)
	}
	if bc.RateLimit > 0 {
		b = backend.RateLimited(b, bc.RateLimit, bc.Burst)
	}
	return b, nil
}

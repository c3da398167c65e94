// Package llm defines the completion boundary the pipeline talks to and
// wires concrete providers behind it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/quill/internal/anthropic"
	"github.com/MikeSquared-Agency/quill/internal/bedrock"
)

// Provider issues one synchronous completion: system and user prompt in,
// text out.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, system, user string) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config selects and configures a provider. Credentials are carried here and
// nowhere else.
type Config struct {
	Provider  string
	Fallback  string
	Model     string
	MaxTokens int
	Timeout   time.Duration

	AnthropicAPIKey string
	AnthropicURL    string

	AWSRegion      string
	BedrockModelID string
}

// New builds the configured provider, wrapped with Fallback when a second
// provider is named and with Instrument for timeouts and metrics.
func New(ctx context.Context, cfg Config) (Provider, error) {
	primary, err := build(ctx, cfg.Provider, cfg)
	if err != nil {
		return nil, err
	}
	p := Instrument(primary, cfg.Provider, cfg.Timeout)

	if cfg.Fallback == "" || cfg.Fallback == cfg.Provider {
		return p, nil
	}
	secondary, err := build(ctx, cfg.Fallback, cfg)
	if err != nil {
		return nil, fmt.Errorf("fallback provider: %w", err)
	}
	return Fallback(p, Instrument(secondary, cfg.Fallback, cfg.Timeout)), nil
}

func build(ctx context.Context, name string, cfg Config) (Provider, error) {
	switch name {
	case ProviderAnthropic, "":
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		opts := []anthropic.Option{anthropic.WithMaxTokens(cfg.MaxTokens)}
		if cfg.AnthropicURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.AnthropicURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, anthropic.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.Model, opts...), nil
	case ProviderBedrock:
		return bedrock.New(ctx, cfg.AWSRegion, cfg.BedrockModelID, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}

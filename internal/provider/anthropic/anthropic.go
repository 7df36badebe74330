// Package anthropic implements provider.Provider on top of the Anthropic
// Messages API. It is the LLM backend used for conversation summarization
// and fact extraction.
package anthropic

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phillt/bernard-sub001/internal/provider"
)

// Interface guards.
var (
	_ provider.Provider      = (*Anthropic)(nil)
	_ provider.HealthChecker = (*Anthropic)(nil)
)

// ErrNoAPIKey is returned by New when no API key is configured or found in
// the environment.
var ErrNoAPIKey = errors.New("provider.anthropic: no API key (set api_key or ANTHROPIC_API_KEY)")

// Anthropic implements provider.Provider and provider.HealthChecker using
// the Anthropic Messages API.
type Anthropic struct {
	config        Config
	client        *sdkanthropic.Client
	logger        *slog.Logger
	contextWindow int
}

// New builds an Anthropic provider. The API key is resolved from the config
// first, then from the environment variable named by APIKeyEnv (default
// ANTHROPIC_API_KEY).
func New(cfg Config, logger *slog.Logger) (*Anthropic, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()

	apiKey := cfg.APIKey
	if apiKey == "" {
		if envKey, ok := os.LookupEnv(cfg.APIKeyEnv); ok {
			apiKey = envKey
		}
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		// Callers bound each call with their own context deadline; retries
		// would only stretch a compression cycle past it.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := sdkanthropic.NewClient(opts...)
	a := &Anthropic{
		config:        cfg,
		client:        &client,
		logger:        logger.With("component", "provider.anthropic"),
		contextWindow: cfg.contextWindowForModel(),
	}
	a.logger.Debug("anthropic provider ready", "model", cfg.Model, "context_window", a.contextWindow)
	return a, nil
}

// ContextWindowSize implements provider.Provider.
func (a *Anthropic) ContextWindowSize() int {
	return a.contextWindow
}

// ModelName implements provider.Provider.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}

// Package oracle provides the optional language-model fallback used to
// disambiguate query fields the deterministic rules cannot resolve. Its
// output is always re-validated by those same rules before being trusted;
// it is never the source of truth.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Oracle resolves an ambiguous query fragment into a best-guess value for
// the named field.
type Oracle interface {
	// Resolve returns the model's best guess for field given the
	// ambiguous text and hint context. Callers must re-validate the
	// result with their own deterministic rules.
	Resolve(ctx context.Context, field, ambiguousText string, hints map[string]string) (string, error)
}

// Config holds the oracle provider configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	// RequestsPerMinute caps outbound calls; zero disables the limiter.
	RequestsPerMinute int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://api.openai.com/v1",
		Model:             "gpt-4o-mini",
		MaxRetries:        3,
		RequestsPerMinute: 30,
	}
}

// Provider is the OpenAI-backed Oracle implementation.
type Provider struct {
	client  *openai.Client
	config  *Config
	limiter *rate.Limiter
}

// NewProvider creates an oracle provider from config.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &Provider{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		limiter: limiter,
	}, nil
}

// Resolve implements Oracle.
func (p *Provider) Resolve(ctx context.Context, field, ambiguousText string, hints map[string]string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You resolve one field of a scheduling request.\n")
	fmt.Fprintf(&sb, "Field: %s\n", field)
	for k, v := range hints {
		fmt.Fprintf(&sb, "%s: %s\n", k, v)
	}
	sb.WriteString("Answer with the resolved value only, no explanation. If you cannot resolve it, answer UNKNOWN.")

	var result string
	err := p.doWithRetry(ctx, func() error {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.config.Model,
			Temperature: 0,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sb.String()},
				{Role: openai.ChatMessageRoleUser, Content: ambiguousText},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		result = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("oracle resolution failed: %w", err)
	}

	if result == "" || strings.EqualFold(result, "UNKNOWN") {
		return "", fmt.Errorf("oracle could not resolve field %s", field)
	}
	return result, nil
}

// doWithRetry executes fn with exponential backoff.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("oracle request failed, retrying",
					"attempt", attempt+1,
					"wait", wait,
					"error", err)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

var _ Oracle = (*Provider)(nil)

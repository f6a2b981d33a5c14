// Package llm provides the text-completion collaborator shared by query
// parsing and posting extraction. Calls are bounded by a per-call timeout
// and guarded by a circuit breaker so a failing provider degrades the
// pipeline instead of stalling it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/config"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/metrics"
	"github.com/shivarambaludra-lgtm/jobmet-backend-candidate/pkg/resilience"
)

// Completer accepts a prompt and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, operation string, prompt string) (string, error)
}

// ErrUnavailable is returned by Unavailable for every call.
var ErrUnavailable = errors.New("llm not configured")

// Unavailable is a Completer used when no provider is configured. Every
// call fails, which pushes parsing and extraction onto their deterministic
// fallbacks.
type Unavailable struct{}

func (Unavailable) Complete(ctx context.Context, operation string, prompt string) (string, error) {
	return "", ErrUnavailable
}

// Client is a Completer backed by an OpenAI-compatible chat model.
type Client struct {
	model   llms.Model
	timeout time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient builds a Client from config. The metrics parameter may be nil.
func NewClient(cfg config.LLMConfig, m *metrics.Metrics) (*Client, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	breaker := resilience.NewCircuitBreaker("llm", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerTripsAt,
		ResetTimeout:     cfg.BreakerResets,
	})
	return &Client{
		model:   model,
		timeout: cfg.CallTimeout,
		breaker: breaker,
		metrics: m,
		logger:  slog.Default().With("component", "llm"),
	}, nil
}

// Complete sends the prompt and returns the reply text. The operation label
// identifies the call site for metrics and logging.
func (c *Client) Complete(ctx context.Context, operation string, prompt string) (string, error) {
	start := time.Now()
	var reply string
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.timeout, "llm "+operation, func(ctx context.Context) error {
			out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
			if err != nil {
				return err
			}
			reply = out
			return nil
		})
	})
	if c.metrics != nil {
		c.metrics.LLMLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		c.metrics.CircuitBreakerState.WithLabelValues("llm").Set(float64(c.breaker.GetState()))
	}
	if err != nil {
		c.logger.Warn("completion failed", "operation", operation, "error", err)
		return "", fmt.Errorf("llm %s: %w", operation, err)
	}
	return reply, nil
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.GetState()
}

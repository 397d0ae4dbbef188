package synth

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Client wraps a Provider with the one retry policy the pipeline relies on:
// a rate-limit rejection gets exactly one more attempt after a cooldown.
// Every other failure surfaces immediately for the orchestrator to judge.
type Client struct {
	provider Provider
	cooldown time.Duration
	logger   *slog.Logger
}

func NewClient(provider Provider, cooldown time.Duration, logger *slog.Logger) *Client {
	return &Client{
		provider: provider,
		cooldown: cooldown,
		logger:   logger.With(slog.String("component", "synth-client"), slog.String("provider", provider.Name())),
	}
}

func (c *Client) Provider() Provider { return c.provider }

func (c *Client) Synthesize(ctx context.Context, req Request) (Result, error) {
	result, err := c.provider.Synthesize(ctx, req)
	if err == nil {
		return result, nil
	}

	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Kind != FailureRateLimited {
		return Result{}, err
	}

	c.logger.Warn("rate limited, retrying after cooldown",
		slog.Duration("cooldown", c.cooldown))
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(c.cooldown):
	}
	return c.provider.Synthesize(ctx, req)
}

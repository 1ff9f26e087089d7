// File: internal/provider/provider.go

// Package provider binds the vision-model backends that drive the
// perceive-act loop. Each binding owns its conversation history and
// speaks its provider's native computer-use protocol; everything the
// engine sees is the shared ProviderVerdict type. Transport and API
// failures surface as failed verdicts, never as Go errors, so the
// failover controller treats every backend uniformly.
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// New builds the binding named by cfg.Kind.
func New(ctx context.Context, cfg config.ProviderConfig, vp schemas.Viewport, logger *zap.Logger) (schemas.ProviderClient, error) {
	switch cfg.Kind {
	case "gemini":
		return NewGemini(ctx, cfg, vp, logger)
	case "anthropic":
		return NewAnthropic(cfg, vp, logger)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}

// newLimiter paces API calls to the configured per-minute quota. A
// zero or negative quota disables pacing.
func newLimiter(requestsPerMinute float64) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(requestsPerMinute/60), 1)
}

// transportFailure wraps an API error into the uniform failed verdict.
func transportFailure(op string, err error) schemas.ProviderVerdict {
	return schemas.FailedVerdict(schemas.ReasonTransportError,
		schemas.NewTaskError(schemas.ReasonTransportError, op, err))
}

// File: internal/failover/controller.go

// Package failover owns provider selection for the perceive-act loop.
// The active provider keeps serving turns until it burns through its
// retry budget; then the controller moves down the chain, and when the
// chain is exhausted the task dies with all_providers_exhausted. A
// switch never loses task history because history lives on the
// TaskContext, not inside a provider.
package failover

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// Controller tracks the active provider and the per-provider retry
// budget. It is not safe for concurrent use; each task owns one.
type Controller struct {
	providers []schemas.ProviderClient
	cfg       config.FailoverConfig
	logger    *zap.Logger

	active   int
	attempts int
	backoff  backoff.BackOff
}

// New builds a Controller over providers in priority order. The first
// entry is the primary.
func New(cfg config.FailoverConfig, logger *zap.Logger, providers ...schemas.ProviderClient) *Controller {
	c := &Controller{
		providers: providers,
		cfg:       cfg,
		logger:    logger.Named("failover"),
	}
	c.backoff = c.newBackoff()
	return c
}

func (c *Controller) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	// The attempt counter, not elapsed time, decides when to switch.
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Active returns the provider currently serving turns.
func (c *Controller) Active() schemas.ProviderClient {
	return c.providers[c.active]
}

// OnSuccess records a clean turn, refilling the active provider's
// retry budget.
func (c *Controller) OnSuccess() {
	if c.attempts != 0 {
		c.attempts = 0
		c.backoff.Reset()
	}
}

// OnFailure records a failed turn. It sleeps the backoff interval and
// keeps the same provider while budget remains; once the budget is
// gone it switches to the next provider with a fresh budget. When no
// provider remains it returns all_providers_exhausted, and the context
// error if the wait was interrupted.
func (c *Controller) OnFailure(ctx context.Context, cause error) error {
	c.attempts++
	name := c.Active().Name()

	if c.attempts < c.cfg.MaxAttemptsPerProvider {
		wait := c.backoff.NextBackOff()
		c.logger.Warn("Provider turn failed, retrying same provider.",
			zap.String("provider", name),
			zap.Int("attempt", c.attempts),
			zap.Duration("backoff", wait),
			zap.Error(cause))

		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return schemas.NewTaskError(schemas.ReasonCanceled, "failover.wait", ctx.Err())
		case <-timer.C:
			return nil
		}
	}

	if c.active >= len(c.providers)-1 {
		c.logger.Error("All providers exhausted.",
			zap.String("last_provider", name),
			zap.Error(cause))
		return schemas.NewTaskError(schemas.ReasonAllProvidersExhausted, "failover",
			fmt.Errorf("last provider %s: %w", name, cause))
	}

	c.active++
	c.attempts = 0
	c.backoff = c.newBackoff()
	c.logger.Warn("Switching provider.",
		zap.String("from", name),
		zap.String("to", c.Active().Name()),
		zap.Error(cause))
	return nil
}

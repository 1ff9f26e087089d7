// File: internal/engine/batch.go
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// BatchOptions parameterizes one dashboard sweep.
type BatchOptions struct {
	// Goal is the per-invitation instruction handed to the provider.
	Goal string
	// FormData is shared by every sub-task.
	FormData map[string]string
	// MaxInvitations bounds the sweep; zero means all pending.
	MaxInvitations int
}

// RunBatch processes pending dashboard invitations through one
// authenticated session, strictly sequentially. Each invitation is an
// independent sub-task with its own step budget and result; a
// sub-task failure does not end the sweep unless the browser or the
// provider chain is gone. One result per attempted invitation.
func (e *Engine) RunBatch(ctx context.Context, sess schemas.BrowserSession, creds schemas.Credentials, opts BatchOptions) []*schemas.TaskResult {
	if err := e.openDashboard(ctx, sess, creds); err != nil {
		task := e.newBatchTask(opts)
		result := e.newResult(task)
		e.finalize(ctx, sess, task, result, "", err, true)
		return []*schemas.TaskResult{result}
	}

	selector := e.profile.InvitationSelector
	total, err := sess.CountNodes(ctx, selector)
	if err != nil {
		task := e.newBatchTask(opts)
		result := e.newResult(task)
		e.finalize(ctx, sess, task, result, "", err, true)
		return []*schemas.TaskResult{result}
	}

	bound := total
	if opts.MaxInvitations > 0 && bound > opts.MaxInvitations {
		bound = opts.MaxInvitations
	}
	e.logger.Info("Dashboard sweep starting.",
		zap.String("platform", e.profile.Name),
		zap.Int("pending", total),
		zap.Int("bound", bound))

	var results []*schemas.TaskResult
	var lastReason schemas.ReasonCode

	for processed := 0; processed < bound; processed++ {
		if ctx.Err() != nil {
			lastReason = schemas.ReasonCanceled
			break
		}

		if err := sess.Navigate(ctx, e.profile.DashboardURL); err != nil {
			lastReason = schemas.ReasonOf(err)
			e.logger.Error("Could not return to dashboard, ending sweep.", zap.Error(err))
			break
		}
		remaining, err := sess.CountNodes(ctx, selector)
		if err != nil {
			lastReason = schemas.ReasonOf(err)
			break
		}
		if remaining == 0 {
			// Processed invitations drop off the dashboard, so the
			// list can empty out before the bound is reached.
			break
		}
		if err := sess.ClickNode(ctx, selector, 0); err != nil {
			lastReason = schemas.ReasonOf(err)
			e.logger.Error("Could not open invitation, ending sweep.", zap.Error(err))
			break
		}

		task := e.newBatchTask(opts)
		result := e.newResult(task)
		summary, runErr := e.execute(ctx, sess, task, creds, result)
		e.finalize(ctx, sess, task, result, summary, runErr, false)
		results = append(results, result)

		if runErr != nil {
			lastReason = schemas.ReasonOf(runErr)
			switch lastReason {
			case schemas.ReasonSessionCrash, schemas.ReasonCanceled, schemas.ReasonAllProvidersExhausted:
				e.logger.Error("Sweep aborted.",
					zap.String("reason", string(lastReason)),
					zap.Int("processed", len(results)))
				sess.Fail(lastReason)
				return results
			}
			// Blocked or failed invitations are skipped; the sweep
			// moves on to the next one.
		}
	}

	if len(results) > 0 || lastReason != "" {
		e.settleBatch(sess, lastReason)
	}
	e.logger.Info("Dashboard sweep finished.",
		zap.String("platform", e.profile.Name),
		zap.Int("processed", len(results)))
	return results
}

func (e *Engine) newBatchTask(opts BatchOptions) *schemas.TaskContext {
	return &schemas.TaskContext{
		TaskID:     uuid.New().String(),
		Platform:   e.profile.Name,
		Goal:       opts.Goal,
		FormData:   opts.FormData,
		StepBudget: e.cfg.StepBudget,
	}
}

// openDashboard authenticates once and lands on the dashboard.
func (e *Engine) openDashboard(ctx context.Context, sess schemas.BrowserSession, creds schemas.Credentials) error {
	if sess.State() == schemas.StateLaunched {
		if !creds.OAuth {
			if err := sess.Navigate(ctx, creds.LoginURL); err != nil {
				return err
			}
		}
		if err := sess.Authenticate(ctx, creds); err != nil {
			return err
		}
	}
	if e.profile.DashboardURL == "" {
		return schemas.NewTaskError(schemas.ReasonNavigationError, "engine.batch",
			fmt.Errorf("platform %q has no dashboard URL", e.profile.Name))
	}
	return sess.Navigate(ctx, e.profile.DashboardURL)
}

// settleBatch moves the shared session to a terminal state after the
// sweep. The session ends in Verifying after a successful last
// sub-task and in Interacting after a skipped failure.
func (e *Engine) settleBatch(sess schemas.BrowserSession, lastReason schemas.ReasonCode) {
	switch sess.State() {
	case schemas.StateCompleted, schemas.StateFailed:
		return
	case schemas.StateVerifying:
		if err := sess.Complete(); err == nil {
			return
		}
	}
	if lastReason == "" {
		lastReason = schemas.ReasonVerificationFailed
	}
	sess.Fail(lastReason)
}

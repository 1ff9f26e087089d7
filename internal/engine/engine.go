// File: internal/engine/engine.go

// Package engine runs the perceive-act loop: screenshot, consent
// check, provider turn, protocol adaptation, action execution, until a
// verified completion, a definitive failure, or budget exhaustion.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/consent"
	"github.com/xkilldash9x/formpilot/internal/failover"
	"github.com/xkilldash9x/formpilot/internal/platform"
	"github.com/xkilldash9x/formpilot/internal/protocol"
	"github.com/xkilldash9x/formpilot/internal/sanitize"
)

// Options wires an Engine. All fields except ScreenshotDir are
// required.
type Options struct {
	Engine    config.EngineConfig
	Profile   platform.Profile
	Providers *failover.Controller
	Adapter   *protocol.Adapter
	Consent   *consent.Detector
	Sanitizer *sanitize.Sanitizer
	Logger    *zap.Logger

	// ScreenshotDir enables sanitized debug screenshots when set.
	ScreenshotDir string
}

// Engine drives one task (or one batch of same-platform sub-tasks)
// against a live browser session. Not safe for concurrent use; each
// task owns its engine.
type Engine struct {
	cfg       config.EngineConfig
	profile   platform.Profile
	providers *failover.Controller
	adapter   *protocol.Adapter
	consent   *consent.Detector
	sanitizer *sanitize.Sanitizer
	logger    *zap.Logger
	shotDir   string
}

func New(opts Options) *Engine {
	return &Engine{
		cfg:       opts.Engine,
		profile:   opts.Profile,
		providers: opts.Providers,
		adapter:   opts.Adapter,
		consent:   opts.Consent,
		sanitizer: opts.Sanitizer,
		logger:    opts.Logger.Named("engine"),
		shotDir:   opts.ScreenshotDir,
	}
}

// Run executes one complete task: authenticate, navigate to the
// target, loop until terminal, and close out the session lifecycle.
// The returned result is always non-nil, also on failure.
func (e *Engine) Run(ctx context.Context, sess schemas.BrowserSession, task *schemas.TaskContext, creds schemas.Credentials) *schemas.TaskResult {
	result := e.newResult(task)

	summary, err := e.execute(ctx, sess, task, creds, result)
	e.finalize(ctx, sess, task, result, summary, err, true)
	return result
}

func (e *Engine) newResult(task *schemas.TaskContext) *schemas.TaskResult {
	return &schemas.TaskResult{
		TaskID:    task.TaskID,
		Platform:  task.Platform,
		StartedAt: time.Now().UTC(),
	}
}

// finalize fills the terminal fields of result. History is masked here
// so no raw credential text survives into the emitted record. When
// settle is set it also moves the session to its terminal state; batch
// sub-tasks pass false because the session outlives them.
func (e *Engine) finalize(ctx context.Context, sess schemas.BrowserSession, task *schemas.TaskContext, result *schemas.TaskResult, summary string, err error, settle bool) {
	result.FinishedAt = time.Now().UTC()
	result.StepsUsed = task.ElapsedSteps
	result.ProviderUsed = e.providers.Active().Name()
	result.History = e.sanitizer.MaskHistory(task.History)

	if url, urlErr := sess.CurrentURL(ctx); urlErr == nil {
		if id := ExtractProjectID(url); id != "" {
			result.ProjectID = id
		}
	}

	if err != nil {
		reason := schemas.ReasonOf(err)
		result.Status = schemas.StatusFailed
		result.Reason = reason
		result.Detail = e.sanitizer.Mask(err.Error())
		if settle {
			sess.Fail(reason)
		}
		e.logger.Error("Task failed.",
			zap.String("task_id", task.TaskID),
			zap.String("reason", string(reason)),
			zap.Int("steps_used", result.StepsUsed),
			zap.Error(err))
		return
	}

	result.Status = schemas.StatusCompleted
	result.Detail = e.sanitizer.Mask(summary)
	if settle {
		if completeErr := sess.Complete(); completeErr != nil {
			e.logger.Warn("Session lifecycle out of step at completion.", zap.Error(completeErr))
		}
	}
	e.logger.Info("Task completed.",
		zap.String("task_id", task.TaskID),
		zap.Int("steps_used", result.StepsUsed),
		zap.String("provider", result.ProviderUsed))
}

// execute runs the pre-loop phases and then the loop. It leaves the
// session in Verifying on success so Run and RunBatch can decide
// whether the session lives on.
func (e *Engine) execute(ctx context.Context, sess schemas.BrowserSession, task *schemas.TaskContext, creds schemas.Credentials, result *schemas.TaskResult) (string, error) {
	if sess.State() == schemas.StateLaunched {
		if !creds.OAuth {
			if err := sess.Navigate(ctx, creds.LoginURL); err != nil {
				return "", err
			}
		}
		if err := sess.Authenticate(ctx, creds); err != nil {
			return "", err
		}
	}

	switch sess.State() {
	case schemas.StateAuthenticated, schemas.StateVerifying:
		if err := sess.MarkInteracting(); err != nil {
			return "", err
		}
	}

	if task.TargetURL != "" {
		if err := sess.Navigate(ctx, task.TargetURL); err != nil {
			return "", err
		}
	}

	return e.loop(ctx, sess, task, result)
}

// loop is the perceive-act cycle. Cancellation is observed at the top
// of every iteration, before any blocking call.
func (e *Engine) loop(ctx context.Context, sess schemas.BrowserSession, task *schemas.TaskContext, result *schemas.TaskResult) (string, error) {
	obs := schemas.Observation{LastActionOK: true}

	for {
		select {
		case <-ctx.Done():
			return "", schemas.NewTaskError(schemas.ReasonCanceled, "engine.loop", ctx.Err())
		default:
		}

		if task.StepsRemaining() == 0 {
			return "", schemas.NewTaskError(schemas.ReasonStepBudgetExhausted, "engine.loop",
				fmt.Errorf("%d steps spent without completion", task.StepBudget))
		}

		shot, err := sess.Screenshot(ctx)
		if err != nil {
			return "", err
		}
		obs.Screenshot = shot
		if url, urlErr := sess.CurrentURL(ctx); urlErr == nil {
			obs.URL = url
		}

		text, err := sess.PageText(ctx)
		if err != nil {
			return "", err
		}
		if ind, found := matchIndicator(text, e.profile.BlockedIndicators, blockedIndicators); found {
			return "", schemas.NewTaskError(schemas.ReasonBlocked, "engine.loop",
				fmt.Errorf("page reports %q", ind))
		}

		dom, err := sess.DOMSnapshot(ctx)
		if err != nil {
			return "", err
		}
		if dismissal, found := e.consent.Detect(dom); found {
			if err := e.dismissConsent(ctx, sess, task, result, dismissal, obs.Screenshot); err != nil {
				return "", err
			}
			obs.LastActionOK = true
			obs.Note = ""
			continue
		}

		active := e.providers.Active()
		verdict := active.NextInstruction(ctx, task, obs)

		switch verdict.Kind {
		case schemas.VerdictFailed:
			task.ElapsedSteps++
			e.logger.Warn("Provider turn failed.",
				zap.String("provider", active.Name()),
				zap.String("reason", string(verdict.Reason)),
				zap.Error(verdict.Err))
			if err := e.providers.OnFailure(ctx, verdict.Err); err != nil {
				return "", err
			}
			obs.LastActionOK = true
			obs.Note = ""

		case schemas.VerdictDone:
			e.providers.OnSuccess()
			summary, verified, err := e.verify(ctx, sess, task)
			if err != nil {
				return "", err
			}
			if verified {
				if verdict.Summary != "" {
					summary = verdict.Summary + " " + summary
				}
				return summary, nil
			}
			// The provider believes it is done but the page does not
			// confirm it yet; loop back and let it keep working.
			task.ElapsedSteps++
			obs.LastActionOK = false
			obs.Note = "The page does not confirm completion yet. Keep going, or correct course if something failed."

		case schemas.VerdictContinue:
			e.providers.OnSuccess()
			if err := e.step(ctx, sess, task, result, active.Name(), verdict.Raw, &obs); err != nil {
				return "", err
			}

		default:
			task.ElapsedSteps++
			obs.LastActionOK = false
			obs.Note = "Invalid response; resubmit your next action."
		}
	}
}

// step adapts one raw instruction and executes it. Decode failures and
// out-of-range coordinates burn a step and ask the provider to
// resubmit; only browser crashes abort the task.
func (e *Engine) step(ctx context.Context, sess schemas.BrowserSession, task *schemas.TaskContext, result *schemas.TaskResult, providerName string, raw *schemas.RawInstruction, obs *schemas.Observation) error {
	action, err := e.adapter.Decode(raw)
	if err != nil {
		task.ElapsedSteps++
		obs.LastActionOK = false
		obs.Note = e.sanitizer.Mask(err.Error())
		e.logger.Warn("Instruction rejected.",
			zap.String("provider", providerName),
			zap.String("instruction", raw.Name),
			zap.String("reason", string(schemas.ReasonOf(err))))
		return nil
	}

	if action.Text != "" && e.sanitizer.Contains(action.Text) {
		action.Sensitive = true
	}

	execErr := sess.Execute(ctx, action)
	task.ElapsedSteps++

	entry := schemas.HistoryEntry{
		Step:     task.ElapsedSteps,
		Provider: providerName,
		Action:   e.sanitizer.MaskAction(action),
		OK:       execErr == nil,
		At:       time.Now().UTC(),
	}
	entry.ScreenshotRef = e.saveDebugShot(task, result, obs.Screenshot)

	if execErr != nil {
		if schemas.ReasonOf(execErr) == schemas.ReasonSessionCrash {
			task.History = append(task.History, entry)
			return execErr
		}
		entry.Note = e.sanitizer.Mask(execErr.Error())
		obs.LastActionOK = false
		obs.Note = entry.Note
	} else {
		obs.LastActionOK = true
		obs.Note = ""
	}

	task.History = append(task.History, entry)
	e.logger.Debug("Step executed.",
		zap.Int("step", entry.Step),
		zap.String("provider", providerName),
		zap.String("kind", string(action.Kind)),
		zap.Bool("ok", entry.OK))
	return nil
}

// dismissConsent executes the synthesized consent click. It bypasses
// the provider entirely but still counts against the step budget.
func (e *Engine) dismissConsent(ctx context.Context, sess schemas.BrowserSession, task *schemas.TaskContext, result *schemas.TaskResult, dismissal schemas.Action, shot []byte) error {
	execErr := sess.Execute(ctx, dismissal)
	task.ElapsedSteps++

	entry := schemas.HistoryEntry{
		Step:     task.ElapsedSteps,
		Provider: "consent",
		Action:   dismissal,
		OK:       execErr == nil,
		At:       time.Now().UTC(),
	}
	entry.ScreenshotRef = e.saveDebugShot(task, result, shot)
	task.History = append(task.History, entry)

	if execErr != nil && schemas.ReasonOf(execErr) == schemas.ReasonSessionCrash {
		return execErr
	}
	e.logger.Info("Consent dialog dismissed.",
		zap.Int("step", entry.Step),
		zap.String("selector", dismissal.Selector),
		zap.Bool("ok", entry.OK))
	return nil
}

// verify checks the page for outcome indicators after a Done verdict.
// It returns (summary, true, nil) on confirmed success, (_, false,
// nil) when nothing confirms or denies the outcome yet, and an error
// for failure or blocked indicators, or when no steps remain to keep
// probing.
func (e *Engine) verify(ctx context.Context, sess schemas.BrowserSession, task *schemas.TaskContext) (string, bool, error) {
	if err := sess.MarkVerifying(); err != nil {
		return "", false, err
	}

	text, err := sess.PageText(ctx)
	if err != nil {
		return "", false, err
	}

	if ind, found := matchIndicator(text, e.profile.BlockedIndicators, blockedIndicators); found {
		return "", false, schemas.NewTaskError(schemas.ReasonBlocked, "engine.verify",
			fmt.Errorf("page reports %q", ind))
	}
	if ind, found := matchIndicator(text, e.profile.FailureIndicators, failureIndicators); found {
		return "", false, schemas.NewTaskError(schemas.ReasonVerificationFailed, "engine.verify",
			fmt.Errorf("page reports %q", ind))
	}
	if ind, found := matchIndicator(text, e.profile.SuccessIndicators, successIndicators); found {
		e.logger.Info("Outcome verified.", zap.String("indicator", ind))
		return fmt.Sprintf("Page confirms %q.", ind), true, nil
	}

	if task.StepsRemaining() <= 1 {
		return "", false, schemas.NewTaskError(schemas.ReasonVerificationFailed, "engine.verify",
			fmt.Errorf("no success indicator on the final page"))
	}
	if err := sess.MarkInteracting(); err != nil {
		return "", false, err
	}
	return "", false, nil
}

// saveDebugShot persists a screenshot when debug capture is enabled
// and returns its path for the history entry. Write failures are
// logged and otherwise ignored.
func (e *Engine) saveDebugShot(task *schemas.TaskContext, result *schemas.TaskResult, shot []byte) string {
	if e.shotDir == "" || len(shot) == 0 {
		return ""
	}
	name := fmt.Sprintf("%s_step%03d.png", task.TaskID, task.ElapsedSteps)
	path := filepath.Join(e.shotDir, name)
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		e.logger.Warn("Debug screenshot not written.", zap.String("path", path), zap.Error(err))
		return ""
	}
	result.Screenshots = append(result.Screenshots, path)
	return path
}

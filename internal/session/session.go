// File: internal/session/session.go

// Package session drives a real Chrome instance over CDP and enforces
// the browser lifecycle state machine. One Session is one task's
// browser: engine code never touches chromedp directly, it hands the
// session resolved actions and phase transitions.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// Default login form selectors, used when the platform config does not
// override them. A comma list resolves to the first match in document
// order.
const (
	defaultUsernameSelector = `input[type="email"], input[name="email"], input[name="username"], input[type="text"]`
	defaultPasswordSelector = `input[type="password"]`
	defaultSubmitSelector   = `button[type="submit"], input[type="submit"]`
)

// runFunc executes chromedp actions against the session's tab. It is a
// field so tests can substitute a scripted browser.
type runFunc func(ctx context.Context, actions ...chromedp.Action) error

// Session is a live browser bound to one task.
type Session struct {
	id       string
	cfg      config.BrowserConfig
	platform config.PlatformConfig
	logger   *zap.Logger
	vp       schemas.Viewport

	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	run runFunc
	sm  *stateMachine

	onClose   func()
	closeOnce sync.Once
}

var _ schemas.BrowserSession = (*Session)(nil)

// New launches a Chrome instance and returns a session in the Launched
// state. The caller owns Close.
func New(parentCtx context.Context, cfg config.BrowserConfig, platform config.PlatformConfig, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.Named("session").With(zap.String("session_id", sessionID))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	if platform.OAuth && cfg.UserDataDir != "" {
		// OAuth platforms live off a persistent profile that already
		// holds the SSO session.
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	// The allocator hangs off a detached context: browser lifetime is
	// owned by Close, not by whichever task context launched it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(parentCtx), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	s := &Session{
		id:          sessionID,
		cfg:         cfg,
		platform:    platform,
		logger:      log,
		vp:          schemas.Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		sm:          newStateMachine(),
	}
	s.run = s.runActions

	// The first Run starts the browser process.
	launchCtx, cancel := context.WithTimeout(tabCtx, cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(launchCtx,
		chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)),
	); err != nil {
		tabCancel()
		allocCancel()
		return nil, schemas.NewTaskError(schemas.ReasonSessionCrash, "session.launch", err)
	}

	if err := s.sm.to(schemas.StateLaunched); err != nil {
		s.Close()
		return nil, err
	}
	log.Info("Browser session launched.",
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight),
		zap.Bool("headless", cfg.Headless))
	return s, nil
}

// ID returns the session identifier used in logs and reports.
func (s *Session) ID() string { return s.id }

func (s *Session) Viewport() schemas.Viewport { return s.vp }

func (s *Session) State() schemas.SessionState { return s.sm.current() }

// FailReason reports why the session failed, if it did.
func (s *Session) FailReason() schemas.ReasonCode { return s.sm.reason() }

// SetOnClose registers a callback invoked once during teardown.
func (s *Session) SetOnClose(callback func()) { s.onClose = callback }

// runActions executes actions against the tab, combining the session
// context (CDP target) with the operational context (deadline).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// classify wraps a chromedp error, promoting it to a session crash
// when the tab itself is gone.
func (s *Session) classify(reason schemas.ReasonCode, op string, err error) error {
	if s.ctx.Err() != nil {
		return schemas.NewTaskError(schemas.ReasonSessionCrash, op, err)
	}
	return schemas.NewTaskError(reason, op, err)
}

// Navigate loads url and waits for the document to become ready. The
// first navigation advances Launched to Navigated; later calls (batch
// mode moving between dashboard and invitations) keep the phase.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.terminal() {
		return schemas.NewTaskError(schemas.ReasonNavigationError, "session.navigate",
			fmt.Errorf("session is %s", s.State()))
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	s.logger.Info("Navigating.", zap.String("url", url))
	err := s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return s.classify(schemas.ReasonNavigationError, "session.navigate", err)
	}

	if s.State() == schemas.StateLaunched {
		return s.sm.to(schemas.StateNavigated)
	}
	return nil
}

// Authenticate performs the login flow and confirms the post-login
// marker. OAuth platforms skip the form: their profile already holds a
// session, so only the marker check runs.
func (s *Session) Authenticate(ctx context.Context, creds schemas.Credentials) error {
	authCtx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout)
	defer cancel()

	if creds.OAuth {
		s.logger.Info("Verifying persisted session.", zap.String("url", creds.DashboardURL))
		if err := s.Navigate(authCtx, creds.DashboardURL); err != nil {
			return err
		}
		if err := s.awaitMarker(authCtx); err != nil {
			return err
		}
		if err := s.sm.to(schemas.StateAuthenticated); err != nil {
			return err
		}
		s.logger.Info("Persisted session is live.")
		return nil
	}

	if err := s.sm.to(schemas.StateAuthenticating); err != nil {
		return err
	}
	s.logger.Info("Authenticating.", zap.String("login_url", creds.LoginURL))

	// Credential values never appear in log fields here; the
	// sanitizing logger core is a second line of defense, not the
	// first.
	err := s.run(authCtx,
		chromedp.Navigate(creds.LoginURL),
		chromedp.WaitVisible(s.usernameSelector(), chromedp.ByQuery),
		chromedp.SendKeys(s.usernameSelector(), creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(s.passwordSelector(), creds.Password, chromedp.ByQuery),
		chromedp.Click(s.submitSelector(), chromedp.ByQuery),
	)
	if err != nil {
		return s.classify(schemas.ReasonAuthenticationError, "session.authenticate", err)
	}

	if err := s.awaitMarker(authCtx); err != nil {
		return err
	}
	if err := s.sm.to(schemas.StateAuthenticated); err != nil {
		return err
	}
	s.logger.Info("Authenticated.")
	return nil
}

// awaitMarker polls until the dashboard marker shows up in the page
// text or URL. No marker configured means a short settle wait.
func (s *Session) awaitMarker(ctx context.Context) error {
	marker := s.platform.DashboardMarker
	if marker == "" {
		return s.run(ctx, chromedp.Sleep(2*time.Second))
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		var text, location string
		err := s.run(ctx,
			chromedp.Location(&location),
			chromedp.Text("body", &text, chromedp.ByQuery),
		)
		if err == nil && (strings.Contains(text, marker) || strings.Contains(location, marker)) {
			return nil
		}

		select {
		case <-ctx.Done():
			return s.classify(schemas.ReasonAuthenticationError, "session.await_marker",
				fmt.Errorf("marker %q not found before deadline", marker))
		case <-ticker.C:
		}
	}
}

// Screenshot captures the viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var buf []byte
	if err := s.run(opCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, s.classify(schemas.ReasonSessionCrash, "session.screenshot", err)
	}
	return buf, nil
}

// DOMSnapshot returns the serialized HTML of the current document.
func (s *Session) DOMSnapshot(ctx context.Context) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var dom string
	if err := s.run(opCtx, chromedp.OuterHTML("html", &dom, chromedp.ByQuery)); err != nil {
		return "", s.classify(schemas.ReasonSessionCrash, "session.dom_snapshot", err)
	}
	return dom, nil
}

// PageText returns the visible text of the current document.
func (s *Session) PageText(ctx context.Context) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var text string
	if err := s.run(opCtx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", s.classify(schemas.ReasonSessionCrash, "session.page_text", err)
	}
	return text, nil
}

// CurrentURL returns the location of the active document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var location string
	if err := s.run(opCtx, chromedp.Location(&location)); err != nil {
		return "", s.classify(schemas.ReasonSessionCrash, "session.current_url", err)
	}
	return location, nil
}

// Execute performs one resolved action.
func (s *Session) Execute(ctx context.Context, action schemas.Action) error {
	if s.terminal() {
		return schemas.NewTaskError(schemas.ReasonSessionCrash, "session.execute",
			fmt.Errorf("session is %s", s.State()))
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var err error
	switch action.Kind {
	case schemas.ActionClick:
		err = s.click(opCtx, action)
	case schemas.ActionType:
		err = s.typeText(opCtx, action)
	case schemas.ActionKeyPress:
		err = s.pressKeys(opCtx, action.Key)
	case schemas.ActionScroll:
		err = s.run(opCtx, input.DispatchMouseEvent(input.MouseWheel, action.Pos.X, action.Pos.Y).
			WithDeltaX(action.DeltaX).
			WithDeltaY(action.DeltaY))
	case schemas.ActionDrag:
		err = s.drag(opCtx, action.Pos, action.To)
	case schemas.ActionWait:
		err = s.run(opCtx, chromedp.Sleep(time.Duration(action.WaitMillis)*time.Millisecond))
	case schemas.ActionScreenshot:
		// The loop recaptures at the top of the next iteration.
		return nil
	default:
		return schemas.NewTaskError(schemas.ReasonUnsupportedInstruction, "session.execute",
			fmt.Errorf("unknown action kind %q", action.Kind))
	}

	if err != nil {
		return s.classify(schemas.ReasonSessionCrash, "session.execute", err)
	}
	return nil
}

func (s *Session) click(ctx context.Context, action schemas.Action) error {
	if action.Selector != "" {
		// Selector clicks come from the consent detector and carry an
		// XPath. BySearch resolves XPath expressions.
		return s.run(ctx,
			chromedp.WaitVisible(action.Selector, chromedp.BySearch),
			chromedp.Click(action.Selector, chromedp.BySearch),
		)
	}
	return s.run(ctx, chromedp.MouseClickXY(action.Pos.X, action.Pos.Y))
}

func (s *Session) typeText(ctx context.Context, action schemas.Action) error {
	text := action.Text
	pressEnter := strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")

	var actions []chromedp.Action
	if action.Pos != (schemas.Point{}) {
		// Focus the target field first. A triple click selects any
		// existing content so typing replaces instead of appending.
		actions = append(actions,
			input.DispatchMouseEvent(input.MousePressed, action.Pos.X, action.Pos.Y).
				WithButton(input.Left).WithClickCount(3),
			input.DispatchMouseEvent(input.MouseReleased, action.Pos.X, action.Pos.Y).
				WithButton(input.Left).WithClickCount(3),
		)
	}
	if text != "" {
		// InsertText handles the full unicode range without key
		// mapping.
		actions = append(actions, input.InsertText(text))
	}
	if err := s.run(ctx, actions...); err != nil {
		return err
	}
	if pressEnter {
		return s.pressKeys(ctx, "Enter")
	}
	return nil
}

func (s *Session) pressKeys(ctx context.Context, raw string) error {
	chord, err := parseKeyChord(raw)
	if err != nil {
		return schemas.NewTaskError(schemas.ReasonUnsupportedInstruction, "session.key_press", err)
	}
	return s.run(ctx,
		input.DispatchKeyEvent(input.KeyDown).WithModifiers(chord.modifiers).WithKey(chord.key),
		input.DispatchKeyEvent(input.KeyUp).WithModifiers(chord.modifiers).WithKey(chord.key),
	)
}

// drag presses at from, moves in a few steps, and releases at to.
// Intermediate moves make drag handlers that track mousemove fire.
func (s *Session) drag(ctx context.Context, from, to schemas.Point) error {
	const steps = 4
	actions := []chromedp.Action{
		input.DispatchMouseEvent(input.MousePressed, from.X, from.Y).
			WithButton(input.Left).WithClickCount(1),
	}
	for i := 1; i <= steps; i++ {
		frac := float64(i) / steps
		x := from.X + (to.X-from.X)*frac
		y := from.Y + (to.Y-from.Y)*frac
		actions = append(actions,
			input.DispatchMouseEvent(input.MouseMoved, x, y).WithButton(input.Left))
	}
	actions = append(actions,
		input.DispatchMouseEvent(input.MouseReleased, to.X, to.Y).
			WithButton(input.Left).WithClickCount(1))
	return s.run(ctx, actions...)
}

// CountNodes reports how many elements match selector.
func (s *Session) CountNodes(ctx context.Context, selector string) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var count int
	expr := fmt.Sprintf("document.querySelectorAll(%q).length", selector)
	err := s.run(opCtx, chromedp.Evaluate(expr, &count, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true)
	}))
	if err != nil {
		return 0, s.classify(schemas.ReasonSessionCrash, "session.count_nodes", err)
	}
	return count, nil
}

// ClickNode clicks the index-th element matching selector. Invitation
// rows are anchors or buttons, so a DOM click is enough; no pointer
// simulation needed.
func (s *Session) ClickNode(ctx context.Context, selector string, index int) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var clicked bool
	expr := fmt.Sprintf(`(() => {
		const nodes = document.querySelectorAll(%q);
		if (%d >= nodes.length) { return false; }
		nodes[%d].click();
		return true;
	})()`, selector, index, index)
	err := s.run(opCtx, chromedp.Evaluate(expr, &clicked, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true)
	}))
	if err != nil {
		return s.classify(schemas.ReasonSessionCrash, "session.click_node", err)
	}
	if !clicked {
		return schemas.NewTaskError(schemas.ReasonNavigationError, "session.click_node",
			fmt.Errorf("no element %d for selector %q", index, selector))
	}
	return nil
}

// -- Lifecycle --

func (s *Session) MarkInteracting() error { return s.sm.to(schemas.StateInteracting) }
func (s *Session) MarkVerifying() error   { return s.sm.to(schemas.StateVerifying) }
func (s *Session) Complete() error        { return s.sm.to(schemas.StateCompleted) }

// Fail moves the session to Failed from any non-terminal state.
func (s *Session) Fail(reason schemas.ReasonCode) { s.sm.fail(reason) }

func (s *Session) terminal() bool {
	st := s.State()
	return st == schemas.StateCompleted || st == schemas.StateFailed
}

// Close releases the browser. Safe to call more than once; teardown
// runs exactly once regardless of how the task ended.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing browser session.", zap.String("state", string(s.State())))
		if s.tabCancel != nil {
			s.tabCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

func (s *Session) usernameSelector() string {
	if s.platform.UsernameSelector != "" {
		return s.platform.UsernameSelector
	}
	return defaultUsernameSelector
}

func (s *Session) passwordSelector() string {
	if s.platform.PasswordSelector != "" {
		return s.platform.PasswordSelector
	}
	return defaultPasswordSelector
}

func (s *Session) submitSelector() string {
	if s.platform.SubmitSelector != "" {
		return s.platform.SubmitSelector
	}
	return defaultSubmitSelector
}

// File: api/schemas/interfaces.go
package schemas

import "context"

// SessionState is the lifecycle state of a browser session. Transitions
// are enforced by the session itself; see internal/session.
type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateLaunched       SessionState = "launched"
	StateNavigated      SessionState = "navigated"
	StateAuthenticating SessionState = "authenticating"
	StateAuthenticated  SessionState = "authenticated"
	StateInteracting    SessionState = "interacting"
	StateVerifying      SessionState = "verifying"
	StateCompleted      SessionState = "completed"
	StateFailed         SessionState = "failed"
)

// BrowserSession abstracts the live browser the engine drives. The
// concrete implementation lives in internal/session; tests substitute
// scripted fakes.
type BrowserSession interface {
	// Navigate loads url and waits for the document to become ready.
	Navigate(ctx context.Context, url string) error

	// Authenticate performs the login flow for creds and confirms the
	// post-login marker. For OAuth platforms it only verifies that the
	// persisted profile still holds a live session.
	Authenticate(ctx context.Context, creds Credentials) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// DOMSnapshot returns the serialized HTML of the current document.
	DOMSnapshot(ctx context.Context) (string, error)

	// PageText returns the visible text of the current document.
	PageText(ctx context.Context) (string, error)

	// CurrentURL returns the location of the active document.
	CurrentURL(ctx context.Context) (string, error)

	// Execute performs one resolved action.
	Execute(ctx context.Context, action Action) error

	// CountNodes reports how many elements match the CSS selector.
	// Batch mode uses it to bound the invitation sweep.
	CountNodes(ctx context.Context, selector string) (int, error)

	// ClickNode clicks the index-th element matching the CSS
	// selector, in document order.
	ClickNode(ctx context.Context, selector string, index int) error

	// Viewport reports the emulated viewport dimensions.
	Viewport() Viewport

	// State returns the current lifecycle state.
	State() SessionState

	// MarkInteracting, MarkVerifying, Complete and Fail advance the
	// lifecycle on behalf of the engine, which owns the task-level
	// phases.
	MarkInteracting() error
	MarkVerifying() error
	Complete() error
	Fail(reason ReasonCode)

	// Close releases the browser. Safe to call more than once; the
	// underlying teardown runs exactly once.
	Close() error
}

// ProviderClient is one vision-model backend. NextInstruction never
// returns a Go error: transport and API failures come back as a
// VerdictFailed so the failover controller can treat every provider
// identically.
type ProviderClient interface {
	Name() string
	NextInstruction(ctx context.Context, task *TaskContext, obs Observation) ProviderVerdict
}

// Reporter persists a finished task's result.
type Reporter interface {
	Write(ctx context.Context, result *TaskResult) error
}

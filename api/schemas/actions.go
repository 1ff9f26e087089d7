// File: api/schemas/actions.go
package schemas

// ActionKind enumerates every browser action the engine knows how to
// execute. Provider-specific instruction names are decoded into these
// by internal/protocol; nothing downstream of the adapter ever sees a
// provider vocabulary.
type ActionKind string

const (
	ActionClick      ActionKind = "click"
	ActionType       ActionKind = "type"
	ActionScroll     ActionKind = "scroll"
	ActionKeyPress   ActionKind = "key_press"
	ActionDrag       ActionKind = "drag"
	ActionWait       ActionKind = "wait"
	ActionScreenshot ActionKind = "screenshot"
)

// Point is a coordinate in viewport pixel space. Provider-native
// coordinate systems (e.g. the 0-1000 normalized grid) are translated
// into this space before an Action is constructed.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport describes the dimensions of the page area screenshots are
// taken from and coordinates are resolved against.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Action is a single, fully resolved browser command. Construct one,
// hand it to the session, and do not mutate it afterwards; history
// entries hold them by value.
//
// Which fields are meaningful depends on Kind:
//
//	ActionClick      Pos, or Selector for engine-synthesized clicks
//	ActionType       Text, optionally Pos to focus a target first
//	ActionScroll     Pos (origin), DeltaX/DeltaY in pixels
//	ActionKeyPress   Key ("Enter", "Control+a", ...)
//	ActionDrag       Pos (start) and To (end)
//	ActionWait       WaitMillis
//	ActionScreenshot no fields; the loop recaptures on the next turn
type Action struct {
	Kind   ActionKind `json:"kind"`
	Pos    Point      `json:"pos,omitempty"`
	To     Point      `json:"to,omitempty"`
	Text   string     `json:"text,omitempty"`
	Key    string     `json:"key,omitempty"`
	DeltaX float64    `json:"delta_x,omitempty"`
	DeltaY float64    `json:"delta_y,omitempty"`

	// WaitMillis is the pause duration for ActionWait.
	WaitMillis int `json:"wait_millis,omitempty"`

	// Selector, when non-empty, resolves the click target by XPath
	// instead of coordinates. Only the consent detector produces
	// selector clicks; provider decoders never set this field.
	Selector string `json:"selector,omitempty"`

	// Sensitive marks the Text payload as credential material so the
	// history and logs record it masked.
	Sensitive bool `json:"sensitive,omitempty"`
}

// RawInstruction is a provider instruction exactly as it came off the
// wire, before protocol adaptation. Args preserves the provider's own
// field names and value types.
type RawInstruction struct {
	Provider string         `json:"provider"`
	Name     string         `json:"name"`
	Args     map[string]any `json:"args"`
}

// VerdictKind is the outcome of a single provider turn.
type VerdictKind string

const (
	// VerdictContinue carries one raw instruction to adapt and execute.
	VerdictContinue VerdictKind = "continue"
	// VerdictDone means the provider believes the goal is achieved.
	// The engine still runs outcome verification before trusting it.
	VerdictDone VerdictKind = "done"
	// VerdictFailed reports a failed turn. Transport and API errors
	// surface here, never as a Go error from NextInstruction.
	VerdictFailed VerdictKind = "failed"
)

// ProviderVerdict is the sole result type of a provider turn.
type ProviderVerdict struct {
	Kind VerdictKind

	// Raw is set when Kind is VerdictContinue.
	Raw *RawInstruction

	// Summary is the provider's closing text when Kind is VerdictDone.
	Summary string

	// Reason and Err describe the failure when Kind is VerdictFailed.
	Reason ReasonCode
	Err    error
}

// ContinueVerdict wraps a raw instruction.
func ContinueVerdict(raw *RawInstruction) ProviderVerdict {
	return ProviderVerdict{Kind: VerdictContinue, Raw: raw}
}

// DoneVerdict reports goal completion with the provider's summary.
func DoneVerdict(summary string) ProviderVerdict {
	return ProviderVerdict{Kind: VerdictDone, Summary: summary}
}

// FailedVerdict reports a failed provider turn.
func FailedVerdict(reason ReasonCode, err error) ProviderVerdict {
	return ProviderVerdict{Kind: VerdictFailed, Reason: reason, Err: err}
}

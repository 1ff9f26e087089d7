package provider

import (
	"context"
	encodingjson "encoding/json"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

var testViewport = schemas.Viewport{Width: 1280, Height: 800}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(context.Background(), config.ProviderConfig{Kind: "openai"}, testViewport, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider kind")
}

func TestNewRequiresAPIKey(t *testing.T) {
	for _, kind := range []string{"gemini", "anthropic"} {
		_, err := New(context.Background(), config.ProviderConfig{Kind: kind, Model: "m"}, testViewport, zap.NewNop())
		require.Error(t, err, kind)
		assert.Contains(t, err.Error(), "api key", kind)
	}
}

func TestNewLimiter(t *testing.T) {
	t.Run("zero disables pacing", func(t *testing.T) {
		l := newLimiter(0)
		assert.Equal(t, rate.Inf, l.Limit())
	})

	t.Run("per minute converts to per second", func(t *testing.T) {
		l := newLimiter(30)
		assert.InDelta(t, 0.5, float64(l.Limit()), 0.001)
	})
}

func TestTransportFailureVerdict(t *testing.T) {
	v := transportFailure("gemini.generate", context.DeadlineExceeded)
	require.Equal(t, schemas.VerdictFailed, v.Kind)
	assert.Equal(t, schemas.ReasonTransportError, v.Reason)
	assert.Equal(t, schemas.ReasonTransportError, schemas.ReasonOf(v.Err))
}

func TestTaskPrompt(t *testing.T) {
	task := &schemas.TaskContext{
		Goal: "Accept the project invitation and fill the screening form",
		FormData: map[string]string{
			"hourly_rate": "450",
			"full_name":   "Jane Expert",
		},
	}

	prompt := taskPrompt(task)
	assert.Contains(t, prompt, "Accept the project invitation")
	assert.Contains(t, prompt, "full_name: Jane Expert")
	assert.Contains(t, prompt, "hourly_rate: 450")
	assert.Contains(t, prompt, "Never navigate")

	// Deterministic field order.
	for i := 0; i < 5; i++ {
		assert.Equal(t, prompt, taskPrompt(task))
	}
}

func TestTaskPromptCarriesExecutedHistory(t *testing.T) {
	task := &schemas.TaskContext{
		Goal: "Fill the screening form",
		History: []schemas.HistoryEntry{
			{Step: 1, Action: schemas.Action{Kind: schemas.ActionClick, Pos: schemas.Point{X: 640, Y: 400}}, OK: true},
			{Step: 2, Action: schemas.Action{Kind: schemas.ActionType, Text: "***REDACTED***", Pos: schemas.Point{X: 640, Y: 460}}, OK: true},
			{Step: 3, Action: schemas.Action{Kind: schemas.ActionKeyPress, Key: "Enter"}, OK: false, Note: "element not interactable"},
		},
	}

	prompt := taskPrompt(task)
	assert.Contains(t, prompt, "Actions already performed")
	assert.Contains(t, prompt, "1. Clicked at (640, 400)")
	assert.Contains(t, prompt, `2. Typed "***REDACTED***" at (640, 460)`)
	assert.Contains(t, prompt, "3. Pressed Enter (failed: element not interactable)")
	assert.Contains(t, prompt, "do not repeat them")
}

func TestDescribeAction(t *testing.T) {
	assert.Equal(t, "Clicked the cookie-consent button",
		describeAction(schemas.Action{Kind: schemas.ActionClick, Selector: `//button[@id="accept"]`}))
	assert.Equal(t, "Scrolled by (0, 300)",
		describeAction(schemas.Action{Kind: schemas.ActionScroll, DeltaY: 300}))
	assert.Equal(t, "Dragged from (10, 20) to (30, 40)",
		describeAction(schemas.Action{Kind: schemas.ActionDrag, Pos: schemas.Point{X: 10, Y: 20}, To: schemas.Point{X: 30, Y: 40}}))
	assert.Equal(t, "Waited 5000ms",
		describeAction(schemas.Action{Kind: schemas.ActionWait, WaitMillis: 5000}))
	assert.Equal(t, "Took a screenshot",
		describeAction(schemas.Action{Kind: schemas.ActionScreenshot}))
}

func TestTaskPromptWithoutFormData(t *testing.T) {
	prompt := taskPrompt(&schemas.TaskContext{Goal: "Decline the invitation politely"})
	assert.Contains(t, prompt, "Decline the invitation")
	assert.NotContains(t, prompt, "form fields")
}

func TestResultNote(t *testing.T) {
	assert.Equal(t, "Action executed.", resultNote(schemas.Observation{LastActionOK: true}))
	assert.Equal(t, "Action executed. Page scrolled.", resultNote(schemas.Observation{LastActionOK: true, Note: "Page scrolled."}))

	failed := resultNote(schemas.Observation{LastActionOK: false, Note: "coordinate outside the viewport."})
	assert.Contains(t, failed, "was not executed")
	assert.Contains(t, failed, "coordinate outside the viewport.")
	assert.Contains(t, failed, "different action")
}

func TestToolInputArgs(t *testing.T) {
	args, err := toolInputArgs(map[string]any{"action": "left_click", "coordinate": []any{12.0, 34.0}})
	require.NoError(t, err)
	assert.Equal(t, "left_click", stringValue(args, "action"))

	args, err = toolInputArgs(encodingjson.RawMessage(`{"action":"screenshot"}`))
	require.NoError(t, err)
	assert.Equal(t, "screenshot", stringValue(args, "action"))
}

func decodeBetaMessage(t *testing.T, raw string) *anthropic.BetaMessage {
	t.Helper()
	var msg anthropic.BetaMessage
	require.NoError(t, encodingjson.Unmarshal([]byte(raw), &msg))
	return &msg
}

func TestConsumeResponseExtractsToolUse(t *testing.T) {
	a := &Anthropic{logger: zap.NewNop()}
	a.messages = append(a.messages, anthropic.NewBetaUserMessage(
		anthropic.NewBetaTextBlock("Here is the current page. Begin."),
	))

	resp := decodeBetaMessage(t, `{"role":"assistant","content":[
		{"type":"tool_use","id":"toolu_1","name":"computer",
		 "input":{"action":"left_click","coordinate":[12,34]}}]}`)

	v := a.consumeResponse(resp)
	require.Equal(t, schemas.VerdictContinue, v.Kind)
	require.NotNil(t, v.Raw)
	assert.Equal(t, "computer", v.Raw.Name)
	assert.Equal(t, "left_click", stringValue(v.Raw.Args, "action"))
	assert.Equal(t, "toolu_1", a.pendingToolID)
	assert.Len(t, a.messages, 2)
}

func TestConsumeResponseUnwindsUndecodableToolUse(t *testing.T) {
	a := &Anthropic{logger: zap.NewNop()}
	a.messages = append(a.messages, anthropic.NewBetaUserMessage(
		anthropic.NewBetaTextBlock("Here is the current page. Begin."),
	))

	// A tool_use whose input is not an object cannot be answered with
	// a tool_result, so both turns of the exchange must be unwound or
	// the next API call is rejected for the dangling call.
	resp := decodeBetaMessage(t, `{"role":"assistant","content":[
		{"type":"tool_use","id":"toolu_2","name":"computer","input":"garbage"}]}`)

	v := a.consumeResponse(resp)
	require.Equal(t, schemas.VerdictFailed, v.Kind)
	assert.Equal(t, schemas.ReasonTransportError, v.Reason)
	assert.Empty(t, a.messages)
	assert.Empty(t, a.pendingToolID)
}

func TestLimiterRespectsContext(t *testing.T) {
	l := rate.NewLimiter(rate.Limit(0.001), 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.Error(t, err)
}

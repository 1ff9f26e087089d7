package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/translate"
)

func newAdapter(t *testing.T) *Adapter {
	t.Helper()
	tr := translate.New(schemas.Viewport{Width: 1280, Height: 800}, 24)
	return NewAdapter(tr, GeminiDecoder{}, AnthropicDecoder{})
}

func gemini(name string, args map[string]any) *schemas.RawInstruction {
	return &schemas.RawInstruction{Provider: ProviderGemini, Name: name, Args: args}
}

func anthropic(args map[string]any) *schemas.RawInstruction {
	return &schemas.RawInstruction{Provider: ProviderAnthropic, Name: "computer", Args: args}
}

func TestGeminiClickAt(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(gemini("click_at", map[string]any{"x": 500.0, "y": 500.0}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionClick, act.Kind)
	assert.InDelta(t, 640, act.Pos.X, 0.01)
	assert.InDelta(t, 400, act.Pos.Y, 0.01)
}

func TestGeminiClickAtMissingCoordinate(t *testing.T) {
	a := newAdapter(t)

	_, err := a.Decode(gemini("click_at", map[string]any{"x": 500.0}))
	require.Error(t, err)
	assert.Equal(t, schemas.ReasonUnsupportedInstruction, schemas.ReasonOf(err))
}

func TestGeminiClickAtOutOfGrid(t *testing.T) {
	a := newAdapter(t)

	_, err := a.Decode(gemini("click_at", map[string]any{"x": 1600.0, "y": 200.0}))
	require.Error(t, err)
	assert.Equal(t, schemas.ReasonCoordinateOutOfRange, schemas.ReasonOf(err))
}

func TestGeminiTypeTextAt(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(gemini("type_text_at", map[string]any{
		"x": 250.0, "y": 125.0, "text": "Jane Expert", "press_enter": true,
	}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionType, act.Kind)
	assert.Equal(t, "Jane Expert\n", act.Text)
	assert.InDelta(t, 320, act.Pos.X, 0.01)
	assert.InDelta(t, 100, act.Pos.Y, 0.01)
}

func TestGeminiTypeTextAtMissingText(t *testing.T) {
	a := newAdapter(t)

	_, err := a.Decode(gemini("type_text_at", map[string]any{"x": 10.0, "y": 10.0}))
	require.Error(t, err)
	assert.Equal(t, schemas.ReasonUnsupportedInstruction, schemas.ReasonOf(err))
}

func TestGeminiScrollDocument(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(gemini("scroll_document", map[string]any{"direction": "down"}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionScroll, act.Kind)
	assert.Zero(t, act.DeltaX)
	assert.InDelta(t, 640, act.DeltaY, 0.01)
	assert.Equal(t, schemas.Point{X: 640, Y: 400}, act.Pos)
}

func TestGeminiScrollAtWithMagnitude(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(gemini("scroll_at", map[string]any{
		"x": 500.0, "y": 500.0, "direction": "up", "magnitude": 250.0,
	}))
	require.NoError(t, err)
	assert.InDelta(t, -200, act.DeltaY, 0.01)
}

func TestGeminiDragAndDrop(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(gemini("drag_and_drop", map[string]any{
		"x": 0.0, "y": 0.0, "destination_x": 500.0, "destination_y": 500.0,
	}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionDrag, act.Kind)
	assert.Equal(t, schemas.Point{X: 0, Y: 0}, act.Pos)
	assert.InDelta(t, 640, act.To.X, 0.01)
}

func TestGeminiNavigationRejected(t *testing.T) {
	a := newAdapter(t)

	for _, name := range []string{"navigate", "go_back", "go_forward", "search", "hover_at"} {
		_, err := a.Decode(gemini(name, map[string]any{"url": "https://example.com", "x": 1.0, "y": 1.0}))
		require.Error(t, err, name)
		assert.Equal(t, schemas.ReasonUnsupportedInstruction, schemas.ReasonOf(err), name)
	}
}

func TestGeminiWaitAndBrowserNoop(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(gemini("wait_5_seconds", nil))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionWait, act.Kind)
	assert.Equal(t, 5000, act.WaitMillis)

	act, err = a.Decode(gemini("open_web_browser", nil))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionScreenshot, act.Kind)
}

func TestAnthropicLeftClick(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(anthropic(map[string]any{
		"action": "left_click", "coordinate": []any{640.0, 400.0},
	}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionClick, act.Kind)
	assert.Equal(t, schemas.Point{X: 640, Y: 400}, act.Pos)
}

func TestAnthropicClickOutsideViewport(t *testing.T) {
	a := newAdapter(t)

	_, err := a.Decode(anthropic(map[string]any{
		"action": "left_click", "coordinate": []any{2000.0, 400.0},
	}))
	require.Error(t, err)
	assert.Equal(t, schemas.ReasonCoordinateOutOfRange, schemas.ReasonOf(err))
}

func TestAnthropicClickClampsInTolerance(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(anthropic(map[string]any{
		"action": "left_click", "coordinate": []any{1290.0, 400.0},
	}))
	require.NoError(t, err)
	assert.Equal(t, float64(1279), act.Pos.X)
}

func TestAnthropicScroll(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(anthropic(map[string]any{
		"action":           "scroll",
		"coordinate":       []any{640.0, 400.0},
		"scroll_direction": "down",
		"scroll_amount":    3.0,
	}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionScroll, act.Kind)
	assert.InDelta(t, 300, act.DeltaY, 0.01)
}

func TestAnthropicScrollMissingAmount(t *testing.T) {
	a := newAdapter(t)

	_, err := a.Decode(anthropic(map[string]any{
		"action":           "scroll",
		"coordinate":       []any{640.0, 400.0},
		"scroll_direction": "down",
	}))
	require.Error(t, err)
	assert.Equal(t, schemas.ReasonUnsupportedInstruction, schemas.ReasonOf(err))
}

func TestAnthropicDragBothOriginKeys(t *testing.T) {
	a := newAdapter(t)

	for _, originKey := range []string{"start_coordinate", "coordinate"} {
		act, err := a.Decode(anthropic(map[string]any{
			"action":        "left_click_drag",
			originKey:       []any{100.0, 100.0},
			"to_coordinate": []any{300.0, 500.0},
		}))
		require.NoError(t, err, originKey)
		assert.Equal(t, schemas.Point{X: 100, Y: 100}, act.Pos)
		assert.Equal(t, schemas.Point{X: 300, Y: 500}, act.To)
	}
}

func TestAnthropicKeyAndType(t *testing.T) {
	a := newAdapter(t)

	act, err := a.Decode(anthropic(map[string]any{"action": "key", "text": "Return"}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionKeyPress, act.Kind)
	assert.Equal(t, "Return", act.Key)

	act, err = a.Decode(anthropic(map[string]any{"action": "type", "text": "hello"}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionType, act.Kind)
	assert.Equal(t, "hello", act.Text)
	assert.Zero(t, act.Pos)
}

func TestAnthropicDesktopActionsRejected(t *testing.T) {
	a := newAdapter(t)

	for _, name := range []string{"right_click", "middle_click", "mouse_move", "hold_key", "left_mouse_down"} {
		_, err := a.Decode(anthropic(map[string]any{"action": name, "coordinate": []any{1.0, 1.0}}))
		require.Error(t, err, name)
		assert.Equal(t, schemas.ReasonUnsupportedInstruction, schemas.ReasonOf(err), name)
	}
}

func TestAdapterUnknownProvider(t *testing.T) {
	a := newAdapter(t)

	_, err := a.Decode(&schemas.RawInstruction{Provider: "openai", Name: "click"})
	require.Error(t, err)
	assert.Equal(t, schemas.ReasonUnsupportedInstruction, schemas.ReasonOf(err))

	_, err = a.Decode(nil)
	require.Error(t, err)
}

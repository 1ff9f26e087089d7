// File: internal/protocol/anthropic.go
package protocol

import (
	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/translate"
)

// ProviderAnthropic is the vocabulary name for the Anthropic
// computer-use tool. Coordinates arrive as viewport pixels in a
// two-element "coordinate" array.
const ProviderAnthropic = "anthropic"

// wheelUnitPx is how many pixels one unit of the tool's scroll_amount
// moves.
const wheelUnitPx = 100

// AnthropicDecoder decodes Anthropic computer-use tool calls.
type AnthropicDecoder struct{}

func (AnthropicDecoder) Provider() string { return ProviderAnthropic }

func (d AnthropicDecoder) Decode(raw *schemas.RawInstruction, tr *translate.Translator) (schemas.Action, error) {
	args := raw.Args
	action, ok := stringArg(args, "action")
	if !ok {
		return schemas.Action{}, unsupported(ProviderAnthropic, raw.Name, "missing action field")
	}

	switch action {
	case "screenshot":
		return schemas.Action{Kind: schemas.ActionScreenshot}, nil

	case "left_click", "double_click", "triple_click":
		pos, err := d.coordinate(args, "coordinate", action, tr)
		if err != nil {
			return schemas.Action{}, err
		}
		return schemas.Action{Kind: schemas.ActionClick, Pos: pos}, nil

	case "type":
		text, ok := stringArg(args, "text")
		if !ok {
			return schemas.Action{}, unsupported(ProviderAnthropic, action, "missing text")
		}
		return schemas.Action{Kind: schemas.ActionType, Text: text}, nil

	case "key":
		text, ok := stringArg(args, "text")
		if !ok || text == "" {
			return schemas.Action{}, unsupported(ProviderAnthropic, action, "missing text")
		}
		return schemas.Action{Kind: schemas.ActionKeyPress, Key: text}, nil

	case "scroll":
		pos, err := d.coordinate(args, "coordinate", action, tr)
		if err != nil {
			return schemas.Action{}, err
		}
		dir, ok := stringArg(args, "scroll_direction")
		if !ok {
			return schemas.Action{}, unsupported(ProviderAnthropic, action, "missing scroll_direction")
		}
		amount, ok := floatArg(args, "scroll_amount")
		if !ok {
			return schemas.Action{}, unsupported(ProviderAnthropic, action, "missing scroll_amount")
		}
		mag := amount * wheelUnitPx
		dx, dy, err := scrollDelta(dir, mag, mag)
		if err != nil {
			return schemas.Action{}, unsupported(ProviderAnthropic, action, err.Error())
		}
		return schemas.Action{Kind: schemas.ActionScroll, Pos: pos, DeltaX: dx, DeltaY: dy}, nil

	case "left_click_drag":
		// Older tool versions put the origin under "coordinate".
		originKey := "start_coordinate"
		if _, present := args[originKey]; !present {
			originKey = "coordinate"
		}
		from, err := d.coordinate(args, originKey, action, tr)
		if err != nil {
			return schemas.Action{}, err
		}
		to, err := d.coordinate(args, "to_coordinate", action, tr)
		if err != nil {
			return schemas.Action{}, err
		}
		return schemas.Action{Kind: schemas.ActionDrag, Pos: from, To: to}, nil

	case "wait":
		dur, ok := floatArg(args, "duration")
		if !ok {
			return schemas.Action{}, unsupported(ProviderAnthropic, action, "missing duration")
		}
		return schemas.Action{Kind: schemas.ActionWait, WaitMillis: int(dur * 1000)}, nil

	default:
		// right_click, middle_click, mouse_move, hold_key and the
		// rest have no place on a web form; the model is told so and
		// rejected if it tries.
		return schemas.Action{}, unsupported(ProviderAnthropic, action, "instruction not supported")
	}
}

func (AnthropicDecoder) coordinate(args map[string]any, key, name string, tr *translate.Translator) (schemas.Point, error) {
	x, y, ok := pairArg(args, key)
	if !ok {
		return schemas.Point{}, unsupported(ProviderAnthropic, name, "missing "+key)
	}
	return tr.ToViewport(schemas.Point{X: x, Y: y}, translate.UnitPixel)
}

// File: internal/protocol/gemini.go
package protocol

import (
	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/translate"
)

// ProviderGemini is the vocabulary name for the Gemini computer-use
// tool. All coordinates arrive on a 0-1000 normalized grid.
const ProviderGemini = "gemini"

// docScrollFraction is how much of the viewport a whole-document
// scroll moves when the instruction carries no magnitude.
const docScrollFraction = 0.8

// GeminiDecoder decodes Gemini computer-use function calls.
type GeminiDecoder struct{}

func (GeminiDecoder) Provider() string { return ProviderGemini }

func (d GeminiDecoder) Decode(raw *schemas.RawInstruction, tr *translate.Translator) (schemas.Action, error) {
	args := raw.Args
	switch raw.Name {
	case "click_at":
		pos, err := d.point(args, "x", "y", raw.Name, tr)
		if err != nil {
			return schemas.Action{}, err
		}
		return schemas.Action{Kind: schemas.ActionClick, Pos: pos}, nil

	case "type_text_at":
		pos, err := d.point(args, "x", "y", raw.Name, tr)
		if err != nil {
			return schemas.Action{}, err
		}
		text, ok := stringArg(args, "text")
		if !ok {
			return schemas.Action{}, unsupported(ProviderGemini, raw.Name, "missing text")
		}
		// press_enter is optional; a trailing newline tells the
		// executor to finish with the Enter key.
		if enter, _ := args["press_enter"].(bool); enter {
			text += "\n"
		}
		return schemas.Action{Kind: schemas.ActionType, Pos: pos, Text: text}, nil

	case "key_combination":
		keys, ok := stringArg(args, "keys")
		if !ok || keys == "" {
			return schemas.Action{}, unsupported(ProviderGemini, raw.Name, "missing keys")
		}
		return schemas.Action{Kind: schemas.ActionKeyPress, Key: keys}, nil

	case "scroll_document":
		dir, ok := stringArg(args, "direction")
		if !ok {
			return schemas.Action{}, unsupported(ProviderGemini, raw.Name, "missing direction")
		}
		vp := tr.Viewport()
		center := schemas.Point{X: float64(vp.Width) / 2, Y: float64(vp.Height) / 2}
		dx, dy, err := scrollDelta(dir, docScrollFraction*float64(vp.Width), docScrollFraction*float64(vp.Height))
		if err != nil {
			return schemas.Action{}, unsupported(ProviderGemini, raw.Name, err.Error())
		}
		return schemas.Action{Kind: schemas.ActionScroll, Pos: center, DeltaX: dx, DeltaY: dy}, nil

	case "scroll_at":
		pos, err := d.point(args, "x", "y", raw.Name, tr)
		if err != nil {
			return schemas.Action{}, err
		}
		dir, ok := stringArg(args, "direction")
		if !ok {
			return schemas.Action{}, unsupported(ProviderGemini, raw.Name, "missing direction")
		}
		vp := tr.Viewport()
		// magnitude is in normalized grid units; absent means a
		// document-fraction scroll like scroll_document.
		magX := docScrollFraction * float64(vp.Width)
		magY := docScrollFraction * float64(vp.Height)
		if mag, ok := floatArg(args, "magnitude"); ok {
			magX = mag / 1000 * float64(vp.Width)
			magY = mag / 1000 * float64(vp.Height)
		}
		dx, dy, err := scrollDelta(dir, magX, magY)
		if err != nil {
			return schemas.Action{}, unsupported(ProviderGemini, raw.Name, err.Error())
		}
		return schemas.Action{Kind: schemas.ActionScroll, Pos: pos, DeltaX: dx, DeltaY: dy}, nil

	case "drag_and_drop":
		from, err := d.point(args, "x", "y", raw.Name, tr)
		if err != nil {
			return schemas.Action{}, err
		}
		to, err := d.point(args, "destination_x", "destination_y", raw.Name, tr)
		if err != nil {
			return schemas.Action{}, err
		}
		return schemas.Action{Kind: schemas.ActionDrag, Pos: from, To: to}, nil

	case "wait_5_seconds":
		return schemas.Action{Kind: schemas.ActionWait, WaitMillis: 5000}, nil

	case "open_web_browser":
		// The browser is already open; acknowledge with a fresh
		// screenshot on the next turn.
		return schemas.Action{Kind: schemas.ActionScreenshot}, nil

	default:
		// hover_at, navigate, go_back, go_forward and search are
		// steered away from in the system prompt; if the model emits
		// one anyway it is rejected and asked to act another way.
		return schemas.Action{}, unsupported(ProviderGemini, raw.Name, "instruction not supported")
	}
}

func (GeminiDecoder) point(args map[string]any, xKey, yKey, name string, tr *translate.Translator) (schemas.Point, error) {
	x, xok := floatArg(args, xKey)
	y, yok := floatArg(args, yKey)
	if !xok || !yok {
		return schemas.Point{}, unsupported(ProviderGemini, name, "missing "+xKey+"/"+yKey)
	}
	return tr.ToViewport(schemas.Point{X: x, Y: y}, translate.UnitNormalized1000)
}

// File: internal/protocol/protocol.go

// Package protocol decodes provider-native instructions into canonical
// actions. Each provider speaks its own action vocabulary with its own
// field names and coordinate system; the decoders here are the only
// code that understands those vocabularies. A decoder never guesses: a
// missing required field or an unknown instruction name is a hard
// unsupported_instruction error, not a defaulted value.
package protocol

import (
	"fmt"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/translate"
)

// Decoder turns one provider's raw instructions into actions.
type Decoder interface {
	// Provider is the vocabulary this decoder understands, matching
	// RawInstruction.Provider.
	Provider() string
	Decode(raw *schemas.RawInstruction, tr *translate.Translator) (schemas.Action, error)
}

// Adapter routes raw instructions to the decoder registered for their
// provider.
type Adapter struct {
	decoders map[string]Decoder
	tr       *translate.Translator
}

// NewAdapter registers decoders keyed by their provider name.
func NewAdapter(tr *translate.Translator, decoders ...Decoder) *Adapter {
	m := make(map[string]Decoder, len(decoders))
	for _, d := range decoders {
		m[d.Provider()] = d
	}
	return &Adapter{decoders: m, tr: tr}
}

// Decode resolves raw into a canonical action in viewport pixel space.
func (a *Adapter) Decode(raw *schemas.RawInstruction) (schemas.Action, error) {
	if raw == nil {
		return schemas.Action{}, schemas.NewTaskError(schemas.ReasonUnsupportedInstruction,
			"protocol.decode", fmt.Errorf("nil instruction"))
	}
	d, ok := a.decoders[raw.Provider]
	if !ok {
		return schemas.Action{}, schemas.NewTaskError(schemas.ReasonUnsupportedInstruction,
			"protocol.decode", fmt.Errorf("no decoder for provider %q", raw.Provider))
	}
	return d.Decode(raw, a.tr)
}

// -- shared arg extraction --

func unsupported(provider, name, detail string) error {
	return schemas.NewTaskError(schemas.ReasonUnsupportedInstruction, "protocol."+provider,
		fmt.Errorf("%s: %s", name, detail))
}

// floatArg pulls a numeric field, accepting the types JSON decoding
// actually produces. Absence or a non-numeric value is an error.
func floatArg(args map[string]any, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// pairArg pulls a two-element numeric array field such as Claude's
// "coordinate": [x, y].
func pairArg(args map[string]any, key string) (x, y float64, ok bool) {
	v, exists := args[key]
	if !exists {
		return 0, 0, false
	}
	arr, isArr := v.([]any)
	if !isArr || len(arr) != 2 {
		return 0, 0, false
	}
	xs, xok := numeric(arr[0])
	ys, yok := numeric(arr[1])
	if !xok || !yok {
		return 0, 0, false
	}
	return xs, ys, true
}

// scrollDelta maps a direction word onto wheel deltas. Positive Y
// scrolls the page content up (wheel down), matching CDP semantics.
func scrollDelta(direction string, magX, magY float64) (dx, dy float64, err error) {
	switch direction {
	case "down":
		return 0, magY, nil
	case "up":
		return 0, -magY, nil
	case "right":
		return magX, 0, nil
	case "left":
		return -magX, 0, nil
	default:
		return 0, 0, fmt.Errorf("unknown scroll direction %q", direction)
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

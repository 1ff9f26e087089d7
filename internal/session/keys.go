// File: internal/session/keys.go
package session

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/input"
)

// keyChord is a parsed key combination ready for CDP dispatch.
type keyChord struct {
	key       string
	modifiers input.Modifier
}

// keyAliases maps the names the vision models emit onto DOM key
// values. Both providers are loose here: Gemini sends things like
// "control+a", Claude sends "Return" or "ctrl+shift+tab".
var keyAliases = map[string]string{
	"enter":     "Enter",
	"return":    "Enter",
	"tab":       "Tab",
	"escape":    "Escape",
	"esc":       "Escape",
	"backspace": "Backspace",
	"delete":    "Delete",
	"space":     " ",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"arrowup":   "ArrowUp",
	"arrowdown": "ArrowDown",
	"home":      "Home",
	"end":       "End",
	"pageup":    "PageUp",
	"pagedown":  "PageDown",
	"page_up":   "PageUp",
	"page_down": "PageDown",
}

// parseKeyChord splits a combination like "Control+a" into modifiers
// and the final key. A single token is just a key press.
func parseKeyChord(raw string) (keyChord, error) {
	parts := strings.Split(raw, "+")
	if len(parts) == 0 || raw == "" {
		return keyChord{}, fmt.Errorf("empty key combination")
	}

	var chord keyChord
	for _, part := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "ctrl", "control":
			chord.modifiers |= input.ModifierCtrl
		case "alt", "option":
			chord.modifiers |= input.ModifierAlt
		case "shift":
			chord.modifiers |= input.ModifierShift
		case "meta", "cmd", "command", "super", "win":
			chord.modifiers |= input.ModifierMeta
		default:
			return keyChord{}, fmt.Errorf("unknown modifier %q in %q", part, raw)
		}
	}

	last := strings.TrimSpace(parts[len(parts)-1])
	if last == "" {
		return keyChord{}, fmt.Errorf("missing key in combination %q", raw)
	}
	if alias, ok := keyAliases[strings.ToLower(last)]; ok {
		chord.key = alias
	} else {
		chord.key = last
	}
	return chord, nil
}

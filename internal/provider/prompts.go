// File: internal/provider/prompts.go
package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// taskPrompt renders the opening instruction for a task. The page is
// already loaded and the session already authenticated when the first
// provider turn happens, so the model is told to work entirely inside
// the current page.
func taskPrompt(task *schemas.TaskContext) string {
	var b strings.Builder

	b.WriteString("You are filling out a web form on an expert-network platform. ")
	b.WriteString("The browser is already open, logged in, and showing the target page.\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", task.Goal)

	if len(task.FormData) > 0 {
		b.WriteString("\nUse these values for the form fields:\n")
		// Deterministic order keeps conversations reproducible.
		keys := make([]string, 0, len(task.FormData))
		for k := range task.FormData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, task.FormData[k])
		}
	}

	if len(task.History) > 0 {
		b.WriteString("\nActions already performed on this page (by a previous assistant; continue from where it left off, do not repeat them):\n")
		for _, h := range task.History {
			fmt.Fprintf(&b, "%d. %s", h.Step, describeAction(h.Action))
			if !h.OK {
				b.WriteString(" (failed")
				if h.Note != "" {
					b.WriteString(": " + h.Note)
				}
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(`
Rules:
- Stay on the current page. Never navigate to another URL, open a new tab, use browser history, or perform a web search.
- Do not interact with account settings or anything unrelated to the form.
- Scroll to reveal fields that are out of view before interacting with them.
- After submitting, look for a confirmation message before declaring the task complete.
- When the goal is fully achieved, respond with a short text summary and no further actions.`)

	return b.String()
}

// describeAction renders one history entry's action in plain words.
// Typed credential text reaches here already masked.
func describeAction(a schemas.Action) string {
	switch a.Kind {
	case schemas.ActionClick:
		if a.Selector != "" {
			return "Clicked the cookie-consent button"
		}
		return fmt.Sprintf("Clicked at (%.0f, %.0f)", a.Pos.X, a.Pos.Y)
	case schemas.ActionType:
		return fmt.Sprintf("Typed %q at (%.0f, %.0f)", a.Text, a.Pos.X, a.Pos.Y)
	case schemas.ActionScroll:
		return fmt.Sprintf("Scrolled by (%.0f, %.0f)", a.DeltaX, a.DeltaY)
	case schemas.ActionKeyPress:
		return fmt.Sprintf("Pressed %s", a.Key)
	case schemas.ActionDrag:
		return fmt.Sprintf("Dragged from (%.0f, %.0f) to (%.0f, %.0f)",
			a.Pos.X, a.Pos.Y, a.To.X, a.To.Y)
	case schemas.ActionWait:
		return fmt.Sprintf("Waited %dms", a.WaitMillis)
	case schemas.ActionScreenshot:
		return "Took a screenshot"
	default:
		return string(a.Kind)
	}
}

// resultNote renders the outcome of the previous instruction for the
// provider's next turn. The text the engine passes in is already
// sanitized.
func resultNote(obs schemas.Observation) string {
	if obs.LastActionOK {
		if obs.Note != "" {
			return "Action executed. " + obs.Note
		}
		return "Action executed."
	}
	if obs.Note != "" {
		return "Action was not executed: " + obs.Note + " Choose a different action."
	}
	return "Action was not executed. Choose a different action."
}

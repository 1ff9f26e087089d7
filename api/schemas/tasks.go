package schemas

import "time"

// -- Task Schemas --

// Credentials carries the secrets needed to authenticate against one
// platform. Raw values never appear in logs or reports; the sanitizer
// masks them wherever they would surface.
type Credentials struct {
	LoginURL     string `json:"login_url"`
	DashboardURL string `json:"dashboard_url"`
	Username     string `json:"username"`
	Password     string `json:"password"`

	// OAuth marks platforms authenticated out-of-band (persistent
	// browser profile holding an SSO session). When set, Username and
	// Password are empty and the login form flow is skipped.
	OAuth bool `json:"oauth"`
}

// Secrets returns the credential values that must be masked in any
// text leaving the engine. Empty values are omitted.
func (c Credentials) Secrets() []string {
	var out []string
	if c.Password != "" {
		out = append(out, c.Password)
	}
	if c.Username != "" {
		out = append(out, c.Username)
	}
	return out
}

// HistoryEntry records one executed step of the perceive-act loop.
// Typed credential text is masked before the entry is stored.
type HistoryEntry struct {
	Step          int       `json:"step"`
	Provider      string    `json:"provider"`
	Action        Action    `json:"action"`
	OK            bool      `json:"ok"`
	Note          string    `json:"note,omitempty"`
	ScreenshotRef string    `json:"screenshot_ref,omitempty"`
	At            time.Time `json:"at"`
}

// TaskContext is the mutable state of one automation task. The engine
// owns it for the task's lifetime; providers receive it read-only.
type TaskContext struct {
	TaskID    string            `json:"task_id"`
	Platform  string            `json:"platform"`
	Goal      string            `json:"goal"`
	TargetURL string            `json:"target_url"`
	FormData  map[string]string `json:"form_data,omitempty"`

	StepBudget   int            `json:"step_budget"`
	ElapsedSteps int            `json:"elapsed_steps"`
	History      []HistoryEntry `json:"history"`
}

// StepsRemaining reports how many loop steps the task may still spend.
func (t *TaskContext) StepsRemaining() int {
	if r := t.StepBudget - t.ElapsedSteps; r > 0 {
		return r
	}
	return 0
}

// TaskStatus is the terminal status of a task.
type TaskStatus string

const (
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// TaskResult is the report emitted after a task reaches a terminal
// state, successful or not. It is what the report writer serializes.
type TaskResult struct {
	TaskID       string         `json:"task_id"`
	Platform     string         `json:"platform"`
	Status       TaskStatus     `json:"status"`
	Reason       ReasonCode     `json:"reason,omitempty"`
	Detail       string         `json:"detail,omitempty"`
	ProjectID    string         `json:"project_id,omitempty"`
	ProviderUsed string         `json:"provider_used,omitempty"`
	StepsUsed    int            `json:"steps_used"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	History      []HistoryEntry `json:"history,omitempty"`
	Screenshots  []string       `json:"screenshots,omitempty"`
}

// Observation is what the engine hands a provider each turn: the
// current screenshot plus the outcome of the previously returned
// instruction, so the provider can fold it into its conversation.
type Observation struct {
	Screenshot []byte
	URL        string

	// LastActionOK reports whether the provider's previous instruction
	// executed cleanly. Meaningless on the first turn.
	LastActionOK bool

	// Note carries a short, already sanitized explanation when the
	// previous instruction was rejected or failed.
	Note string
}

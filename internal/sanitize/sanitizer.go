// File: internal/sanitize/sanitizer.go
package sanitize

import (
	"sort"
	"strings"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// DefaultMask is the token substituted for credential material.
const DefaultMask = "***REDACTED***"

// Sanitizer masks registered secret values in outbound text. Matching
// is exact-substring and case-sensitive; a secret that appears with
// different casing is a different string and is left alone.
//
// A Sanitizer is immutable after construction and safe for concurrent
// use.
type Sanitizer struct {
	secrets []string
	mask    string
}

// New builds a Sanitizer masking the given secret values. Empty
// secrets are dropped. Longer secrets are applied first so that a
// secret containing another secret is masked whole rather than
// fragmented.
func New(mask string, secrets ...string) *Sanitizer {
	if mask == "" {
		mask = DefaultMask
	}
	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			kept = append(kept, s)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return len(kept[i]) > len(kept[j]) })
	return &Sanitizer{secrets: kept, mask: mask}
}

// ForCredentials builds a Sanitizer from a credential set using the
// default mask token.
func ForCredentials(creds schemas.Credentials) *Sanitizer {
	return New(DefaultMask, creds.Secrets()...)
}

// Mask returns text with every occurrence of every registered secret
// replaced by the mask token. With no secrets registered it returns
// its input unchanged.
func (s *Sanitizer) Mask(text string) string {
	if len(s.secrets) == 0 || text == "" {
		return text
	}
	for _, secret := range s.secrets {
		text = strings.ReplaceAll(text, secret, s.mask)
	}
	return text
}

// Contains reports whether text holds any registered secret verbatim.
func (s *Sanitizer) Contains(text string) bool {
	for _, secret := range s.secrets {
		if strings.Contains(text, secret) {
			return true
		}
	}
	return false
}

// MaskAction returns a copy of action safe for history and reports.
// Sensitive typed text is replaced entirely; non-sensitive text still
// gets substring masking in case a secret leaked into it.
func (s *Sanitizer) MaskAction(action schemas.Action) schemas.Action {
	if action.Sensitive && action.Text != "" {
		action.Text = s.mask
		return action
	}
	action.Text = s.Mask(action.Text)
	return action
}

// MaskHistory returns a masked copy of entries. The input is not
// modified.
func (s *Sanitizer) MaskHistory(entries []schemas.HistoryEntry) []schemas.HistoryEntry {
	if len(entries) == 0 {
		return entries
	}
	out := make([]schemas.HistoryEntry, len(entries))
	for i, e := range entries {
		e.Action = s.MaskAction(e.Action)
		e.Note = s.Mask(e.Note)
		out[i] = e
	}
	return out
}

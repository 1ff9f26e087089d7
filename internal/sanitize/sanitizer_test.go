package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

func TestMaskReplacesAllOccurrences(t *testing.T) {
	s := New("", "s3cr3t-pass")

	in := `typed "s3cr3t-pass" into #password, retry with s3cr3t-pass`
	out := s.Mask(in)

	assert.NotContains(t, out, "s3cr3t-pass")
	assert.Equal(t, `typed "***REDACTED***" into #password, retry with ***REDACTED***`, out)
}

func TestMaskIsCaseSensitive(t *testing.T) {
	s := New("", "Hunter2")

	assert.Equal(t, "password is hunter2", s.Mask("password is hunter2"))
	assert.Equal(t, "password is ***REDACTED***", s.Mask("password is Hunter2"))
}

func TestMaskIdentityWithoutSecrets(t *testing.T) {
	s := New("")
	in := "nothing sensitive here"
	assert.Equal(t, in, s.Mask(in))

	s = New("", "", "")
	assert.Equal(t, in, s.Mask(in))
}

func TestMaskLongestSecretFirst(t *testing.T) {
	// Username embedded in the password must not shred the password
	// into a half-masked remainder.
	s := New("", "bob", "bob-super-pass")

	out := s.Mask("login bob with bob-super-pass")
	assert.Equal(t, "login ***REDACTED*** with ***REDACTED***", out)
}

func TestContains(t *testing.T) {
	s := ForCredentials(schemas.Credentials{Username: "expert@example.com", Password: "hunter2"})

	assert.True(t, s.Contains("sending hunter2 now"))
	assert.True(t, s.Contains("as expert@example.com"))
	assert.False(t, s.Contains("as EXPERT@example.com"))
	assert.False(t, s.Contains("no secrets"))
}

func TestMaskAction(t *testing.T) {
	s := New("", "hunter2")

	t.Run("sensitive text fully replaced", func(t *testing.T) {
		a := schemas.Action{Kind: schemas.ActionType, Text: "hunter2", Sensitive: true}
		masked := s.MaskAction(a)
		require.Equal(t, "***REDACTED***", masked.Text)
	})

	t.Run("leak in ordinary text masked", func(t *testing.T) {
		a := schemas.Action{Kind: schemas.ActionType, Text: "note: hunter2 retry"}
		masked := s.MaskAction(a)
		assert.Equal(t, "note: ***REDACTED*** retry", masked.Text)
	})

	t.Run("input untouched", func(t *testing.T) {
		a := schemas.Action{Kind: schemas.ActionType, Text: "hunter2", Sensitive: true}
		_ = s.MaskAction(a)
		assert.Equal(t, "hunter2", a.Text)
	})
}

func TestMaskHistoryCopies(t *testing.T) {
	s := New("", "hunter2")
	entries := []schemas.HistoryEntry{
		{Step: 1, Action: schemas.Action{Kind: schemas.ActionType, Text: "hunter2", Sensitive: true}},
		{Step: 2, Note: "field rejected hunter2"},
	}

	masked := s.MaskHistory(entries)
	require.Len(t, masked, 2)
	assert.Equal(t, "***REDACTED***", masked[0].Action.Text)
	assert.Equal(t, "field rejected ***REDACTED***", masked[1].Note)

	// originals untouched
	assert.Equal(t, "hunter2", entries[0].Action.Text)
	assert.Equal(t, "field rejected hunter2", entries[1].Note)
}

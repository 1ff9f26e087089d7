// File: cmd/cmd_test.go
package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/platform"
)

func TestSubcommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "batch")
}

func TestNewSanitizerMasksConfiguredSecrets(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("platforms.glg.login_url", "https://my.glgresearch.com/login")
	v.Set("platforms.glg.username", "analyst@example.com")
	v.Set("platforms.glg.password", "hunter2")

	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)

	s := newSanitizer(cfg)
	masked := s.Mask("typed hunter2 as analyst@example.com")
	assert.NotContains(t, masked, "hunter2")
	assert.NotContains(t, masked, "analyst@example.com")
}

func TestResolveCredentialsFromEnvironment(t *testing.T) {
	t.Setenv("FORMPILOT_GLG_USERNAME", "env-user@example.com")
	t.Setenv("FORMPILOT_GLG_PASSWORD", "env-pass")

	profile, err := platform.Resolve("glg", config.PlatformConfig{})
	require.NoError(t, err)

	creds, err := resolveCredentials(profile, config.PlatformConfig{})
	require.NoError(t, err)
	assert.Equal(t, "env-user@example.com", creds.Username)
	assert.Equal(t, "env-pass", creds.Password)
	assert.Equal(t, profile.LoginURL, creds.LoginURL)
}

func TestResolveCredentialsMissingIsError(t *testing.T) {
	profile, err := platform.Resolve("guidepoint", config.PlatformConfig{})
	require.NoError(t, err)

	_, err = resolveCredentials(profile, config.PlatformConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORMPILOT_GUIDEPOINT_")
}

func TestResolveCredentialsOAuthNeedsNone(t *testing.T) {
	profile, err := platform.Resolve("office_hours", config.PlatformConfig{})
	require.NoError(t, err)

	creds, err := resolveCredentials(profile, config.PlatformConfig{})
	require.NoError(t, err)
	assert.True(t, creds.OAuth)
	assert.Empty(t, creds.Username)
}

// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "formpilot", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 1280, cfg.Browser().ViewportWidth)
	assert.Equal(t, 800, cfg.Browser().ViewportHeight)
	assert.Equal(t, 25, cfg.Engine().StepBudget)
	assert.Equal(t, float64(24), cfg.Engine().CoordinateTolerancePx)
	assert.Equal(t, 3, cfg.Failover().MaxAttemptsPerProvider)
	assert.Equal(t, 2*time.Second, cfg.Failover().InitialBackoff)
	assert.Equal(t, "gemini", cfg.Providers().Primary.Kind)
	assert.Equal(t, "anthropic", cfg.Providers().Fallback.Kind)
	assert.Equal(t, "***REDACTED***", cfg.Sanitizer().MaskToken)
}

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("engine.step_budget", 40)
	v.Set("providers.primary.model", "gemini-custom")
	v.Set("platforms.glg.login_url", "https://login.glgresearch.com")
	v.Set("platforms.glg.dashboard_marker", "My Projects")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Engine().StepBudget)
	assert.Equal(t, "gemini-custom", cfg.Providers().Primary.Model)

	p, ok := cfg.Platform("GLG")
	require.True(t, ok)
	assert.Equal(t, "https://login.glgresearch.com", p.LoginURL)
}

func TestPlatformCredentialsFromEnv(t *testing.T) {
	t.Setenv("FORMPILOT_GLG_USERNAME", "expert@example.com")
	t.Setenv("FORMPILOT_GLG_PASSWORD", "hunter2")

	v := viper.New()
	SetDefaults(v)
	v.Set("platforms.glg.login_url", "https://login.glgresearch.com")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	p, ok := cfg.Platform("glg")
	require.True(t, ok)
	assert.Equal(t, "expert@example.com", p.Username)
	assert.Equal(t, "hunter2", p.Password)
}

func TestProviderAPIKeyFromEnv(t *testing.T) {
	t.Setenv("FORMPILOT_GEMINI_API_KEY", "g-key")
	t.Setenv("FORMPILOT_ANTHROPIC_API_KEY", "a-key")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "g-key", cfg.Providers().Primary.APIKey)
	assert.Equal(t, "a-key", cfg.Providers().Fallback.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		set  func(v *viper.Viper)
		want string
	}{
		{"zero step budget", func(v *viper.Viper) { v.Set("engine.step_budget", 0) }, "step_budget"},
		{"zero concurrency", func(v *viper.Viper) { v.Set("engine.concurrency", 0) }, "concurrency"},
		{"bad provider kind", func(v *viper.Viper) { v.Set("providers.primary.kind", "openai") }, "gemini or anthropic"},
		{"missing model", func(v *viper.Viper) { v.Set("providers.fallback.model", "") }, "model is required"},
		{"zero viewport", func(v *viper.Viper) { v.Set("browser.viewport_width", 0) }, "viewport"},
		{"zero failover attempts", func(v *viper.Viper) { v.Set("failover.max_attempts_per_provider", 0) }, "max_attempts_per_provider"},
		{"oauth platform with username", func(v *viper.Viper) {
			v.Set("platforms.oh.oauth", true)
			v.Set("platforms.oh.username", "someone@example.com")
		}, "no username"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			tc.set(v)

			_, err := NewConfigFromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()

	cfg.SetBrowserHeadless(false)
	cfg.SetBrowserDebug(true)
	cfg.SetEngineStepBudget(50)
	cfg.SetEngineConcurrency(4)
	cfg.SetReportOutputDir("/tmp/out")

	assert.False(t, cfg.Browser().Headless)
	assert.True(t, cfg.Browser().Debug)
	assert.Equal(t, 50, cfg.Engine().StepBudget)
	assert.Equal(t, 4, cfg.Engine().Concurrency)
	assert.Equal(t, "/tmp/out", cfg.Report().OutputDir)
}

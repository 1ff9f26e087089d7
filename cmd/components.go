// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/consent"
	"github.com/xkilldash9x/formpilot/internal/engine"
	"github.com/xkilldash9x/formpilot/internal/failover"
	"github.com/xkilldash9x/formpilot/internal/platform"
	"github.com/xkilldash9x/formpilot/internal/protocol"
	"github.com/xkilldash9x/formpilot/internal/provider"
	"github.com/xkilldash9x/formpilot/internal/report"
	"github.com/xkilldash9x/formpilot/internal/sanitize"
	"github.com/xkilldash9x/formpilot/internal/session"
	"github.com/xkilldash9x/formpilot/internal/translate"
)

// taskComponents bundles everything one task needs. Provider bindings
// keep per-task conversation history, so concurrent tasks each get
// their own set.
type taskComponents struct {
	profile platform.Profile
	creds   schemas.Credentials
	engine  *engine.Engine
	writer  *report.Writer
}

func buildComponents(ctx context.Context, cfg *config.Config, platformName string, logger *zap.Logger) (*taskComponents, error) {
	overlay, _ := cfg.Platform(platformName)
	profile, err := platform.Resolve(platformName, overlay)
	if err != nil {
		return nil, err
	}

	creds, err := resolveCredentials(profile, overlay)
	if err != nil {
		return nil, err
	}

	vp := schemas.Viewport{
		Width:  cfg.Browser().ViewportWidth,
		Height: cfg.Browser().ViewportHeight,
	}

	primary, err := provider.New(ctx, cfg.Providers().Primary, vp, logger)
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}
	clients := []schemas.ProviderClient{primary}
	if fb := cfg.Providers().Fallback; fb.APIKey != "" {
		fallback, err := provider.New(ctx, fb, vp, logger)
		if err != nil {
			return nil, fmt.Errorf("fallback provider: %w", err)
		}
		clients = append(clients, fallback)
	} else {
		logger.Warn("No fallback provider configured; running without failover.")
	}

	translator := translate.New(vp, cfg.Engine().CoordinateTolerancePx)
	sanitizer := taskSanitizer(cfg, creds)

	shotDir, err := screenshotDir(cfg)
	if err != nil {
		return nil, err
	}

	eng := engine.New(engine.Options{
		Engine:        cfg.Engine(),
		Profile:       profile,
		Providers:     failover.New(cfg.Failover(), logger, clients...),
		Adapter:       protocol.NewAdapter(translator, protocol.GeminiDecoder{}, protocol.AnthropicDecoder{}),
		Consent:       consent.New(logger),
		Sanitizer:     sanitizer,
		Logger:        logger,
		ScreenshotDir: shotDir,
	})

	writer, err := report.New(cfg.Report(), logger)
	if err != nil {
		return nil, err
	}

	return &taskComponents{
		profile: profile,
		creds:   creds,
		engine:  eng,
		writer:  writer,
	}, nil
}

// newSession launches a browser configured for this platform.
func (tc *taskComponents) newSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.BrowserSession, error) {
	return session.New(ctx, cfg.Browser(), tc.profile.SessionConfig(), logger)
}

// resolveCredentials fills in env-sourced credentials for platforms
// that have no config block, and rejects form platforms with no
// credentials at all.
func resolveCredentials(profile platform.Profile, overlay config.PlatformConfig) (schemas.Credentials, error) {
	creds := profile.Credentials(overlay)
	if profile.OAuth {
		return creds, nil
	}

	prefix := "FORMPILOT_" + strings.ToUpper(profile.Name) + "_"
	if creds.Username == "" {
		creds.Username = os.Getenv(prefix + "USERNAME")
	}
	if creds.Password == "" {
		creds.Password = os.Getenv(prefix + "PASSWORD")
	}
	if creds.Username == "" || creds.Password == "" {
		return schemas.Credentials{}, fmt.Errorf(
			"no credentials for platform %q: set %sUSERNAME and %sPASSWORD or a platforms.%s config block",
			profile.Name, prefix, prefix, profile.Name)
	}
	return creds, nil
}

// taskSanitizer masks every configured credential plus this task's,
// which may have come from the environment only.
func taskSanitizer(cfg *config.Config, creds schemas.Credentials) *sanitize.Sanitizer {
	mask := cfg.Sanitizer().MaskToken
	if mask == "" {
		mask = sanitize.DefaultMask
	}
	secrets := creds.Secrets()
	for _, p := range cfg.Platforms() {
		if p.Password != "" {
			secrets = append(secrets, p.Password)
		}
		if p.Username != "" {
			secrets = append(secrets, p.Username)
		}
	}
	return sanitize.New(mask, secrets...)
}

// screenshotDir resolves and creates the debug screenshot directory,
// or returns empty when debug capture is off.
func screenshotDir(cfg *config.Config) (string, error) {
	if !cfg.Browser().Debug {
		return "", nil
	}
	dir := cfg.Engine().ScreenshotDir
	if dir == "" {
		dir = filepath.Join(cfg.Report().OutputDir, "screenshots")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory %s: %w", dir, err)
	}
	return dir, nil
}

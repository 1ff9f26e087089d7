// File: internal/platform/registry.go

// Package platform holds the profiles of the expert-network platforms
// the engine knows how to drive. A profile carries everything
// platform-specific: URLs, login selectors, the post-login marker,
// invitation selectors for batch mode, and extra outcome indicators.
// Config values overlay the built-in defaults.
package platform

import (
	"fmt"
	"sort"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// Profile is one platform's resolved automation profile.
type Profile struct {
	Name         string
	LoginURL     string
	DashboardURL string
	OAuth        bool

	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string

	DashboardMarker    string
	InvitationSelector string

	// Platform-specific outcome indicators, checked before the
	// generic sets.
	SuccessIndicators []string
	FailureIndicators []string
	BlockedIndicators []string
}

// builtins are the platforms shipped with the tool. Config can add new
// platforms or override any field of these.
var builtins = map[string]Profile{
	"glg": {
		Name:               "glg",
		LoginURL:           "https://my.glgresearch.com/login",
		DashboardURL:       "https://my.glgresearch.com/dashboard",
		DashboardMarker:    "My Projects",
		InvitationSelector: `a[href*="cpid="]`,
		SuccessIndicators:  []string{"your availability has been submitted"},
		BlockedIndicators:  []string{"this consultation has been closed"},
	},
	"guidepoint": {
		Name:               "guidepoint",
		LoginURL:           "https://advisors.guidepoint.com/login",
		DashboardURL:       "https://advisors.guidepoint.com/dashboard",
		DashboardMarker:    "Opportunities",
		InvitationSelector: `a[href*="/opportunity/"]`,
	},
	"coleman": {
		Name:               "coleman",
		LoginURL:           "https://experts.colemanrg.com/login",
		DashboardURL:       "https://experts.colemanrg.com/projects",
		DashboardMarker:    "Available Projects",
		InvitationSelector: `a[href*="/projects/"]`,
	},
	"office_hours": {
		Name:               "office_hours",
		DashboardURL:       "https://app.officehours.com/dashboard",
		DashboardMarker:    "Requests",
		InvitationSelector: `a[href*="/p/"]`,
		// Office Hours signs in through Google SSO held in the
		// persistent browser profile.
		OAuth: true,
	},
}

// Names lists the built-in platform identifiers, sorted.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve merges the config overlay for name onto its built-in
// profile. A name with no built-in profile is accepted only when the
// config supplies its URLs; otherwise it is an error.
func Resolve(name string, overlay config.PlatformConfig) (Profile, error) {
	profile, known := builtins[name]
	if !known {
		if overlay.LoginURL == "" && overlay.DashboardURL == "" {
			return Profile{}, fmt.Errorf("unknown platform %q (built-ins: %v)", name, Names())
		}
		profile = Profile{Name: name}
	}

	if overlay.LoginURL != "" {
		profile.LoginURL = overlay.LoginURL
	}
	if overlay.DashboardURL != "" {
		profile.DashboardURL = overlay.DashboardURL
	}
	if overlay.OAuth {
		profile.OAuth = true
	}
	if overlay.UsernameSelector != "" {
		profile.UsernameSelector = overlay.UsernameSelector
	}
	if overlay.PasswordSelector != "" {
		profile.PasswordSelector = overlay.PasswordSelector
	}
	if overlay.SubmitSelector != "" {
		profile.SubmitSelector = overlay.SubmitSelector
	}
	if overlay.DashboardMarker != "" {
		profile.DashboardMarker = overlay.DashboardMarker
	}
	if overlay.InvitationSelector != "" {
		profile.InvitationSelector = overlay.InvitationSelector
	}
	return profile, nil
}

// Credentials builds the credential set for this profile from the
// config overlay. OAuth platforms carry no username or password.
func (p Profile) Credentials(overlay config.PlatformConfig) schemas.Credentials {
	creds := schemas.Credentials{
		LoginURL:     p.LoginURL,
		DashboardURL: p.DashboardURL,
		OAuth:        p.OAuth,
	}
	if !p.OAuth {
		creds.Username = overlay.Username
		creds.Password = overlay.Password
	}
	return creds
}

// SessionConfig is the platform-dependent slice of the browser session
// configuration.
func (p Profile) SessionConfig() config.PlatformConfig {
	return config.PlatformConfig{
		LoginURL:           p.LoginURL,
		DashboardURL:       p.DashboardURL,
		OAuth:              p.OAuth,
		UsernameSelector:   p.UsernameSelector,
		PasswordSelector:   p.PasswordSelector,
		SubmitSelector:     p.SubmitSelector,
		DashboardMarker:    p.DashboardMarker,
		InvitationSelector: p.InvitationSelector,
	}
}

// File: internal/engine/urlid.go
package engine

import (
	"net/url"
	"regexp"
)

// projectIDParams are query parameter names carrying a project or
// opportunity identifier, in priority order. cpid is the GLG style.
var projectIDParams = []string{"cpid", "project_id", "projectId", "id", "pid"}

var projectIDPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/projects?/(\d+)`),
	regexp.MustCompile(`/p/(\d+)`),
	regexp.MustCompile(`/accept/(\d+)`),
	regexp.MustCompile(`/opportunity/(\d+)`),
}

// ExtractProjectID pulls a project or opportunity identifier out of a
// URL using the parameter and path shapes the supported platforms use.
// Empty string means no identifier was present, which is not an error.
func ExtractProjectID(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	query := parsed.Query()
	for _, param := range projectIDParams {
		if v := query.Get(param); v != "" {
			return v
		}
	}
	for _, pattern := range projectIDPathPatterns {
		if m := pattern.FindStringSubmatch(parsed.Path); m != nil {
			return m[1]
		}
	}
	return ""
}

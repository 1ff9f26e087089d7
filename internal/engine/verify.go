// File: internal/engine/verify.go
package engine

import "strings"

// Generic outcome indicators checked against page text. Platform
// profiles may prepend their own; platform indicators win ties because
// they are checked first.
var successIndicators = []string{
	"application submitted",
	"successfully submitted",
	"submission confirmed",
	"successfully completed",
	"you're all set",
	"thank you for applying",
	"we'll be in touch",
	"application received",
	"thank you for your submission",
	"submission successful",
	"form submitted",
	"your request has been submitted",
	"we have received your",
	"your application is complete",
}

var failureIndicators = []string{
	"unable to submit",
	"submission failed",
	"error occurred",
	"please try again",
	"something went wrong",
	"form could not be submitted",
	"validation error",
	"invalid input",
}

var blockedIndicators = []string{
	"already declined",
	"no longer available",
	"opportunity expired",
	"invitation expired",
	"project closed",
	"application closed",
	"no longer accepting",
	"deadline passed",
	"position filled",
	"opportunity unavailable",
	"verify you are human",
	"access denied",
}

// matchIndicator returns the first indicator found in text, scanning
// extra (platform-specific) indicators before the generic set.
// Matching is case insensitive.
func matchIndicator(text string, extra, generic []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, set := range [][]string{extra, generic} {
		for _, ind := range set {
			if strings.Contains(lower, strings.ToLower(ind)) {
				return ind, true
			}
		}
	}
	return "", false
}

// File: internal/consent/detector.go

// Package consent detects cookie-consent interstitials in a DOM
// snapshot and synthesizes the click that dismisses them, so no
// provider turn is ever spent on a banner. Detection is pure DOM
// inspection; once the banner is gone the detector finds nothing, so
// running it every loop iteration is harmless.
package consent

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// vendorAcceptIDs are accept-button element IDs planted by the major
// consent-management platforms. An ID hit is the strongest signal and
// wins over any label match.
var vendorAcceptIDs = []string{
	"onetrust-accept-btn-handler",
	"CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
	"CybotCookiebotDialogBodyButtonAccept",
	"truste-consent-button",
	"didomi-notice-agree-button",
	"axeptio_btn_acceptAll",
}

// containerTokens mark an element as a consent banner when found in
// its id or class attributes.
var containerTokens = []string{
	"onetrust-banner-sdk",
	"onetrust-consent-sdk",
	"cybotcookiebotdialog",
	"cookie-banner",
	"cookie-consent",
	"cookieconsent",
	"consent-banner",
	"consent-manager",
	"cookie-notice",
	"gdpr-banner",
	"cc-banner",
}

// acceptLabels is the label priority order. Earlier labels are
// preferred: "Accept All" beats a bare "OK" elsewhere in the dialog.
var acceptLabels = []string{
	"accept all",
	"allow all cookies",
	"accept all cookies",
	"accept cookies",
	"accept",
	"i accept",
	"i agree",
	"agree",
	"got it",
	"ok",
	"confirm",
}

// Detector finds consent dialogs and the action that clears them.
type Detector struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Detector {
	return &Detector{logger: logger.Named("consent")}
}

// Detect inspects dom and, when a consent dialog with a recognizable
// accept control is present, returns the selector click that dismisses
// it. The second return is false when no dialog is found, including on
// every call after a successful dismissal.
func (d *Detector) Detect(dom string) (schemas.Action, bool) {
	root, err := html.Parse(strings.NewReader(dom))
	if err != nil {
		d.logger.Debug("DOM snapshot did not parse, skipping consent check.", zap.Error(err))
		return schemas.Action{}, false
	}

	// Vendor button IDs identify both the banner and the button in
	// one hit.
	if id := findVendorAcceptID(root); id != "" {
		d.logger.Info("Consent dialog detected by vendor button.", zap.String("button_id", id))
		return selectorClick(fmt.Sprintf(`//*[@id=%q]`, id)), true
	}

	container := findContainer(root)
	if container == nil {
		return schemas.Action{}, false
	}

	btn, label := findAcceptButton(container)
	if btn == nil {
		d.logger.Debug("Consent container present but no accept control matched.")
		return schemas.Action{}, false
	}

	d.logger.Info("Consent dialog detected.", zap.String("label", label))
	return selectorClick(buttonXPath(btn)), true
}

func selectorClick(xpath string) schemas.Action {
	return schemas.Action{Kind: schemas.ActionClick, Selector: xpath}
}

// buttonXPath builds the most specific locator available for n: its
// id, its value attribute for inputs, or its normalized text content.
func buttonXPath(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		return fmt.Sprintf(`//*[@id=%q]`, id)
	}
	if n.Data == "input" {
		return fmt.Sprintf(`//input[@value=%q]`, attr(n, "value"))
	}
	return fmt.Sprintf(`//%s[normalize-space(.)=%q]`, n.Data, strings.TrimSpace(nodeText(n)))
}

func findVendorAcceptID(root *html.Node) string {
	var found string
	walk(root, func(n *html.Node) bool {
		id := attr(n, "id")
		if id == "" {
			return true
		}
		for _, want := range vendorAcceptIDs {
			if id == want {
				found = id
				return false
			}
		}
		return true
	})
	return found
}

func findContainer(root *html.Node) *html.Node {
	var container *html.Node
	walk(root, func(n *html.Node) bool {
		marker := strings.ToLower(attr(n, "id") + " " + attr(n, "class") + " " + attr(n, "aria-label"))
		if marker == "  " {
			return true
		}
		for _, token := range containerTokens {
			if strings.Contains(marker, token) {
				container = n
				return false
			}
		}
		return true
	})
	return container
}

// findAcceptButton scans the container subtree once per label so that
// the label priority order, not document order, decides ties.
func findAcceptButton(container *html.Node) (*html.Node, string) {
	var clickables []*html.Node
	walk(container, func(n *html.Node) bool {
		if isClickable(n) {
			clickables = append(clickables, n)
		}
		return true
	})

	for _, label := range acceptLabels {
		for _, n := range clickables {
			if strings.ToLower(strings.TrimSpace(nodeText(n))) == label {
				return n, label
			}
		}
	}
	return nil, ""
}

func isClickable(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "button", "a":
		return true
	case "input":
		t := strings.ToLower(attr(n, "type"))
		return t == "button" || t == "submit"
	default:
		return strings.Contains(strings.ToLower(attr(n, "role")), "button")
	}
}

// walk visits nodes depth-first. Returning false from fn stops the
// walk.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, name string) string {
	if n.Type != html.ElementNode {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "input" {
		return attr(n, "value")
	}
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

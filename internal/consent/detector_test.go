package consent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

func newDetector() *Detector {
	return New(zap.NewNop())
}

func TestDetectOneTrustBanner(t *testing.T) {
	dom := `<html><body>
		<div id="onetrust-banner-sdk">
			<p>We use cookies.</p>
			<button id="onetrust-accept-btn-handler">Accept All</button>
			<button id="onetrust-reject-all-handler">Reject All</button>
		</div>
		<form><input name="q"></form>
	</body></html>`

	act, found := newDetector().Detect(dom)
	require.True(t, found)
	assert.Equal(t, schemas.ActionClick, act.Kind)
	assert.Equal(t, `//*[@id="onetrust-accept-btn-handler"]`, act.Selector)
	assert.Zero(t, act.Pos)
}

func TestDetectCookiebotByVendorID(t *testing.T) {
	dom := `<html><body>
		<div id="CybotCookiebotDialog">
			<a id="CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll">Allow all</a>
		</div>
	</body></html>`

	act, found := newDetector().Detect(dom)
	require.True(t, found)
	assert.Contains(t, act.Selector, "CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll")
}

func TestDetectGenericBannerByLabelPriority(t *testing.T) {
	// "OK" appears before "Accept All" in document order; the label
	// priority must still pick "Accept All".
	dom := `<html><body>
		<div class="cookie-consent modal">
			<button>OK</button>
			<button class="btn-primary">Accept All</button>
		</div>
	</body></html>`

	act, found := newDetector().Detect(dom)
	require.True(t, found)
	assert.Equal(t, `//button[normalize-space(.)="Accept All"]`, act.Selector)
}

func TestDetectAriaLabelledBanner(t *testing.T) {
	dom := `<html><body>
		<section aria-label="gdpr-banner notice">
			<span role="button">I Agree</span>
		</section>
	</body></html>`

	act, found := newDetector().Detect(dom)
	require.True(t, found)
	assert.Equal(t, `//span[normalize-space(.)="I Agree"]`, act.Selector)
}

func TestNoBannerNoAction(t *testing.T) {
	dom := `<html><body>
		<h1>Project Invitation</h1>
		<form>
			<label>Rate</label><input name="rate">
			<button type="submit">Submit</button>
		</form>
	</body></html>`

	_, found := newDetector().Detect(dom)
	assert.False(t, found)
}

func TestOrdinaryOKButtonNotMistakenForConsent(t *testing.T) {
	// An accept-looking label outside any consent container must not
	// trigger a dismissal.
	dom := `<html><body>
		<div class="dialog-save"><button>OK</button></div>
	</body></html>`

	_, found := newDetector().Detect(dom)
	assert.False(t, found)
}

func TestIdempotentAfterDismissal(t *testing.T) {
	before := `<html><body>
		<div class="cookie-banner"><button>Accept</button></div>
		<main>form here</main>
	</body></html>`
	after := `<html><body><main>form here</main></body></html>`

	d := newDetector()
	_, found := d.Detect(before)
	require.True(t, found)

	for i := 0; i < 3; i++ {
		_, found = d.Detect(after)
		assert.False(t, found)
	}
}

func TestContainerWithoutAcceptControl(t *testing.T) {
	dom := `<html><body>
		<div class="cookie-banner"><p>We value your privacy.</p>
		<button>Manage preferences</button></div>
	</body></html>`

	_, found := newDetector().Detect(dom)
	assert.False(t, found)
}

func TestMalformedDOMIsNotFatal(t *testing.T) {
	_, found := newDetector().Detect("<div<<>broken")
	assert.False(t, found)
}

func TestInputValueButton(t *testing.T) {
	dom := `<html><body>
		<div id="consent-banner"><input type="submit" value="I Accept"></div>
	</body></html>`

	act, found := newDetector().Detect(dom)
	require.True(t, found)
	assert.Equal(t, `//input[@value="I Accept"]`, act.Selector)
}

package crawl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectorShortBodyNeedsJS(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(512, "")
	assert.True(t, d.NeedsJS([]byte("<html></html>")))
}

func TestDetectorEmptyShellNeedsJS(t *testing.T) {
	t.Parallel()

	shell := "<html><body><div id=app></div>" + strings.Repeat("<!-- pad -->", 100) + "</body></html>"
	d := NewHeuristicDetector(512, "")
	assert.True(t, d.NeedsJS([]byte(shell)))
}

func TestDetectorPopulatedBodyDoesNotNeedJS(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(10, "")
	assert.False(t, d.NeedsJS([]byte(listingHTML)))
}

func TestDetectorCustomSelector(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(0, "div.results")
	assert.True(t, d.NeedsJS([]byte(`<html><body><div class="other"></div></body></html>`)))
	assert.False(t, d.NeedsJS([]byte(`<html><body><div class="results"></div></body></html>`)))
}

package crawl

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// HeuristicDetector decides whether a statically fetched listing page is
// worth parsing or must be rendered with JavaScript.
type HeuristicDetector struct {
	minHTMLBytes int
	selector     string
}

// NewHeuristicDetector constructs a detector. A body shorter than
// minBytes, or one with no node matching selector, needs a render.
func NewHeuristicDetector(minBytes int, selector string) *HeuristicDetector {
	if selector == "" {
		selector = ListingContainerSelector
	}
	return &HeuristicDetector{minHTMLBytes: minBytes, selector: selector}
}

// NeedsJS inspects the body for signals that the server shipped an empty
// shell.
func (d *HeuristicDetector) NeedsJS(body []byte) bool {
	if d == nil {
		return false
	}
	if d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	return doc.Find(d.selector).Length() == 0
}

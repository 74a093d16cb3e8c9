package crawl

import (
	"context"

	"github.com/google/uuid"

	"github.com/marketharvest/carharvest/internal/market"
)

// Renderer opens interactive browser sessions against dynamic pages.
type Renderer interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one browser tab. Implementations must be released via Close
// on every exit path; callers acquire with a deferred Close immediately
// after NewSession succeeds.
type Session interface {
	// Navigate loads the URL and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// ScrollToBottom sends a scroll-to-end input to trigger lazy loads.
	ScrollToBottom(ctx context.Context) error
	// PageHeight reports the document's current scroll height.
	PageHeight(ctx context.Context) (int64, error)
	// Text returns the trimmed text of the first node matching the
	// locator expression, or an error when nothing matches in time.
	Text(ctx context.Context, locator string) (string, error)
	// HTML returns the rendered document markup.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Fetcher retrieves a page body without JavaScript execution. It is the
// cheap probe tried before paying for a headless render.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Detector decides whether a probed body needs a JS render to be usable.
type Detector interface {
	NeedsJS(body []byte) bool
}

// Discoverer obtains the full set of listings for one city page.
type Discoverer interface {
	Discover(ctx context.Context, pageURL string) ([]market.Listing, error)
}

// Extractor pulls the detail record for one listing URL. It never fails:
// fields that cannot be located carry the sentinel value.
type Extractor interface {
	Extract(ctx context.Context, detailURL string) market.DetailRecord
}

// Scheduler fans a city's listings out to the extractor and flushes
// completed rows to the store in batches.
type Scheduler interface {
	Run(ctx context.Context, runID uuid.UUID, city market.City, listings []market.Listing) error
}

// Planner yields the ordered city queue for this run.
type Planner interface {
	Plan(ctx context.Context) ([]market.City, error)
}

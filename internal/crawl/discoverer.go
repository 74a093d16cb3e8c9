package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/market"
)

// DiscoverConfig tunes listing discovery.
type DiscoverConfig struct {
	// SettleInterval is the wait between scroll probes while the page
	// keeps growing.
	SettleInterval time.Duration
	// MaxScrollRounds caps the scroll loop; the height check is a
	// heuristic and some pages never stop growing.
	MaxScrollRounds int
}

// ListingDiscoverer loads a city listing page, defeats its lazy-loaded
// infinite scroll, and parses out the (name, detail URL) pairs.
//
// When a probe fetcher is configured the page is first fetched
// statically; a headless render is only paid for when the detector says
// the static body is unusable.
type ListingDiscoverer struct {
	renderer Renderer
	fetcher  Fetcher
	detector Detector
	cfg      DiscoverConfig
	logger   *zap.Logger
}

// NewListingDiscoverer constructs a discoverer. fetcher and detector are
// optional; without them every discovery renders.
func NewListingDiscoverer(renderer Renderer, fetcher Fetcher, detector Detector, cfg DiscoverConfig, logger *zap.Logger) *ListingDiscoverer {
	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = 2 * time.Second
	}
	if cfg.MaxScrollRounds <= 0 {
		cfg.MaxScrollRounds = 40
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingDiscoverer{
		renderer: renderer,
		fetcher:  fetcher,
		detector: detector,
		cfg:      cfg,
		logger:   logger,
	}
}

// Discover returns every listing on the city page. Failures wrap
// ErrPageLoad so the orchestrator can skip the city.
func (d *ListingDiscoverer) Discover(ctx context.Context, pageURL string) ([]market.Listing, error) {
	if listings, ok := d.probe(ctx, pageURL); ok {
		return listings, nil
	}

	session, err := d.renderer.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open session for %s: %v", ErrPageLoad, pageURL, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			d.logger.Warn("session close failed", zap.String("url", pageURL), zap.Error(cerr))
		}
	}()

	if err := session.Navigate(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("%w: navigate %s: %v", ErrPageLoad, pageURL, err)
	}
	if err := d.scrollUntilSettled(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: settle %s: %v", ErrPageLoad, pageURL, err)
	}

	html, err := session.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", ErrPageLoad, pageURL, err)
	}
	listings, err := ParseListings(html, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrPageLoad, pageURL, err)
	}
	return listings, nil
}

// probe tries the static path; ok reports whether its result should be
// used instead of rendering.
func (d *ListingDiscoverer) probe(ctx context.Context, pageURL string) ([]market.Listing, bool) {
	if d.fetcher == nil {
		return nil, false
	}
	body, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		d.logger.Debug("static probe failed, promoting to render",
			zap.String("url", pageURL), zap.Error(err))
		return nil, false
	}
	if d.detector != nil && d.detector.NeedsJS(body) {
		return nil, false
	}
	listings, err := ParseListings(string(body), pageURL)
	if err != nil || len(listings) == 0 {
		return nil, false
	}
	d.logger.Debug("static probe sufficed",
		zap.String("url", pageURL), zap.Int("listings", len(listings)))
	return listings, true
}

// scrollUntilSettled keeps sending scroll-to-bottom inputs until the
// measured page height shows no growth on two consecutive probes, or the
// round cap is hit.
func (d *ListingDiscoverer) scrollUntilSettled(ctx context.Context, session Session) error {
	last, err := session.PageHeight(ctx)
	if err != nil {
		return fmt.Errorf("initial height: %w", err)
	}
	stable := 0
	for round := 0; round < d.cfg.MaxScrollRounds; round++ {
		if err := session.ScrollToBottom(ctx); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := sleepCtx(ctx, d.cfg.SettleInterval); err != nil {
			return err
		}
		height, err := session.PageHeight(ctx)
		if err != nil {
			return fmt.Errorf("probe height: %w", err)
		}
		if height == last {
			stable++
			if stable >= 2 {
				return nil
			}
			continue
		}
		stable = 0
		last = height
	}
	d.logger.Warn("scroll round cap reached before page settled",
		zap.Int("rounds", d.cfg.MaxScrollRounds), zap.Int64("height", last))
	return nil
}

// ParseListings searches raw markup for listing containers and emits one
// Listing per container that carries both a name and a link. Relative
// links resolve against the page's origin.
func ParseListings(html, pageURL string) ([]market.Listing, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing document: %w", err)
	}

	var listings []market.Listing
	doc.Find(ListingContainerSelector).Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find(listingNameSelector).First().Text())
		href, ok := card.Find(listingLinkSelector).First().Attr("href")
		href = strings.TrimSpace(href)
		if name == "" || !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		listings = append(listings, market.Listing{
			Name:      name,
			DetailURL: base.ResolveReference(ref).String(),
		})
	})
	return listings, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

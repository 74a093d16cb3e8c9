package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/marketharvest/carharvest/internal/market"
)

// fakeSession scripts one browser tab.
type fakeSession struct {
	mu        sync.Mutex
	html      string
	heights   []int64
	heightIdx int
	texts     map[string]string
	navErr    error
	scrollErr error
	htmlErr   error
	navigated []string
	closed    bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	return s.navErr
}

func (s *fakeSession) ScrollToBottom(context.Context) error {
	return s.scrollErr
}

func (s *fakeSession) PageHeight(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.heights) == 0 {
		return 0, nil
	}
	h := s.heights[s.heightIdx]
	if s.heightIdx < len(s.heights)-1 {
		s.heightIdx++
	}
	return h, nil
}

func (s *fakeSession) Text(_ context.Context, locator string) (string, error) {
	if text, ok := s.texts[locator]; ok {
		return text, nil
	}
	return "", errors.New("node not found")
}

func (s *fakeSession) HTML(context.Context) (string, error) {
	return s.html, s.htmlErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeRenderer hands out scripted sessions in order; the last one
// repeats.
type fakeRenderer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	idx      int
	err      error
}

func (r *fakeRenderer) NewSession(context.Context) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if len(r.sessions) == 0 {
		return &fakeSession{}, nil
	}
	s := r.sessions[r.idx]
	if r.idx < len(r.sessions)-1 {
		r.idx++
	}
	return s, nil
}

// fakeExtractor tags each record with its URL so tests can check
// result-to-listing pairing.
type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
	block chan struct{} // optional; closed to release all calls
}

func (e *fakeExtractor) Extract(_ context.Context, detailURL string) market.DetailRecord {
	if e.block != nil {
		<-e.block
	}
	e.mu.Lock()
	e.calls = append(e.calls, detailURL)
	e.mu.Unlock()
	rec := market.NewDetailRecord()
	rec["Price"] = "price:" + detailURL
	return rec
}

// recordingStore captures appended batches and can fail on a chosen
// call.
type recordingStore struct {
	mu      sync.Mutex
	batches [][]market.Row
	failOn  int // 1-based call index to fail on; 0 never fails
	calls   int
}

func (s *recordingStore) Append(_ context.Context, rows []market.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failOn > 0 && s.calls == s.failOn {
		return errors.New("store write failed")
	}
	batch := make([]market.Row, len(rows))
	copy(batch, rows)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingStore) CompletedCities(context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, len(s.batches))
	for i, b := range s.batches {
		sizes[i] = len(b)
	}
	return sizes
}

// fakePlanner, fakeDiscoverer, fakeScheduler script the orchestrator's
// collaborators.
type fakePlanner struct {
	cities []market.City
	err    error
}

func (p *fakePlanner) Plan(context.Context) ([]market.City, error) {
	return p.cities, p.err
}

type fakeDiscoverer struct {
	mu       sync.Mutex
	listings map[string][]market.Listing // by page URL
	failFor  map[string]error
	urls     []string
}

func (d *fakeDiscoverer) Discover(_ context.Context, pageURL string) ([]market.Listing, error) {
	d.mu.Lock()
	d.urls = append(d.urls, pageURL)
	d.mu.Unlock()
	if err, ok := d.failFor[pageURL]; ok {
		return nil, err
	}
	return d.listings[pageURL], nil
}

type fakeScheduler struct {
	mu     sync.Mutex
	runs   []string // city keys in run order
	failOn string
}

func (s *fakeScheduler) Run(_ context.Context, _ uuid.UUID, city market.City, _ []market.Listing) error {
	s.mu.Lock()
	s.runs = append(s.runs, city.Key)
	s.mu.Unlock()
	if s.failOn == city.Key {
		return fmt.Errorf("checkpoint flush for %s: store write failed", city.Key)
	}
	return nil
}

func makeListings(n int) []market.Listing {
	listings := make([]market.Listing, n)
	for i := range listings {
		listings[i] = market.Listing{
			Name:      fmt.Sprintf("Car %03d", i),
			DetailURL: fmt.Sprintf("https://www.carwale.com/used/cars/%03d", i),
		}
	}
	return listings
}

// Package render drives headless Chrome sessions for pages that only
// materialize their content under JavaScript.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketharvest/carharvest/internal/crawl"
)

// ErrRendererDisabled indicates rendering has been disabled via
// configuration.
var ErrRendererDisabled = errors.New("renderer disabled")

// Config controls the headless browser pool.
type Config struct {
	// MaxSessions bounds concurrently open tabs. Zero or negative
	// disables the renderer.
	MaxSessions int
	UserAgent   string
	// NavTimeout bounds a single page navigation.
	NavTimeout time.Duration
	// QueryTimeout bounds a single node-text lookup.
	QueryTimeout time.Duration
	// DomainQPS throttles navigations per target host. Zero means
	// unthrottled.
	DomainQPS float64
}

// ChromedpRenderer owns one warmed browser process and hands out tabs as
// sessions. Tab count is bounded by a semaphore so a wide extraction
// pool cannot fork an unbounded number of renderers.
type ChromedpRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	cfg             Config
	domainLimiters  sync.Map
}

// New launches the browser and verifies it answers before returning.
func New(cfg Config, logger *zap.Logger) (*ChromedpRenderer, error) {
	if cfg.MaxSessions <= 0 {
		return nil, ErrRendererDisabled
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxSessions),
		cfg:             cfg,
	}, nil
}

// NewSession opens a tab, blocking until a pool slot frees up.
func (r *ChromedpRenderer) NewSession(ctx context.Context) (crawl.Session, error) {
	release, err := r.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	return &tabSession{
		tab:      tabCtx,
		cancel:   cancelTab,
		release:  release,
		renderer: r,
	}, nil
}

// Close tears down the browser and allocator. Open sessions become
// unusable.
func (r *ChromedpRenderer) Close() error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

func (r *ChromedpRenderer) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *ChromedpRenderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

// tabSession is one browser tab. Not safe for concurrent use; each
// extraction worker holds its own.
type tabSession struct {
	tab       context.Context
	cancel    context.CancelFunc
	release   func()
	renderer  *ChromedpRenderer
	closeOnce sync.Once
}

func (s *tabSession) Navigate(ctx context.Context, pageURL string) error {
	if err := s.renderer.waitDomainBudget(ctx, pageURL); err != nil {
		return fmt.Errorf("navigate rate limit: %w", err)
	}
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if ua := s.renderer.cfg.UserAgent; ua != "" {
		actions = append([]chromedp.Action{emulation.SetUserAgentOverride(ua)}, actions...)
	}
	if err := s.run(ctx, s.renderer.cfg.NavTimeout, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	return nil
}

func (s *tabSession) ScrollToBottom(ctx context.Context) error {
	err := s.run(ctx, s.renderer.cfg.QueryTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
	if err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

func (s *tabSession) PageHeight(ctx context.Context) (int64, error) {
	var height int64
	err := s.run(ctx, s.renderer.cfg.QueryTimeout,
		chromedp.Evaluate(`document.body.scrollHeight`, &height))
	if err != nil {
		return 0, fmt.Errorf("page height: %w", err)
	}
	return height, nil
}

func (s *tabSession) Text(ctx context.Context, locator string) (string, error) {
	var text string
	// BySearch accepts XPath expressions as well as CSS selectors.
	err := s.run(ctx, s.renderer.cfg.QueryTimeout,
		chromedp.Text(locator, &text, chromedp.BySearch))
	if err != nil {
		return "", fmt.Errorf("text %s: %w", locator, err)
	}
	return text, nil
}

func (s *tabSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, s.renderer.cfg.NavTimeout,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("snapshot html: %w", err)
	}
	return html, nil
}

func (s *tabSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.release()
	})
	return nil
}

// run executes actions against the tab under the given timeout while
// honoring the caller's context.
func (s *tabSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancelTask := context.WithTimeout(s.tab, timeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()
	return chromedp.Run(taskCtx, actions...)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

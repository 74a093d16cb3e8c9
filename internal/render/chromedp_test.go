package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewRejectsZeroSessions(t *testing.T) {
	_, err := New(Config{MaxSessions: 0}, zap.NewNop())
	if !errors.Is(err, ErrRendererDisabled) {
		t.Fatalf("expected ErrRendererDisabled, got %v", err)
	}
}

func TestForwardCancelNilParent(t *testing.T) {
	stop := forwardCancel(nil, func() { t.Fatal("cancel must not fire") })
	stop()
}

func TestForwardCancelPropagates(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	fired := make(chan struct{})
	stop := forwardCancel(parent, func() { close(fired) })
	defer stop()

	cancelParent()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("cancel did not propagate")
	}
}

func TestSessionRendersDynamicContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body><script>document.body.innerHTML = '<div id="late">late content</div>';</script></body></html>`)
	}))
	defer srv.Close()

	renderer, err := New(Config{
		MaxSessions: 1,
		UserAgent:   "TestAgent",
		NavTimeout:  5 * time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	defer renderer.Close()

	session, err := renderer.NewSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	if err := session.Navigate(context.Background(), srv.URL); err != nil {
		t.Skipf("navigate failed: %v", err)
	}
	html, err := session.HTML(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !strings.Contains(html, "late content") {
		t.Fatal("rendered body missing dynamic content")
	}
	height, err := session.PageHeight(context.Background())
	if err != nil {
		t.Fatalf("height: %v", err)
	}
	if height <= 0 {
		t.Fatalf("unexpected height %d", height)
	}
}

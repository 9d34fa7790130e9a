package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gradtrust/portal/internal/observability"
)

type fakeFeed bool

func (f fakeFeed) Connected() bool { return bool(f) }

type fakeBroker struct{ err error }

func (f fakeBroker) Ping(context.Context) error { return f.err }

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		deps     FeedReadiness
		shutting bool
		status   int
		body     string
	}{
		{"ready", FeedReadiness{Feed: fakeFeed(true), Broker: fakeBroker{}}, false, http.StatusOK, "ready"},
		{"feed down", FeedReadiness{Feed: fakeFeed(false), Broker: fakeBroker{}}, false, http.StatusServiceUnavailable, ErrFeedDisconnected.Error()},
		{"broker down", FeedReadiness{Feed: fakeFeed(true), Broker: fakeBroker{err: errors.New("no route")}}, false, http.StatusServiceUnavailable, "no route"},
		{"shutting down", FeedReadiness{Feed: fakeFeed(true)}, true, http.StatusServiceUnavailable, "shutting down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Mux(observability.NewFeedStats(), tt.deps, func() bool { return tt.shutting })

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if !strings.Contains(w.Body.String(), tt.body) {
				t.Fatalf("expected %q in %q", tt.body, w.Body.String())
			}
		})
	}
}

func TestHealthAndStats(t *testing.T) {
	stats := observability.NewFeedStats()
	stats.FeedEvent("merkle_root_updated")
	stats.FeedEvent("pending_updates")
	stats.FeedReconnect()

	h := Mux(stats, FeedReadiness{}, func() bool { return false })

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var snap observability.FeedStatsSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Received != 2 || snap.Reconnects != 1 || snap.LastEvent == nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

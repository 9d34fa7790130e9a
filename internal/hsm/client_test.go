package hsm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEntropy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{name: "ok", status: http.StatusOK, body: `{"entropy":"a1b2"}`, want: "a1b2"},
		{name: "empty device", status: http.StatusServiceUnavailable, body: `{"error":"No entropy available"}`, wantErr: ErrNoEntropy},
		{name: "blank value", status: http.StatusOK, body: `{"entropy":""}`, wantErr: ErrNoEntropy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/entropy" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			got, err := New(srv.URL, time.Second).Entropy(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %q, %v", got, err)
			}
		})
	}
}

func TestEntropy_NotConfigured(t *testing.T) {
	c := New("", time.Second)
	if c.Enabled() {
		t.Fatalf("expected client without URL to be disabled")
	}
	if _, err := c.Entropy(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

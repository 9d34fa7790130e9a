package relay

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var ErrFeedDisconnected = errors.New("backend feed not connected")

type ReadinessDeps interface {
	Ping(ctx context.Context) error
}

// FeedReadiness is ready once the backend socket is up and the broker answers.
type FeedReadiness struct {
	Feed   interface{ Connected() bool }
	Broker ReadinessDeps
}

func (r FeedReadiness) Ping(ctx context.Context) error {
	if r.Feed != nil && !r.Feed.Connected() {
		return ErrFeedDisconnected
	}
	if r.Broker != nil {
		return r.Broker.Ping(ctx)
	}
	return nil
}

func ReadyHandler(deps ReadinessDeps, isShuttingDown func() bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if isShuttingDown() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := deps.Ping(ctx); err != nil {
			http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	return mux
}

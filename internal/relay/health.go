package relay

import (
	"encoding/json"
	"net/http"

	"github.com/gradtrust/portal/internal/observability"
)

// HealthHandler serves liveness and the feed counters.
func HealthHandler(stats *observability.FeedStats) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("ok"))

		if err != nil {
			return
		}
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats.Snapshot())
	})

	return mux
}

// Mux combines the health, stats and readiness endpoints for the relay's
// health port.
func Mux(stats *observability.FeedStats, deps ReadinessDeps, isShuttingDown func() bool) http.Handler {
	mux := http.NewServeMux()
	health := HealthHandler(stats)
	mux.Handle("/healthz", health)
	mux.Handle("/stats", health)
	mux.Handle("/readyz", ReadyHandler(deps, isShuttingDown))
	return mux
}

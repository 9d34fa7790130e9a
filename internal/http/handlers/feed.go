package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/domain/merkle"
)

const defaultHeartbeat = 25 * time.Second

// EventSource hands out live Merkle event subscriptions; feed.Hub satisfies it.
type EventSource interface {
	Subscribe() (<-chan merkle.Event, func())
}

// ClientGauge tracks open streams; a prometheus.Gauge fits.
type ClientGauge interface {
	Inc()
	Dec()
}

type FeedHandler struct {
	source    EventSource
	clients   ClientGauge
	heartbeat time.Duration
}

func NewFeedHandler(source EventSource, clients ClientGauge) *FeedHandler {
	return &FeedHandler{source: source, clients: clients, heartbeat: defaultHeartbeat}
}

// Stream relays Merkle events to the admin page as Server-Sent Events until
// the browser goes away.
func (h *FeedHandler) Stream(ctx *gin.Context) {
	events, cancel := h.source.Subscribe()
	defer cancel()

	if h.clients != nil {
		h.clients.Inc()
		defer h.clients.Dec()
	}

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")

	// the server's WriteTimeout would otherwise cut the stream
	_ = http.NewResponseController(ctx.Writer).SetWriteDeadline(time.Time{})

	ctx.Status(http.StatusOK)
	_, _ = io.WriteString(ctx.Writer, ": connected\n\n")
	ctx.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	done := ctx.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			ctx.SSEvent(ev.Name, ev)
			ctx.Writer.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(ctx.Writer, ": ping\n\n"); err != nil {
				return
			}
			ctx.Writer.Flush()
		}
	}
}

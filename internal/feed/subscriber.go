// Package feed relays the backend's Merkle-root events to browsers. A
// Subscriber holds the Socket.IO connection to the backend, a Hub fans the
// events out to Server-Sent-Events streams, and the bridges let one relay
// process serve several portal instances.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gradtrust/portal/internal/domain/merkle"
)

// Sink receives every event read from the backend.
type Sink interface {
	Publish(ctx context.Context, ev merkle.Event) error
}

// Recorder counts feed activity. Implementations must be safe for
// concurrent use.
type Recorder interface {
	FeedEvent(name string)
	FeedReconnect()
	FeedDropped()
}

type noopRecorder struct{}

func (noopRecorder) FeedEvent(string) {}
func (noopRecorder) FeedReconnect()   {}
func (noopRecorder) FeedDropped()     {}

// SocketURL builds the Engine.IO websocket endpoint from a ws(s) base URL.
func SocketURL(base string) string {
	return strings.TrimRight(base, "/") + "/socket.io/?EIO=4&transport=websocket"
}

type Subscriber struct {
	url      string
	dialer   *websocket.Dialer
	sink     Sink
	log      *slog.Logger
	recorder Recorder
	backoff  func(attempt int) time.Duration

	connected atomic.Bool
}

func NewSubscriber(baseURL string, sink Sink, log *slog.Logger, recorder Recorder) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Subscriber{
		url: SocketURL(baseURL),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		sink:     sink,
		log:      log,
		recorder: recorder,
		backoff:  ExponentialBackoff,
	}
}

// Connected reports whether the namespace handshake has completed on the
// current connection.
func (s *Subscriber) Connected() bool {
	return s.connected.Load()
}

// Run keeps a connection open until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	attempt := 0

	for {
		established, err := s.session(ctx)
		s.connected.Store(false)

		if ctx.Err() != nil {
			s.log.Info("feed_subscriber_stopped")
			return nil
		}

		// a session that got as far as the namespace connect resets the backoff
		if established {
			attempt = 0
		}

		delay := s.backoff(attempt)
		attempt++

		s.recorder.FeedReconnect()
		s.log.Warn("feed_disconnected",
			"url", s.url,
			"err", err,
			"retry_in_ms", delay.Milliseconds(),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("feed_subscriber_stopped")
			return nil
		case <-timer.C:
		}
	}
}

func (s *Subscriber) session(ctx context.Context) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// unblocks ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	deadline := handshake{}.readDeadline()
	established := false

	for {
		_ = conn.SetReadDeadline(time.Now().Add(deadline))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return established, err
		}

		p, err := parsePacket(msg)
		if err != nil {
			if errors.Is(err, ErrServerClosed) || errors.Is(err, ErrConnectRefused) {
				return established, err
			}
			s.log.Warn("feed_bad_packet", "err", err)
			continue
		}

		switch p.kind {
		case kindOpen:
			deadline = p.handshake.readDeadline()
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioMessage, sioConnect}); err != nil {
				return established, err
			}
		case kindPing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioPong}); err != nil {
				return established, err
			}
		case kindConnected:
			established = true
			s.connected.Store(true)
			s.log.Info("feed_connected", "url", s.url)
		case kindEvent:
			s.recorder.FeedEvent(p.event.Name)
			if err := s.sink.Publish(ctx, p.event); err != nil {
				s.log.Warn("feed_publish_failed",
					"event", p.event.Name,
					"err", err,
				)
			}
		}
	}
}

package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gradtrust/portal/internal/domain/merkle"
)

func TestSocketURL(t *testing.T) {
	if got := SocketURL("ws://backend:5000/"); got != "ws://backend:5000/socket.io/?EIO=4&transport=websocket" {
		t.Fatalf("unexpected url %q", got)
	}
}

// fakeEngineIO plays the server side of one Engine.IO session and reports the
// frames the client sent.
func fakeEngineIO(t *testing.T, clientFrames chan<- string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" {
			t.Errorf("unexpected handshake url %s", r.URL.String())
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		send := func(s string) bool {
			return conn.WriteMessage(websocket.TextMessage, []byte(s)) == nil
		}
		recv := func() (string, bool) {
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return "", false
			}
			clientFrames <- string(msg)
			return string(msg), true
		}

		if !send(`0{"sid":"s1","pingInterval":25000,"pingTimeout":20000}`) {
			return
		}
		if _, ok := recv(); !ok {
			return
		}
		if !send(`40{"sid":"n1"}`) || !send("2") {
			return
		}
		if _, ok := recv(); !ok {
			return
		}
		send(`42["merkle_root_updated",{"merkleRoot":"0xroot","transactionHash":"0xtx"}]`)

		// hold the connection until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
}

func TestSubscriber_HandshakeAndRelay(t *testing.T) {
	frames := make(chan string, 4)
	srv := fakeEngineIO(t, frames)
	defer srv.Close()

	hub := NewHub(4, nil)
	events, cancelSub := hub.Subscribe()
	defer cancelSub()

	rec := &countingRecorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), hub, log, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case ev := <-events:
		if ev.Name != merkle.EventRootUpdated || ev.Updated == nil || ev.Updated.MerkleRoot != "0xroot" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for relayed event")
	}

	if got := <-frames; got != "40" {
		t.Fatalf("expected namespace connect frame, got %q", got)
	}
	if got := <-frames; got != "3" {
		t.Fatalf("expected pong frame, got %q", got)
	}
	if !s.Connected() {
		t.Fatalf("expected subscriber to report connected")
	}
	if rec.events.Load() != 1 {
		t.Fatalf("expected one recorded event, got %d", rec.events.Load())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestSubscriber_RetriesWithBackoff(t *testing.T) {
	rec := &countingRecorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	// nothing listens on this port
	s := NewSubscriber("ws://127.0.0.1:1", NewHub(1, nil), log, rec)

	attempts := make(chan int, 8)
	s.backoff = func(attempt int) time.Duration {
		select {
		case attempts <- attempt:
		default:
		}
		return time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for want := 0; want < 3; want++ {
		select {
		case got := <-attempts:
			if got != want {
				t.Fatalf("attempt = %d, want %d", got, want)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for retry %d", want)
		}
	}

	cancel()
	<-done

	if rec.reconnects.Load() < 3 {
		t.Fatalf("expected reconnects to be recorded, got %d", rec.reconnects.Load())
	}
}

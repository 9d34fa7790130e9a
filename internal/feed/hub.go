package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/gradtrust/portal/internal/domain/merkle"
)

const defaultSubscriberBuffer = 16

// Hub fans events out to connected browsers. Publish never blocks, a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu       sync.RWMutex
	subs     map[chan merkle.Event]struct{}
	buffer   int
	recorder Recorder
}

func NewHub(buffer int, recorder Recorder) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Hub{
		subs:     make(map[chan merkle.Event]struct{}),
		buffer:   buffer,
		recorder: recorder,
	}
}

// Subscribe registers a listener. The returned cancel func closes the channel
// and must be called once the listener goes away.
func (h *Hub) Subscribe() (<-chan merkle.Event, func()) {
	ch := make(chan merkle.Event, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}

	return ch, cancel
}

func (h *Hub) Publish(_ context.Context, ev merkle.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.recorder.FeedDropped()
		}
	}
	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Tee publishes to every sink and joins the errors.
type Tee []Sink

func (t Tee) Publish(ctx context.Context, ev merkle.Event) error {
	var errs []error
	for _, s := range t {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

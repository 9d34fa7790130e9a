package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Publisher appends audit events. In async mode events are queued and written
// by a background goroutine so a slow database never delays a page.
type Publisher struct {
	store  Store
	events chan Event
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool
	now    func() time.Time

	// mu guards closed against a late Emit racing Close
	mu     sync.RWMutex
	closed bool
}

type PublisherOption func(*Publisher)

func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		p.persist(ctx, event)
		cancel()
	}
}

func (p *Publisher) persist(ctx context.Context, event Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit_persist_failed",
			"err", err,
			"action", event.Action,
			"actor", event.Actor,
		)
	}
}

// Close drains queued events. Later Emits are logged and dropped.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.async && p.events != nil {
		close(p.events)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Emit never fails the caller's action; persistence errors are logged.
func (p *Publisher) Emit(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = p.now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}

	if !p.async {
		p.persist(ctx, e)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.WarnContext(ctx, "audit_publisher_closed",
			"action", e.Action,
			"actor", e.Actor,
		)
		return
	}

	select {
	case p.events <- e:
	default:
		p.logger.WarnContext(ctx, "audit_buffer_full",
			"action", e.Action,
			"actor", e.Actor,
		)
	}
}

func (p *Publisher) Recent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, limit)
}

package observability

import (
	"sync/atomic"
	"time"
)

// FeedStats is the relay's in-process view of the event feed, served on its
// health port next to /healthz.
type FeedStats struct {
	received   atomic.Uint64
	reconnects atomic.Uint64
	dropped    atomic.Uint64

	lastEventUnix atomic.Int64
	now           func() time.Time
}

func NewFeedStats() *FeedStats {
	return &FeedStats{now: time.Now}
}

func (s *FeedStats) FeedEvent(string) {
	s.received.Add(1)
	s.lastEventUnix.Store(s.now().Unix())
}

func (s *FeedStats) FeedReconnect() {
	s.reconnects.Add(1)
}

func (s *FeedStats) FeedDropped() {
	s.dropped.Add(1)
}

type FeedStatsSnapshot struct {
	Received   uint64     `json:"received"`
	Reconnects uint64     `json:"reconnects"`
	Dropped    uint64     `json:"dropped"`
	LastEvent  *time.Time `json:"lastEvent,omitempty"`
}

func (s *FeedStats) Snapshot() FeedStatsSnapshot {
	snap := FeedStatsSnapshot{
		Received:   s.received.Load(),
		Reconnects: s.reconnects.Load(),
		Dropped:    s.dropped.Load(),
	}

	if ts := s.lastEventUnix.Load(); ts > 0 {
		t := time.Unix(ts, 0).UTC()
		snap.LastEvent = &t
	}
	return snap
}

// Recorders fans feed counts out to several sinks, e.g. Prometheus and the
// relay's FeedStats.
type Recorders []interface {
	FeedEvent(name string)
	FeedReconnect()
	FeedDropped()
}

func (r Recorders) FeedEvent(name string) {
	for _, rec := range r {
		rec.FeedEvent(name)
	}
}

func (r Recorders) FeedReconnect() {
	for _, rec := range r {
		rec.FeedReconnect()
	}
}

func (r Recorders) FeedDropped() {
	for _, rec := range r {
		rec.FeedDropped()
	}
}

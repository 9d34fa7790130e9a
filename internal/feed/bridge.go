package feed

import (
	"context"
	"log/slog"
	"time"
)

// Bridge carries events from the relay process to portal instances.
type Bridge interface {
	Sink
	Run(ctx context.Context, sink Sink) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Bridge = (*RedisBridge)(nil)
	_ Bridge = (*AMQPBridge)(nil)
)

// RunBridge consumes from bridge into sink until ctx ends. A dropped broker
// only costs live updates, so Run is retried with backoff instead of
// returning the error. A nil backoff means ExponentialBackoff.
func RunBridge(ctx context.Context, bridge Bridge, sink Sink, backoff func(int) time.Duration, log *slog.Logger) error {
	if backoff == nil {
		backoff = ExponentialBackoff
	}
	if log == nil {
		log = slog.Default()
	}

	attempt := 0
	for {
		started := time.Now()
		err := bridge.Run(ctx, sink)
		if ctx.Err() != nil {
			return nil
		}

		// a consumer that ran for a while was healthy; start the ladder again
		if time.Since(started) > time.Minute {
			attempt = 0
		}

		wait := backoff(attempt)
		attempt++
		log.Warn("feed_bridge_stopped", "err", err, "retry_in_ms", wait.Milliseconds())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Package poll adapts any pull-capable transport into a change listener by
// reading it on a fixed interval. A failed pull skips that tick and the
// loop simply tries again on the next one.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"checkdesk/internal/sync/transport"
)

const defaultInterval = 5 * time.Second

// Poller periodically pulls a snapshot source.
type Poller struct {
	source   transport.Transport
	logger   *slog.Logger
	interval time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the poll interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// New creates a poller over the given source.
func New(source transport.Transport, logger *slog.Logger, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		logger:   logger,
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe starts the poll loop. Each successful pull is handed to fn;
// errors and empty sources are skipped. The loop stops when ctx is
// cancelled or the returned Unsubscribe is called.
func (p *Poller) Subscribe(ctx context.Context, fn transport.Handler) (transport.Unsubscribe, error) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				p.tick(loopCtx, fn)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}

func (p *Poller) tick(ctx context.Context, fn transport.Handler) {
	snap, err := p.source.Pull(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "poll tick failed, retrying next interval",
			"transport", p.source.Name(),
			"error", err,
		)
		return
	}
	if snap == nil {
		return
	}
	fn(transport.Envelope{Snapshot: *snap})
}

var _ transport.Listener = (*Poller)(nil)

// Package broadcast is the same-device transport: an in-process pub/sub
// bus that rebroadcasts snapshots between instances sharing one machine.
// It is not network-backed and persists nothing. Members ignore envelopes
// whose origin equals their own session id, and a heartbeat sub-protocol
// tracks how many sessions are live as advisory UI state.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"checkdesk/internal/sentinel"
	"checkdesk/internal/sync/transport"
)

const defaultTTL = 15 * time.Second

// Bus fans snapshot envelopes out to every joined member.
type Bus struct {
	mu         sync.Mutex
	members    map[string]*Member
	heartbeats map[string]time.Time
	ttl        time.Duration
	now        func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

// WithTTL overrides how long a heartbeat counts as live.
func WithTTL(ttl time.Duration) Option {
	return func(b *Bus) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithClock overrides the heartbeat clock.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBus creates an empty broadcast bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		members:    make(map[string]*Member),
		heartbeats: make(map[string]time.Time),
		ttl:        defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Join registers a session on the bus and starts its heartbeat announcer.
// The caller owns the returned member and must Close it on shutdown.
func (b *Bus) Join(sessionID string, logger *slog.Logger) *Member {
	m := &Member{
		bus:       b,
		sessionID: sessionID,
		logger:    logger,
		inbox:     make(chan transport.Envelope, 16),
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	b.members[sessionID] = m
	b.heartbeats[sessionID] = b.now()
	b.mu.Unlock()

	go m.announce()
	return m
}

// Online returns the number of distinct sessions with a heartbeat inside
// the TTL window. The caller's own session counts.
func (b *Bus) Online() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := b.now().Add(-b.ttl)
	for id, seen := range b.heartbeats {
		if seen.Before(cutoff) {
			delete(b.heartbeats, id)
		}
	}
	return len(b.heartbeats)
}

func (b *Bus) heartbeat(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, joined := b.members[sessionID]; joined {
		b.heartbeats[sessionID] = b.now()
	}
}

func (b *Bus) publish(env transport.Envelope) {
	b.mu.Lock()
	targets := make([]*Member, 0, len(b.members))
	for _, m := range b.members {
		targets = append(targets, m)
	}
	b.mu.Unlock()

	for _, m := range targets {
		m.deliver(env)
	}
}

func (b *Bus) leave(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members, sessionID)
	delete(b.heartbeats, sessionID)
}

// Member is one session's handle on the bus.
type Member struct {
	bus       *Bus
	sessionID string
	logger    *slog.Logger
	inbox     chan transport.Envelope

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// SessionID returns the member's session identifier.
func (m *Member) SessionID() string { return m.sessionID }

// Publish rebroadcasts a snapshot to every instance on the bus, stamped
// with this member's session id so receivers can skip their own writes.
func (m *Member) Publish(snap transport.Envelope) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return sentinel.ErrClosed
	}
	snap.Origin = m.sessionID
	m.bus.publish(snap)
	return nil
}

// Subscribe delivers envelopes from other sessions to fn until ctx is
// cancelled or the returned Unsubscribe is called. Envelopes originating
// from this member are dropped before fn ever sees them.
func (m *Member) Subscribe(ctx context.Context, fn transport.Handler) (transport.Unsubscribe, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, sentinel.ErrClosed
	}
	m.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-m.done:
				return
			case env := <-m.inbox:
				if env.Origin == m.sessionID {
					continue
				}
				fn(env)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-finished
		})
	}
	return stop, nil
}

// Close removes the member from the bus and stops its heartbeat. Safe to
// call more than once.
func (m *Member) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.bus.leave(m.sessionID)
}

// deliver queues an envelope without blocking the publisher. A full inbox
// means the receiver is hopelessly behind; the next full snapshot will
// catch it up anyway, so the envelope is dropped.
func (m *Member) deliver(env transport.Envelope) {
	select {
	case <-m.done:
	case m.inbox <- env:
	default:
		if m.logger != nil {
			m.logger.Warn("broadcast inbox full, dropping snapshot", "session", m.sessionID)
		}
	}
}

// announce refreshes this session's heartbeat until the member is closed.
func (m *Member) announce() {
	interval := m.bus.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.bus.heartbeat(m.sessionID)
		}
	}
}

var _ transport.Listener = (*Member)(nil)

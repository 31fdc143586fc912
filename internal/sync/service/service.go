// Package service is the synchronization component: it bootstraps the
// roster, pushes every local change out through the configured transports,
// and reconciles inbound snapshots against the in-memory state.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"checkdesk/internal/roster/models"
	"checkdesk/internal/roster/store"
	syncmetrics "checkdesk/internal/sync/metrics"
	"checkdesk/internal/sync/reconcile"
	"checkdesk/internal/sync/transport"
	dErrors "checkdesk/pkg/domain-errors"
)

// onlineSampleInterval is how often the online-instances gauge is refreshed
// from the broadcast liveness window.
const onlineSampleInterval = 5 * time.Second

// Publisher is the same-device broadcast half the service writes to.
type Publisher interface {
	Publish(env transport.Envelope) error
}

// RosterSource loads the canonical roster when no transport has data.
// CSV ingestion in production, a stub in tests.
type RosterSource func() (participants, staff []models.Person, err error)

// Status is the ambient sync indicator surfaced to the UI.
type Status struct {
	State     string `json:"state"` // "connecting" until the first sync, then "synced"
	LastSync  *int64 `json:"lastSync,omitempty"`
	Loaded    bool   `json:"loaded"`
	Online    int    `json:"online"`
	SessionID string `json:"sessionId"`
}

// Service owns the sync lifecycle for one client instance.
type Service struct {
	store     *store.InMemory
	cache     transport.Transport
	remote    transport.Transport
	publisher Publisher
	listeners []transport.Listener
	source    RosterSource

	sessionID string
	logger    *slog.Logger
	metrics   *syncmetrics.Metrics
	tracer    trace.Tracer
	online    func() int
	now       func() time.Time

	mu    sync.Mutex
	stops []transport.Unsubscribe
}

// New constructs the service. The in-memory store and the durable cache
// are required; everything else is optional and attached via options.
func New(st *store.InMemory, cache transport.Transport, sessionID string, opts ...Option) (*Service, error) {
	if st == nil || cache == nil {
		return nil, errMissingDependencies
	}
	s := &Service{
		store:     st,
		cache:     cache,
		sessionID: sessionID,
		logger:    slog.Default(),
		tracer:    otel.Tracer("checkdesk/sync"),
		online:    func() int { return 1 },
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Bootstrap establishes the initial roster: remote document first, then the
// durable cache, then the CSV source. A CSV bootstrap is pushed back out so
// other instances and media converge on it. Ingestion failure leaves the
// roster empty and unloaded; the dashboard renders an empty state instead
// of crashing.
func (s *Service) Bootstrap(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "sync.bootstrap")
	defer span.End()

	if s.remote != nil {
		snap, err := s.remote.Pull(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "remote bootstrap pull failed, falling back",
				"transport", s.remote.Name(), "error", err)
		} else if snap != nil {
			span.SetAttributes(attribute.String("bootstrap.source", "remote"))
			s.adopt(ctx, *snap)
			return
		}
	}

	snap, err := s.cache.Pull(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cache bootstrap pull failed, falling back", "error", err)
	} else if snap != nil {
		span.SetAttributes(attribute.String("bootstrap.source", "cache"))
		s.store.Replace(*snap)
		// Seed the remote so networked instances converge on the cached
		// roster instead of racing to re-ingest.
		s.pushOut(ctx)
		return
	}

	if s.source == nil {
		s.logger.WarnContext(ctx, "no roster source configured, starting empty")
		return
	}
	participants, staff, err := s.source()
	if err != nil {
		span.RecordError(err)
		if dErrors.HasCode(err, dErrors.CodeUnavailable) {
			s.logger.ErrorContext(ctx, "roster source unreachable, starting empty", "error", err)
		} else {
			s.logger.ErrorContext(ctx, "roster ingestion failed, starting empty", "error", err)
		}
		return
	}
	span.SetAttributes(attribute.String("bootstrap.source", "csv"))
	s.store.Replace(models.Snapshot{
		Participants: participants,
		Staff:        staff,
		Timestamp:    models.Millis(s.now()),
	})
	s.pushOut(ctx)
}

// Start wires the inbound listeners. Call Stop to tear them down.
func (s *Service) Start(ctx context.Context) error {
	for _, l := range s.listeners {
		stop, err := l.Subscribe(ctx, func(env transport.Envelope) {
			s.HandleInbound(context.WithoutCancel(ctx), env)
		})
		if err != nil {
			s.Stop()
			return err
		}
		s.mu.Lock()
		s.stops = append(s.stops, stop)
		s.mu.Unlock()
	}
	if s.metrics != nil {
		done := make(chan struct{})
		go s.observeOnline(done)
		s.mu.Lock()
		s.stops = append(s.stops, func() { close(done) })
		s.mu.Unlock()
	}
	return nil
}

// observeOnline keeps the online-instances gauge in step with the broadcast
// liveness window so status reads stay free of side effects.
func (s *Service) observeOnline(done <-chan struct{}) {
	ticker := time.NewTicker(onlineSampleInterval)
	defer ticker.Stop()
	s.metrics.OnlineInstances.Set(float64(s.online()))
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.metrics.OnlineInstances.Set(float64(s.online()))
		}
	}
}

// Stop tears down every subscription. No callbacks fire after it returns.
func (s *Service) Stop() {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

// Toggle flips a person's boolean field and, when the roster actually
// changed, pushes the new snapshot out. A lookup miss is a silent no-op.
func (s *Service) Toggle(ctx context.Context, collection models.Collection, name string, field models.Field) store.ToggleResult {
	res := s.store.Toggle(collection, name, field)
	if res.Changed && s.store.Loaded() {
		s.pushOut(ctx)
	}
	return res
}

// HandleInbound offers a snapshot observed on any transport to the
// reconciler. Snapshots originating from this instance are ignored.
func (s *Service) HandleInbound(ctx context.Context, env transport.Envelope) {
	if env.Origin != "" && env.Origin == s.sessionID {
		return
	}

	ctx, span := s.tracer.Start(ctx, "sync.inbound")
	defer span.End()

	if s.metrics != nil {
		s.metrics.SnapshotsSeen.Inc()
	}

	lastSync, synced := s.store.LastSync()
	decision := reconcile.Decide(lastSync, synced, env.Snapshot.Timestamp)
	span.SetAttributes(
		attribute.String("sync.decision", decision.String()),
		attribute.Int64("snapshot.timestamp", env.Snapshot.Timestamp),
	)

	if decision == reconcile.KeepLocal {
		if s.metrics != nil {
			s.metrics.Keeps.Inc()
		}
		s.logger.DebugContext(ctx, "inbound snapshot discarded as stale",
			"candidate_ts", env.Snapshot.Timestamp, "last_sync", lastSync)
		return
	}

	if s.metrics != nil {
		s.metrics.Adoptions.Inc()
	}
	s.adopt(ctx, env.Snapshot)
	s.logger.InfoContext(ctx, "adopted inbound snapshot",
		"candidate_ts", env.Snapshot.Timestamp, "origin", env.Origin)
}

// Reset irreversibly clears every medium (cache, remote document, memory)
// and re-bootstraps. With the remote and cache now empty, the bootstrap
// falls through to the CSV source.
func (s *Service) Reset(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "sync.reset")
	defer span.End()

	if err := s.cache.Delete(ctx); err != nil {
		s.logger.ErrorContext(ctx, "cache delete failed during reset", "error", err)
	}
	if s.remote != nil {
		if err := s.remote.Delete(ctx); err != nil {
			s.logger.WarnContext(ctx, "remote delete failed during reset",
				"transport", s.remote.Name(), "error", err)
		}
	}
	s.store.Clear()
	s.logger.InfoContext(ctx, "roster reset, re-bootstrapping")
	s.Bootstrap(ctx)
}

// Status reports the ambient sync indicator.
func (s *Service) Status() Status {
	st := Status{
		State:     "connecting",
		Loaded:    s.store.Loaded(),
		Online:    s.online(),
		SessionID: s.sessionID,
	}
	if ts, synced := s.store.LastSync(); synced {
		st.State = "synced"
		st.LastSync = &ts
	}
	return st
}

// adopt replaces the in-memory roster with a winning snapshot and writes
// it through to the durable cache.
func (s *Service) adopt(ctx context.Context, snap models.Snapshot) {
	s.store.Replace(snap)
	if err := s.cache.Push(ctx, transport.Envelope{Origin: s.sessionID, Snapshot: snap}); err != nil {
		s.logger.WarnContext(ctx, "cache write-through failed", "error", err)
	}
}

// pushOut persists the current roster to every available medium. The
// remote write is best-effort and runs alongside the cache write so a
// stalled network call never delays the local path; lastSync advances as
// long as the push was attempted.
func (s *Service) pushOut(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "sync.push")
	defer span.End()

	snap := s.store.Snapshot()
	env := transport.Envelope{Origin: s.sessionID, Snapshot: snap}
	span.SetAttributes(attribute.Int64("snapshot.timestamp", snap.Timestamp))

	g, gctx := errgroup.WithContext(ctx)
	if s.remote != nil {
		g.Go(func() error {
			if err := s.remote.Push(gctx, env); err != nil {
				s.reportPushFailure(gctx, s.remote.Name(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := s.cache.Push(gctx, env); err != nil {
			s.reportPushFailure(gctx, s.cache.Name(), err)
		}
		return nil
	})
	_ = g.Wait() // workers never return errors; they log their own failures

	if s.publisher != nil {
		if err := s.publisher.Publish(env); err != nil {
			s.reportPushFailure(ctx, "broadcast", err)
		}
	}

	s.store.SetLastSync(snap.Timestamp)
	if s.metrics != nil {
		s.metrics.Pushes.Inc()
	}
}

func (s *Service) reportPushFailure(ctx context.Context, name string, err error) {
	if s.metrics != nil {
		s.metrics.PushFailures.WithLabelValues(name).Inc()
	}
	s.logger.WarnContext(ctx, "snapshot push failed", "transport", name, "error", err)
}

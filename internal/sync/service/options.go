package service

import (
	"errors"
	"log/slog"
	"time"

	syncmetrics "checkdesk/internal/sync/metrics"
	"checkdesk/internal/sync/transport"
)

var errMissingDependencies = errors.New("store and cache are required")

// Option configures a Service.
type Option func(*Service)

// WithRemote attaches the networked snapshot transport.
func WithRemote(remote transport.Transport) Option {
	return func(s *Service) {
		s.remote = remote
	}
}

// WithPublisher attaches the same-device broadcast publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithListeners registers the inbound snapshot listeners wired on Start.
func WithListeners(listeners ...transport.Listener) Option {
	return func(s *Service) {
		s.listeners = append(s.listeners, listeners...)
	}
}

// WithRosterSource sets the bootstrap-of-last-resort roster loader.
func WithRosterSource(source RosterSource) Option {
	return func(s *Service) {
		s.source = source
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches sync metrics.
func WithMetrics(m *syncmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithOnline sets the live-session counter used in Status.
func WithOnline(online func() int) Option {
	return func(s *Service) {
		if online != nil {
			s.online = online
		}
	}
}

// WithClock overrides the clock used for bootstrap snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

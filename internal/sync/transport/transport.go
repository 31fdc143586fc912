// Package transport defines the capability set every snapshot transport
// implements. A transport moves whole-roster snapshots between memory and
// some storage or broadcast medium; it must catch its own IO failures and
// surface them as errors here, never panic past this boundary.
package transport

import (
	"context"

	"checkdesk/internal/roster/models"
)

// Envelope wraps a snapshot with the session id of the instance that
// published it, so same-device listeners can skip their own writes.
// Remote and cache reads carry an empty origin.
type Envelope struct {
	Origin   string          `json:"origin"`
	Snapshot models.Snapshot `json:"snapshot"`
}

// Transport is a durable or remote snapshot medium.
type Transport interface {
	// Name identifies the transport in logs and metrics.
	Name() string
	// Push overwrites the stored snapshot. Failures are non-fatal to the
	// caller, which falls back to other media.
	Push(ctx context.Context, env Envelope) error
	// Pull reads the stored snapshot. A nil snapshot with a nil error
	// means no data is available.
	Pull(ctx context.Context) (*models.Snapshot, error)
	// Delete removes the stored snapshot. Backs the reset action.
	Delete(ctx context.Context) error
}

// Handler receives inbound snapshot envelopes.
type Handler func(env Envelope)

// Unsubscribe tears down a subscription. Safe to call more than once; no
// callbacks fire after it returns.
type Unsubscribe func()

// Listener is a transport that can notify about snapshot changes.
type Listener interface {
	// Subscribe registers fn for inbound snapshots until ctx is cancelled
	// or the returned Unsubscribe is called.
	Subscribe(ctx context.Context, fn Handler) (Unsubscribe, error)
}

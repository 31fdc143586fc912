// Package redisdoc is the networked transport: one addressable Redis value
// holds the whole-roster snapshot, and a pub/sub channel carries realtime
// change notifications to every subscribed instance.
package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"checkdesk/internal/roster/models"
	"checkdesk/internal/sync/transport"
)

// Doc stores the roster snapshot as a single Redis key and fans out
// updates over pub/sub.
type Doc struct {
	client  *redis.Client
	logger  *slog.Logger
	key     string
	channel string
}

// New connects to Redis and verifies the connection. An empty URL is a
// configuration error; callers decide whether to run without a remote.
func New(url, namespace string, logger *slog.Logger) (*Doc, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Doc{
		client:  client,
		logger:  logger,
		key:     namespace + ":snapshot",
		channel: namespace + ":updates",
	}, nil
}

// Close closes the Redis connection.
func (d *Doc) Close() error {
	return d.client.Close()
}

// Name implements transport.Transport.
func (d *Doc) Name() string { return "redis" }

// Health reports whether the Redis connection is usable.
func (d *Doc) Health(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Push overwrites the remote document and notifies subscribers.
func (d *Doc) Push(ctx context.Context, env transport.Envelope) error {
	raw, err := json.Marshal(env.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := d.client.Set(ctx, d.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("write remote snapshot: %w", err)
	}

	wire, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := d.client.Publish(ctx, d.channel, wire).Err(); err != nil {
		// The document write already landed; polling instances will still
		// converge, so a failed notify is only worth a warning.
		d.logger.WarnContext(ctx, "publish snapshot update failed", "error", err)
	}
	return nil
}

// Pull reads the remote document. Returns nil, nil when it does not exist.
func (d *Doc) Pull(ctx context.Context) (*models.Snapshot, error) {
	raw, err := d.client.Get(ctx, d.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read remote snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode remote snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the remote document. Backs the reset action.
func (d *Doc) Delete(ctx context.Context) error {
	if err := d.client.Del(ctx, d.key).Err(); err != nil {
		return fmt.Errorf("delete remote snapshot: %w", err)
	}
	return nil
}

// Subscribe delivers the current document immediately, then every
// published update until ctx is cancelled or the returned Unsubscribe is
// called. Malformed messages are logged and skipped.
func (d *Doc) Subscribe(ctx context.Context, fn transport.Handler) (transport.Unsubscribe, error) {
	pubsub := d.client.Subscribe(ctx, d.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to updates: %w", err)
	}

	// Initial delivery so a late joiner converges without waiting for the
	// next write.
	if snap, err := d.Pull(ctx); err != nil {
		d.logger.WarnContext(ctx, "initial remote pull failed", "error", err)
	} else if snap != nil {
		fn(transport.Envelope{Snapshot: *snap})
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			_ = pubsub.Close()
			<-done
		})
	}

	go func() {
		defer close(done)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env transport.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					d.logger.Warn("skipping malformed snapshot update", "error", err)
					continue
				}
				fn(env)
			}
		}
	}()

	return stop, nil
}

var (
	_ transport.Transport = (*Doc)(nil)
	_ transport.Listener  = (*Doc)(nil)
)

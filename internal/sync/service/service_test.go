package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkdesk/internal/roster/models"
	"checkdesk/internal/roster/store"
	syncmetrics "checkdesk/internal/sync/metrics"
	"checkdesk/internal/sync/transport"
)

// fakeTransport is an in-memory Transport with scriptable failures.
type fakeTransport struct {
	mu        sync.Mutex
	name      string
	snap      *models.Snapshot
	pushErr   error
	pullErr   error
	deleteErr error
	pushes    int
	deletes   int
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Push(_ context.Context, env transport.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	snap := env.Snapshot.Clone()
	f.snap = &snap
	f.pushes++
	return nil
}

func (f *fakeTransport) Pull(context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.snap == nil {
		return nil, nil
	}
	snap := f.snap.Clone()
	return &snap, nil
}

func (f *fakeTransport) Delete(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.snap = nil
	return nil
}

func (f *fakeTransport) stored() *models.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return nil
	}
	snap := f.snap.Clone()
	return &snap
}

func csvSource(calls *int) RosterSource {
	return func() ([]models.Person, []models.Person, error) {
		if calls != nil {
			*calls++
		}
		return []models.Person{
				{Fields: map[string]string{models.NameField: "Alice"}},
				{Fields: map[string]string{models.NameField: "Bob"}},
			}, []models.Person{
				{Fields: map[string]string{models.NameField: "Carol"}},
			}, nil
	}
}

type fixture struct {
	svc    *Service
	store  *store.InMemory
	remote *fakeTransport
	cache  *fakeTransport
	clock  *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	ts int64
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts++
	return time.UnixMilli(c.ts)
}

func (c *fakeClock) set(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts = ts
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := &fakeClock{}
	st := store.NewInMemory(store.WithClock(clock.now))
	remote := &fakeTransport{name: "remote"}
	cache := &fakeTransport{name: "cache"}

	base := []Option{
		WithRemote(remote),
		WithRosterSource(csvSource(nil)),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithClock(clock.now),
	}
	svc, err := New(st, cache, "session-1", append(base, opts...)...)
	require.NoError(t, err)

	return &fixture{svc: svc, store: st, remote: remote, cache: cache, clock: clock}
}

func TestNewRequiresStoreAndCache(t *testing.T) {
	_, err := New(nil, &fakeTransport{}, "s")
	require.Error(t, err)
	_, err = New(store.NewInMemory(), nil, "s")
	require.Error(t, err)
}

func TestBootstrapPrefersRemote(t *testing.T) {
	f := newFixture(t)
	f.remote.snap = &models.Snapshot{
		Participants: []models.Person{{Fields: map[string]string{models.NameField: "Remote Rita"}}},
		Timestamp:    500,
	}

	f.svc.Bootstrap(context.Background())

	require.True(t, f.store.Loaded())
	participants, _ := f.store.Search("")
	require.Len(t, participants, 1)
	assert.Equal(t, "Remote Rita", participants[0].Name())

	// Adoption writes through to the cache.
	cached := f.cache.stored()
	require.NotNil(t, cached)
	assert.Equal(t, int64(500), cached.Timestamp)
}

func TestBootstrapFallsBackToCache(t *testing.T) {
	f := newFixture(t)
	f.remote.pullErr = errors.New("network unreachable")
	f.cache.snap = &models.Snapshot{
		Participants: []models.Person{{Fields: map[string]string{models.NameField: "Cached Carl"}}},
		Timestamp:    300,
	}

	f.svc.Bootstrap(context.Background())

	require.True(t, f.store.Loaded())
	participants, _ := f.store.Search("")
	require.Len(t, participants, 1)
	assert.Equal(t, "Cached Carl", participants[0].Name())
}

func TestBootstrapFallsBackToCSVAndPushesOut(t *testing.T) {
	calls := 0
	f := newFixture(t, WithRosterSource(csvSource(&calls)))

	f.svc.Bootstrap(context.Background())

	require.True(t, f.store.Loaded())
	assert.Equal(t, 1, calls)
	participants, staff := f.store.Search("")
	assert.Len(t, participants, 2)
	assert.Len(t, staff, 1)

	// The bootstrapped roster is pushed back out to every medium.
	assert.NotNil(t, f.remote.stored())
	assert.NotNil(t, f.cache.stored())
	_, synced := f.store.LastSync()
	assert.True(t, synced)
}

func TestBootstrapIngestionFailureLeavesEmptyState(t *testing.T) {
	f := newFixture(t, WithRosterSource(func() ([]models.Person, []models.Person, error) {
		return nil, nil, errors.New("csv missing")
	}))

	f.svc.Bootstrap(context.Background())

	assert.False(t, f.store.Loaded())
	participants, staff := f.store.Search("")
	assert.Empty(t, participants)
	assert.Empty(t, staff)
}

func TestToggleTriggersPush(t *testing.T) {
	f := newFixture(t)
	f.svc.Bootstrap(context.Background())
	pushesBefore := f.cache.pushes

	res := f.svc.Toggle(context.Background(), models.CollectionParticipants, "Alice", models.FieldCheckedIn)
	require.True(t, res.Changed)

	cached := f.cache.stored()
	require.NotNil(t, cached)
	assert.True(t, cached.Participants[0].CheckedIn)
	assert.Greater(t, f.cache.pushes, pushesBefore)
}

func TestToggleMissDoesNotPush(t *testing.T) {
	f := newFixture(t)
	f.svc.Bootstrap(context.Background())
	pushesBefore := f.cache.pushes

	res := f.svc.Toggle(context.Background(), models.CollectionParticipants, "Zzz-nonexistent", models.FieldCheckedIn)
	assert.False(t, res.Found)
	assert.Equal(t, pushesBefore, f.cache.pushes)
}

func TestRemotePushFailureStillAdvancesLastSync(t *testing.T) {
	f := newFixture(t)
	f.svc.Bootstrap(context.Background())
	f.remote.pushErr = errors.New("remote rejects write")

	before, _ := f.store.LastSync()
	f.svc.Toggle(context.Background(), models.CollectionParticipants, "Alice", models.FieldCheckedIn)

	after, synced := f.store.LastSync()
	require.True(t, synced)
	assert.Greater(t, after, before)

	// The local cache still holds the latest snapshot.
	cached := f.cache.stored()
	require.NotNil(t, cached)
	assert.True(t, cached.Participants[0].CheckedIn)
}

func TestInboundNewerSnapshotWinsWholesale(t *testing.T) {
	f := newFixture(t)
	f.svc.Bootstrap(context.Background())
	f.svc.Toggle(context.Background(), models.CollectionParticipants, "Alice", models.FieldCheckedIn)

	lastSync, _ := f.store.LastSync()

	// A candidate from another instance, newer, with Alice NOT checked in.
	candidate := models.Snapshot{
		Participants: []models.Person{
			{Fields: map[string]string{models.NameField: "Alice"}},
		},
		Timestamp: lastSync + 100,
	}
	f.svc.HandleInbound(context.Background(), transport.Envelope{Origin: "session-2", Snapshot: candidate})

	// Full replacement, no per-field merge: Alice's local check-in is gone.
	participants, _ := f.store.Search("")
	require.Len(t, participants, 1)
	assert.False(t, participants[0].CheckedIn)

	ts, _ := f.store.LastSync()
	assert.Equal(t, candidate.Timestamp, ts)
}

func TestInboundStaleSnapshotIsKept(t *testing.T) {
	f := newFixture(t)
	f.svc.Bootstrap(context.Background())
	f.svc.Toggle(context.Background(), models.CollectionParticipants, "Alice", models.FieldCheckedIn)

	lastSync, _ := f.store.LastSync()
	stale := models.Snapshot{
		Participants: []models.Person{{Fields: map[string]string{models.NameField: "Alice"}}},
		Timestamp:    lastSync - 1,
	}
	f.svc.HandleInbound(context.Background(), transport.Envelope{Origin: "session-2", Snapshot: stale})

	participants, _ := f.store.Search("alice")
	require.Len(t, participants, 1)
	assert.True(t, participants[0].CheckedIn, "local state must survive a stale candidate")
}

func TestInboundOwnOriginIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.svc.Bootstrap(context.Background())
	lastSync, _ := f.store.LastSync()

	echo := models.Snapshot{Timestamp: lastSync + 1000}
	f.svc.HandleInbound(context.Background(), transport.Envelope{Origin: "session-1", Snapshot: echo})

	participants, _ := f.store.Search("")
	assert.NotEmpty(t, participants, "own echo must not replace the roster")
}

func TestResetClearsEverythingAndFallsBackToCSV(t *testing.T) {
	calls := 0
	f := newFixture(t, WithRosterSource(csvSource(&calls)))
	f.svc.Bootstrap(context.Background())
	f.svc.Toggle(context.Background(), models.CollectionParticipants, "Alice", models.FieldCheckedIn)
	require.Equal(t, 1, calls)

	f.svc.Reset(context.Background())

	assert.Equal(t, 1, f.remote.deletes)
	assert.Equal(t, 2, calls, "re-bootstrap must fall through to CSV")

	participants, _ := f.store.Search("alice")
	require.Len(t, participants, 1)
	assert.False(t, participants[0].CheckedIn, "reset discards local edits")
}

func TestResetSurvivesUnreachableRemote(t *testing.T) {
	calls := 0
	f := newFixture(t, WithRosterSource(csvSource(&calls)))
	f.svc.Bootstrap(context.Background())

	f.remote.deleteErr = errors.New("network unreachable")
	f.remote.pullErr = errors.New("network unreachable")
	f.remote.pushErr = errors.New("network unreachable")

	f.svc.Reset(context.Background())

	assert.True(t, f.store.Loaded())
	// The cache was repopulated by the re-bootstrap push.
	assert.NotNil(t, f.cache.stored())
}

func TestStatus(t *testing.T) {
	f := newFixture(t, WithOnline(func() int { return 3 }))

	st := f.svc.Status()
	assert.Equal(t, "connecting", st.State)
	assert.False(t, st.Loaded)
	assert.Equal(t, 3, st.Online)
	assert.Equal(t, "session-1", st.SessionID)
	assert.Nil(t, st.LastSync)

	f.svc.Bootstrap(context.Background())
	st = f.svc.Status()
	assert.Equal(t, "synced", st.State)
	assert.True(t, st.Loaded)
	require.NotNil(t, st.LastSync)
}

func TestOnlineGaugeTracksSamplerNotStatusReads(t *testing.T) {
	m := syncmetrics.New()
	f := newFixture(t, WithMetrics(m), WithOnline(func() int { return 4 }))

	st := f.svc.Status()
	assert.Equal(t, 4, st.Online)
	assert.Zero(t, testutil.ToFloat64(m.OnlineInstances), "status reads must not move the gauge")

	require.NoError(t, f.svc.Start(context.Background()))
	defer f.svc.Stop()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.OnlineInstances) == 4
	}, time.Second, 10*time.Millisecond)
}

func TestStartAndStopListeners(t *testing.T) {
	f := newFixture(t)
	f.svc.Bootstrap(context.Background())

	inbound := make(chan transport.Handler, 1)
	listener := listenerFunc(func(_ context.Context, fn transport.Handler) (transport.Unsubscribe, error) {
		inbound <- fn
		return func() {}, nil
	})

	svc, err := New(f.store, f.cache, "session-1",
		WithListeners(listener),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	fn := <-inbound
	lastSync, _ := f.store.LastSync()
	fn(transport.Envelope{Origin: "session-2", Snapshot: models.Snapshot{
		Participants: []models.Person{{Fields: map[string]string{models.NameField: "Newcomer"}}},
		Timestamp:    lastSync + 1,
	}})

	participants, _ := f.store.Search("newcomer")
	assert.Len(t, participants, 1)
}

type listenerFunc func(ctx context.Context, fn transport.Handler) (transport.Unsubscribe, error)

func (l listenerFunc) Subscribe(ctx context.Context, fn transport.Handler) (transport.Unsubscribe, error) {
	return l(ctx, fn)
}

// Package store holds the in-memory roster owned by one running instance.
// All mutation goes through Toggle or Replace; cross-instance divergence is
// resolved by the sync layer, never here.
package store

import (
	"strings"
	"sync"
	"time"

	"checkdesk/internal/roster/models"
)

// ToggleResult reports what a Toggle call did. A lookup miss is not an
// error: Found stays false and the roster is untouched.
type ToggleResult struct {
	Found   bool
	Changed bool
	Person  models.Person
}

// InMemory stores the participant and staff collections plus sync
// bookkeeping for one client instance.
type InMemory struct {
	mu           sync.RWMutex
	participants []models.Person
	staff        []models.Person
	lastSync     int64
	synced       bool
	loaded       bool
	now          func() time.Time
}

// Option configures an InMemory store.
type Option func(*InMemory)

// WithClock overrides the clock used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *InMemory) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInMemory creates an empty roster store.
func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current roster with a freshly generated timestamp.
// No side effects.
func (s *InMemory) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Snapshot{
		Participants: models.ClonePeople(s.participants),
		Staff:        models.ClonePeople(s.staff),
		Timestamp:    models.Millis(s.now()),
	}
}

// Replace unconditionally overwrites both collections from the snapshot
// and records its timestamp as the last sync point. The store counts as
// loaded from here on.
func (s *InMemory) Replace(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = models.ClonePeople(snap.Participants)
	s.staff = models.ClonePeople(snap.Staff)
	s.lastSync = snap.Timestamp
	s.synced = true
	s.loaded = true
}

// Toggle flips a boolean field on the first record in the collection whose
// Name matches. A miss is a silent no-op. Shirt handouts additionally
// require the person to be checked in and to actually need a shirt; a
// toggle that violates that reports Found without Changed.
func (s *InMemory) Toggle(collection models.Collection, name string, field models.Field) ToggleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	people := s.collection(collection)
	for i := range people {
		if people[i].Name() != name {
			continue
		}
		p := &people[i]
		switch field {
		case models.FieldCheckedIn:
			p.CheckedIn = !p.CheckedIn
		case models.FieldShirtProvided:
			if !p.CheckedIn || !p.NeedsShirt() {
				return ToggleResult{Found: true, Person: p.Clone()}
			}
			p.ShirtProvided = !p.ShirtProvided
		default:
			return ToggleResult{}
		}
		return ToggleResult{Found: true, Changed: true, Person: p.Clone()}
	}
	return ToggleResult{}
}

// Search returns all records whose Name contains q, case-insensitively.
// An empty query returns everything. Pure read.
func (s *InMemory) Search(q string) (participants, staff []models.Person) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterByName(s.participants, q), filterByName(s.staff, q)
}

// Summary computes the dashboard counters.
func (s *InMemory) Summary() models.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Summarize(s.participants, s.staff)
}

// Clear empties the roster and returns the store to its unloaded state.
// Used by the reset action.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = nil
	s.staff = nil
	s.lastSync = 0
	s.synced = false
	s.loaded = false
}

// SetLastSync records a successful outbound push.
func (s *InMemory) SetLastSync(ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync = ts
	s.synced = true
}

// LastSync returns the last sync timestamp and whether one exists.
func (s *InMemory) LastSync() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync, s.synced
}

// Loaded reports whether a bootstrap has completed.
func (s *InMemory) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *InMemory) collection(c models.Collection) []models.Person {
	if c == models.CollectionStaff {
		return s.staff
	}
	return s.participants
}

func filterByName(people []models.Person, q string) []models.Person {
	if q == "" {
		return models.ClonePeople(people)
	}
	q = strings.ToLower(q)
	var out []models.Person
	for _, p := range people {
		if strings.Contains(strings.ToLower(p.Name()), q) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Package reconcile decides between a locally held snapshot and an
// externally observed one. The policy is last-writer-wins on the whole
// snapshot: collections are replaced in full, never merged field-by-field,
// so concurrent edits between two sync points on different instances are
// discarded in favor of the later write. That window is acceptable for a
// low-contention, operator-supervised desk; anything stronger needs
// per-record versioning.
package reconcile

// Decision is the outcome of comparing a local and a candidate snapshot.
type Decision int

const (
	// KeepLocal means the candidate is stale; take no action.
	KeepLocal Decision = iota
	// AdoptCandidate means the candidate wins; replace both collections.
	AdoptCandidate
)

func (d Decision) String() string {
	if d == AdoptCandidate {
		return "adopt"
	}
	return "keep"
}

// Decide compares the local sync point against a candidate snapshot
// timestamp. The candidate wins when it is strictly newer, or when the
// local side has never synced at all.
func Decide(lastSync int64, synced bool, candidateTimestamp int64) Decision {
	if !synced {
		return AdoptCandidate
	}
	if candidateTimestamp > lastSync {
		return AdoptCandidate
	}
	return KeepLocal
}

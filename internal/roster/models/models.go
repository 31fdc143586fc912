package models

import (
	"strings"
	"time"

	dErrors "checkdesk/pkg/domain-errors"
)

// NameField is the CSV column treated as the de-facto record identifier.
// Uniqueness is expected from the roster source but never enforced; lookups
// scan linearly and act on the first match.
const NameField = "Name"

// shirtNeededField is the CSV column declaring whether a person should
// receive a shirt at the desk.
const shirtNeededField = "Shirt Needed"

// Collection identifies one of the two roster collections.
type Collection string

const (
	CollectionParticipants Collection = "participants"
	CollectionStaff        Collection = "staff"
)

// ParseCollection validates a collection name from an external caller.
func ParseCollection(raw string) (Collection, error) {
	switch Collection(raw) {
	case CollectionParticipants:
		return CollectionParticipants, nil
	case CollectionStaff:
		return CollectionStaff, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown collection: "+raw)
	}
}

// Field identifies a toggleable boolean on a Person.
type Field string

const (
	FieldCheckedIn     Field = "checkedIn"
	FieldShirtProvided Field = "shirtProvided"
)

// ParseField validates a toggleable field name from an external caller.
func ParseField(raw string) (Field, error) {
	switch Field(raw) {
	case FieldCheckedIn:
		return FieldCheckedIn, nil
	case FieldShirtProvided:
		return FieldShirtProvided, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown field: "+raw)
	}
}

// Person is one roster record: the raw CSV fields keyed by header name,
// plus the two booleans the desk controls.
type Person struct {
	Fields        map[string]string `json:"fields"`
	CheckedIn     bool              `json:"checkedIn"`
	ShirtProvided bool              `json:"shirtProvided"`
}

// Name returns the record identifier.
func (p Person) Name() string {
	return p.Fields[NameField]
}

// NeedsShirt reports whether the person should receive a shirt. A missing
// column means yes; only an explicit negative opts out.
func (p Person) NeedsShirt() bool {
	raw, ok := p.Fields[shirtNeededField]
	if !ok {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "no", "n", "false", "0":
		return false
	default:
		return true
	}
}

// Clone returns a deep copy of the person.
func (p Person) Clone() Person {
	fields := make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	return Person{Fields: fields, CheckedIn: p.CheckedIn, ShirtProvided: p.ShirtProvided}
}

// ClonePeople deep-copies a collection.
func ClonePeople(people []Person) []Person {
	if people == nil {
		return nil
	}
	out := make([]Person, len(people))
	for i, p := range people {
		out[i] = p.Clone()
	}
	return out
}

// Snapshot is a complete, timestamped copy of the roster. It is the unit
// of synchronization and persistence; there is no per-record versioning.
type Snapshot struct {
	Participants []Person `json:"participants"`
	Staff        []Person `json:"staff"`
	Timestamp    int64    `json:"timestamp"` // epoch milliseconds
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Participants: ClonePeople(s.Participants),
		Staff:        ClonePeople(s.Staff),
		Timestamp:    s.Timestamp,
	}
}

// Millis converts a time to the epoch-millisecond representation used in
// snapshot timestamps.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Summary holds the computed dashboard counters.
type Summary struct {
	Participants          int `json:"participants"`
	ParticipantsCheckedIn int `json:"participantsCheckedIn"`
	Staff                 int `json:"staff"`
	StaffCheckedIn        int `json:"staffCheckedIn"`
	ShirtsDistributed     int `json:"shirtsDistributed"`
	ShirtsNeeded          int `json:"shirtsNeeded"`
}

// Summarize computes the dashboard counters for a roster.
func Summarize(participants, staff []Person) Summary {
	var s Summary
	s.Participants = len(participants)
	s.Staff = len(staff)
	for _, groups := range [][]Person{participants, staff} {
		for _, p := range groups {
			if p.NeedsShirt() {
				s.ShirtsNeeded++
			}
			if p.ShirtProvided && p.NeedsShirt() {
				s.ShirtsDistributed++
			}
		}
	}
	for _, p := range participants {
		if p.CheckedIn {
			s.ParticipantsCheckedIn++
		}
	}
	for _, p := range staff {
		if p.CheckedIn {
			s.StaffCheckedIn++
		}
	}
	return s
}

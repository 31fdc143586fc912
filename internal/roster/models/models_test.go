package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person(name string, fields map[string]string) Person {
	if fields == nil {
		fields = map[string]string{}
	}
	fields[NameField] = name
	return Person{Fields: fields}
}

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection("participants")
	require.NoError(t, err)
	assert.Equal(t, CollectionParticipants, c)

	c, err = ParseCollection("staff")
	require.NoError(t, err)
	assert.Equal(t, CollectionStaff, c)

	_, err = ParseCollection("volunteers")
	require.Error(t, err)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("checkedIn")
	require.NoError(t, err)
	assert.Equal(t, FieldCheckedIn, f)

	f, err = ParseField("shirtProvided")
	require.NoError(t, err)
	assert.Equal(t, FieldShirtProvided, f)

	_, err = ParseField("vip")
	require.Error(t, err)
}

func TestNeedsShirt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"explicit yes", "Yes", true},
		{"explicit no", "No", false},
		{"lowercase no", "no", false},
		{"false", "FALSE", false},
		{"zero", "0", false},
		{"padded no", "  no ", false},
		{"empty value", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := person("Alice", map[string]string{"Shirt Needed": tt.value})
			assert.Equal(t, tt.want, p.NeedsShirt())
		})
	}

	t.Run("missing column means shirt needed", func(t *testing.T) {
		assert.True(t, person("Bob", nil).NeedsShirt())
	})
}

func TestCloneIsDeep(t *testing.T) {
	original := person("Alice", map[string]string{"City/State": "Austin, TX"})
	copied := original.Clone()
	copied.Fields["City/State"] = "Dallas, TX"
	copied.CheckedIn = true

	assert.Equal(t, "Austin, TX", original.Fields["City/State"])
	assert.False(t, original.CheckedIn)
}

func TestSummarize(t *testing.T) {
	participants := []Person{
		{Fields: map[string]string{NameField: "Alice"}, CheckedIn: true, ShirtProvided: true},
		{Fields: map[string]string{NameField: "Bob"}},
	}
	staff := []Person{
		{Fields: map[string]string{NameField: "Carol", "Shirt Needed": "No"}, CheckedIn: true, ShirtProvided: true},
	}

	s := Summarize(participants, staff)
	assert.Equal(t, 2, s.Participants)
	assert.Equal(t, 1, s.ParticipantsCheckedIn)
	assert.Equal(t, 1, s.Staff)
	assert.Equal(t, 1, s.StaffCheckedIn)
	// Carol needs no shirt, so her pre-set shirtProvided does not count.
	assert.Equal(t, 1, s.ShirtsDistributed)
	assert.Equal(t, 2, s.ShirtsNeeded)
}

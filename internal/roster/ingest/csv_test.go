package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkdesk/internal/roster/models"
	dErrors "checkdesk/pkg/domain-errors"
)

const participantsCSV = `Name,T-Shirt Size,City/State
Alice,M,"Austin, TX"
Bob,L,"Dallas, TX"
`

const staffCSV = `Name,Shirt Needed,Shirt Size
Carol,No,
Dave,Yes,XL
`

func TestPeopleDefaults(t *testing.T) {
	people, err := People(strings.NewReader(participantsCSV), models.CollectionParticipants)
	require.NoError(t, err)
	require.Len(t, people, 2)

	assert.Equal(t, "Alice", people[0].Name())
	assert.Equal(t, "Austin, TX", people[0].Fields["City/State"])
	assert.False(t, people[0].CheckedIn)
	assert.False(t, people[0].ShirtProvided)
}

func TestPeopleStaffShirtDefault(t *testing.T) {
	staff, err := People(strings.NewReader(staffCSV), models.CollectionStaff)
	require.NoError(t, err)
	require.Len(t, staff, 2)

	// Carol needs no shirt, so she is pre-marked as provided.
	assert.True(t, staff[0].ShirtProvided)
	assert.False(t, staff[1].ShirtProvided)
}

func TestPeopleIdempotent(t *testing.T) {
	first, err := People(strings.NewReader(participantsCSV), models.CollectionParticipants)
	require.NoError(t, err)
	second, err := People(strings.NewReader(participantsCSV), models.CollectionParticipants)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPeopleShortRow(t *testing.T) {
	people, err := People(strings.NewReader("Name,Shirt Size\nEve\n"), models.CollectionParticipants)
	require.NoError(t, err)
	require.Len(t, people, 1)

	assert.Equal(t, "Eve", people[0].Name())
	_, present := people[0].Fields["Shirt Size"]
	assert.False(t, present)
}

func TestPeopleEmptyDocument(t *testing.T) {
	_, err := People(strings.NewReader(""), models.CollectionParticipants)
	require.Error(t, err)
}

func TestPeopleMalformedRowCarriesInvalidInputCode(t *testing.T) {
	_, err := People(strings.NewReader("Name\n\"unterminated\n"), models.CollectionParticipants)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestFromFilesMissing(t *testing.T) {
	_, _, err := FromFiles("does-not-exist.csv", "also-missing.csv")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable),
		"an unreadable roster file is an availability failure, not a parse failure")
}

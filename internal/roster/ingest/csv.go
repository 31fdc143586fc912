// Package ingest loads roster collections from CSV files. The header row
// defines the field names; every data row becomes one Person with the desk
// booleans applied at their defaults.
package ingest

import (
	"encoding/csv"
	"io"
	"os"

	"checkdesk/internal/roster/models"
	dErrors "checkdesk/pkg/domain-errors"
)

// People parses a CSV document into roster records. checkedIn always
// defaults to false. Staff who need no shirt are marked shirtProvided at
// ingestion so they never show up as pending handouts.
func People(r io.Reader, collection models.Collection) ([]models.Person, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "read csv header")
	}

	var people []models.Person
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "read csv row")
		}

		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				fields[name] = row[i]
			}
		}

		p := models.Person{Fields: fields}
		if collection == models.CollectionStaff && !p.NeedsShirt() {
			p.ShirtProvided = true
		}
		people = append(people, p)
	}
	return people, nil
}

// FromFiles loads the participant and staff rosters from disk.
func FromFiles(participantsPath, staffPath string) (participants, staff []models.Person, err error) {
	participants, err = fromFile(participantsPath, models.CollectionParticipants)
	if err != nil {
		return nil, nil, err
	}
	staff, err = fromFile(staffPath, models.CollectionStaff)
	if err != nil {
		return nil, nil, err
	}
	return participants, staff, nil
}

func fromFile(path string, collection models.Collection) ([]models.Person, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "open roster csv "+path)
	}
	defer f.Close() //nolint:errcheck // read-only file

	people, err := People(f, collection)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse "+path)
	}
	return people, nil
}

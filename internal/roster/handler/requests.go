package handler

import (
	"strings"

	"checkdesk/internal/roster/models"
	dErrors "checkdesk/pkg/domain-errors"
)

// ToggleRequest identifies the person whose boolean field to flip.
type ToggleRequest struct {
	Name string `json:"name"`
}

func (r *ToggleRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	return nil
}

// ResetRequest guards the irreversible reset behind explicit confirmation.
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

// RosterResponse carries both collections.
type RosterResponse struct {
	Participants []models.Person `json:"participants"`
	Staff        []models.Person `json:"staff"`
}

// ToggleResponse reports what a toggle did. Found=false means the name
// matched nobody and the roster is unchanged; that is not an error.
type ToggleResponse struct {
	Found   bool           `json:"found"`
	Applied bool           `json:"applied"`
	Person  *models.Person `json:"person,omitempty"`
}

// ExportReport is the downloadable JSON document.
type ExportReport struct {
	ExportID     string          `json:"exportId"`
	ExportedAt   string          `json:"exportedAt"`
	Participants []models.Person `json:"participants"`
	Staff        []models.Person `json:"staff"`
	Summary      models.Summary  `json:"summary"`
}

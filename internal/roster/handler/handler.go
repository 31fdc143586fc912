package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	rostermetrics "checkdesk/internal/roster/metrics"
	"checkdesk/internal/roster/models"
	"checkdesk/internal/roster/store"
	syncservice "checkdesk/internal/sync/service"
	dErrors "checkdesk/pkg/domain-errors"
	"checkdesk/pkg/platform/httputil"
)

// SyncService is the slice of the synchronization component the HTTP
// layer drives. It dispatches toggle and reset intents; reads come from
// the roster store directly.
type SyncService interface {
	Toggle(ctx context.Context, collection models.Collection, name string, field models.Field) store.ToggleResult
	Reset(ctx context.Context)
	Status() syncservice.Status
}

// RosterReader is the read-only roster view consumed by the dashboard.
type RosterReader interface {
	Search(q string) (participants, staff []models.Person)
	Summary() models.Summary
}

type Handler struct {
	sync    SyncService
	roster  RosterReader
	metrics *rostermetrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func New(sync SyncService, roster RosterReader, metrics *rostermetrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		sync:    sync,
		roster:  roster,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/roster", h.HandleGetRoster)
	r.Get("/roster/summary", h.HandleGetSummary)
	r.Get("/roster/export", h.HandleExport)
	r.Post("/roster/{collection}/check-in", h.HandleCheckIn)
	r.Post("/roster/{collection}/shirt", h.HandleShirt)
	r.Post("/admin/reset", h.HandleReset)
	r.Get("/sync/status", h.HandleSyncStatus)
}

// HandleGetRoster returns both collections, optionally filtered by a
// case-insensitive substring match on Name (?q=).
func (h *Handler) HandleGetRoster(w http.ResponseWriter, r *http.Request) {
	participants, staff := h.roster.Search(r.URL.Query().Get("q"))
	httputil.WriteJSON(w, http.StatusOK, RosterResponse{
		Participants: emptyIfNil(participants),
		Staff:        emptyIfNil(staff),
	})
}

// HandleGetSummary returns the computed dashboard counters.
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.roster.Summary())
}

// HandleCheckIn toggles a person's checked-in state.
func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.FieldCheckedIn)
}

// HandleShirt toggles a person's shirt-distribution state. The store
// rejects the flip unless the person is checked in and needs a shirt; the
// response reports applied=false in that case rather than erroring.
func (h *Handler) HandleShirt(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.FieldShirtProvided)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, field models.Field) {
	ctx := r.Context()

	collection, err := models.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeJSON[ToggleRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res := h.sync.Toggle(ctx, collection, req.Name, field)
	if res.Changed && h.metrics != nil {
		switch field {
		case models.FieldCheckedIn:
			h.metrics.IncrementCheckIn(string(collection))
		case models.FieldShirtProvided:
			h.metrics.IncrementShirtGiven()
		}
	}

	resp := ToggleResponse{Found: res.Found, Applied: res.Changed}
	if res.Found {
		resp.Person = &res.Person
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleExport streams a downloadable JSON report: the full roster, the
// computed summary, and an export timestamp.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	participants, staff := h.roster.Search("")
	exportedAt := h.now().UTC()

	report := ExportReport{
		ExportID:     uuid.NewString(),
		ExportedAt:   exportedAt.Format(time.RFC3339),
		Participants: emptyIfNil(participants),
		Staff:        emptyIfNil(staff),
		Summary:      h.roster.Summary(),
	}

	filename := fmt.Sprintf("checkdesk-export-%s.json", exportedAt.Format("20060102-150405"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleReset irreversibly clears all roster data. The request must carry
// an explicit confirmation.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[ResetRequest](w, r, h.logger)
	if !ok {
		return
	}
	if !req.Confirm {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "reset requires confirmation"))
		return
	}

	h.logger.InfoContext(ctx, "full data reset requested")
	h.sync.Reset(ctx)
	if h.metrics != nil {
		h.metrics.IncrementReset()
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleSyncStatus returns the ambient sync indicator the dashboard polls.
func (h *Handler) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.sync.Status())
}

func emptyIfNil(people []models.Person) []models.Person {
	if people == nil {
		return []models.Person{}
	}
	return people
}

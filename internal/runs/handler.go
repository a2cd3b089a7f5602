package runs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/internal/aggregate"
	"github.com/pencilops/gradeflow/internal/workflow"
	"github.com/pencilops/gradeflow/pkg/handlers"
	"github.com/pencilops/gradeflow/pkg/pagination"
	"github.com/pencilops/gradeflow/pkg/routes"
	"github.com/pencilops/gradeflow/pkg/state"
)

// Handler provides HTTP endpoints for workflow run operations, including
// the server-sent-events progress stream.
type Handler struct {
	engine     *workflow.Engine
	store      *Store
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler over the engine and run store.
func NewHandler(
	engine *workflow.Engine,
	store *Store,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		engine:     engine,
		store:      store,
		logger:     logger.With("handler", "runs"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for run endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Submit},
			{Method: "GET", Pattern: "/{id}", Handler: h.Status},
			{Method: "POST", Pattern: "/{id}/resume", Handler: h.Resume},
			{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
			{Method: "GET", Pattern: "/{id}/events", Handler: h.Events},
			{Method: "GET", Pattern: "/{id}/summary", Handler: h.Summary},
		},
	}
}

// List returns a paginated list of runs with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.store.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Submit accepts an intake payload, starts a new run, and returns its id.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var intake workflow.Intake
	if err := json.NewDecoder(r.Body).Decode(&intake); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, workflow.ErrInvalidIntake)
		return
	}

	id, err := h.engine.Submit(r.Context(), intake)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, map[string]uuid.UUID{"id": id})
}

// Status returns the full checkpointed run record.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	run, err := h.engine.Status(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, run)
}

// Resume resolves a suspended review gate with the posted decision.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var decision workflow.Decision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, workflow.ErrInvalidDecision)
		return
	}

	run, err := h.engine.Resume(r.Context(), id, decision)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, run)
}

// Cancel requests cooperative cancellation of the run.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.engine.Cancel(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Events streams the run's progress as server-sent events. A joining client
// first receives a snapshot of the current run record, then live events in
// sequence order until the run terminates or the client disconnects.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, ErrStreamingUnsupported)
		return
	}

	// Subscribe before snapshotting so no event between the two is lost;
	// the sequence numbers let the client discard any overlap.
	events, cancel := h.engine.Subscribe(id)
	defer cancel()

	run, err := h.engine.Status(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSE(w, "snapshot", run)
	flusher.Flush()

	if run.Status.Terminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			writeSSE(w, string(event.Kind), event)
			flusher.Flush()
		}
	}
}

// Summary returns the aggregated class summary for a completed run.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	run, err := h.engine.Status(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	report, err := state.Get[aggregate.Report](run.State, workflow.KeyReport)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusConflict, ErrNoSummary)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report.Summary)
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

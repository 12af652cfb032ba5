package server

import (
	"net/http"

	"github.com/samber/mo"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/schedule"
	"github.com/cyp0633/planner/server/storage"
)

// taskBody is the wire form of a persisted task. It reuses the occurrence
// wire shape with virtual always false.
func taskBody(t *storage.Task) schedule.WireOccurrence {
	return schedule.Real(t).Wire()
}

func wireOccurrences(occs []schedule.Occurrence) []schedule.WireOccurrence {
	out := make([]schedule.WireOccurrence, len(occs))
	for i, o := range occs {
		out[i] = o.Wire()
	}
	return out
}

// handleListTasks expands the occurrences of a date range:
// GET /api/tasks?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		h.writeErrorMessage(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}
	start, err := dateutil.ParseISO(q.Get("start"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	end, err := dateutil.ParseISO(q.Get("end"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	occs, err := h.engine.ExpandRange(r.Context(), h.principal(r), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"tasks": wireOccurrences(occs)})
}

// handleListDay expands the occurrences of a single day:
// GET /api/tasks/{date}
func (h *Handler) handleListDay(w http.ResponseWriter, r *http.Request) {
	date, err := dateutil.ParseISO(r.PathValue("date"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	occs, err := h.engine.ExpandDay(r.Context(), h.principal(r), date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"tasks": wireOccurrences(occs)})
}

// handleCreateTask creates a manual task: POST /api/tasks
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
		Text string `json:"text"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	if !validText(req.Text) {
		h.writeErrorMessage(w, http.StatusBadRequest, "text must be 1-300 characters")
		return
	}
	date, err := dateutil.ParseISO(req.Date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	task := &storage.Task{
		UserID: h.principal(r),
		Date:   date,
		Text:   req.Text,
	}
	if err := h.tasks.CreateTask(r.Context(), task); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"task": taskBody(task)})
}

// handleMaterialize promotes a virtual occurrence into a real task:
// POST /api/tasks/materialize
func (h *Handler) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecurringID string  `json:"recurringId"`
		Date        string  `json:"date"`
		Done        bool    `json:"done"`
		Text        *string `json:"text"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.RecurringID == "" {
		h.writeErrorMessage(w, http.StatusBadRequest, "recurringId is required")
		return
	}
	date, err := dateutil.ParseISO(req.Date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	task, err := h.engine.Materialize(r.Context(), h.principal(r), req.RecurringID, date, req.Done, mo.PointerToOption(req.Text))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"task": taskBody(task)})
}

// handleUpdateTask edits text and/or toggles done: PATCH /api/tasks/{id}
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
		Done *bool   `json:"done"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Text != nil && !validText(*req.Text) {
		h.writeErrorMessage(w, http.StatusBadRequest, "text must be 1-300 characters")
		return
	}

	patch := storage.TaskPatch{
		Text: mo.PointerToOption(req.Text),
		Done: mo.PointerToOption(req.Done),
	}
	task, err := h.tasks.UpdateTask(r.Context(), h.principal(r), r.PathValue("id"), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"task": taskBody(task)})
}

// handleDeleteTask removes a task: DELETE /api/tasks/{id}
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.DeleteTask(r.Context(), h.principal(r), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

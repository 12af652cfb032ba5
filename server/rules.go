package server

import (
	"net/http"

	"github.com/samber/mo"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/storage"
)

type ruleBody struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Weekday   int     `json:"weekday"`
	StartDate string  `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

func toRuleBody(r *storage.Rule) ruleBody {
	b := ruleBody{
		ID:        r.ID,
		Text:      r.Text,
		Weekday:   r.Weekday,
		StartDate: r.Start.String(),
	}
	if end, ok := r.End.Get(); ok {
		s := end.String()
		b.EndDate = &s
	}
	return b
}

// handleListRules lists the caller's rules, newest first: GET /api/recurring
func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListRules(r.Context(), h.principal(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	bodies := make([]ruleBody, len(rules))
	for i, rule := range rules {
		bodies[i] = toRuleBody(rule)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"rules": bodies})
}

// handleCreateRule creates a weekly rule: POST /api/recurring
func (h *Handler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text      string  `json:"text"`
		Weekday   int     `json:"weekday"`
		StartDate string  `json:"startDate"`
		EndDate   *string `json:"endDate"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	if !validText(req.Text) {
		h.writeErrorMessage(w, http.StatusBadRequest, "text must be 1-300 characters")
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		h.writeErrorMessage(w, http.StatusBadRequest, "weekday must be 0 (Sunday) to 6 (Saturday)")
		return
	}
	start, err := dateutil.ParseISO(req.StartDate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	end := mo.None[dateutil.Date]()
	if req.EndDate != nil && *req.EndDate != "" {
		e, err := dateutil.ParseISO(*req.EndDate)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if e.Before(start) {
			h.writeErrorMessage(w, http.StatusBadRequest, "endDate must not be before startDate")
			return
		}
		end = mo.Some(e)
	}

	rule := &storage.Rule{
		UserID:  h.principal(r),
		Text:    req.Text,
		Weekday: req.Weekday,
		Start:   start,
		End:     end,
	}
	if err := h.rules.CreateRule(r.Context(), rule); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"rule": toRuleBody(rule)})
}

// handleDeleteRule removes a rule; its materialized tasks live on as
// ordinary tasks: DELETE /api/recurring/{id}
func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.DeleteRule(r.Context(), h.principal(r), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

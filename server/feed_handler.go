package server

import (
	"net/http"
	"time"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/feed"
)

// feedWindowDays bounds how far back and forward single tasks appear in
// the exported calendar. Rules carry their own RRULE and need no window.
const feedWindowDays = 366

// handleFeed exports the caller's rules and tasks as iCalendar:
// GET /api/feed.ics
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	owner := h.principal(r)

	rules, err := h.rules.ListRules(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}

	today := dateutil.FromTime(time.Now())
	tasks, err := h.tasks.FindTasksInRange(r.Context(), owner,
		today.AddDays(-feedWindowDays), today.AddDays(feedWindowDays))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set(headerContentType, mimeTypeCalendar)
	if err := feed.Encode(w, rules, tasks); err != nil {
		h.logger.Error("failed to encode feed", "error", err)
	}
}

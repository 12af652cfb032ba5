// Package schedule merges persisted tasks with the virtual occurrences
// generated by weekly recurrence rules, and promotes virtual occurrences
// into persisted rows on demand.
package schedule

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/storage"
)

// defaultMaxRangeDays bounds a single expansion query. A year of daily
// enumeration per rule is the realistic upper bound for calendar views.
const defaultMaxRangeDays = 366

// Engine expands recurrence rules over date ranges and materializes
// virtual occurrences. The expansion itself is a pure function over the
// rules and tasks passed to it; the Engine only adds store access on top.
type Engine struct {
	rules        storage.RuleStore
	tasks        storage.TaskStore
	logger       *slog.Logger
	maxRangeDays int
}

// Option represents a configuration option for the Engine
type Option func(*Engine)

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxRangeDays overrides the maximum queryable range length.
func WithMaxRangeDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.maxRangeDays = days
		}
	}
}

// NewEngine creates a new expansion engine on top of the given stores.
func NewEngine(rules storage.RuleStore, tasks storage.TaskStore, opts ...Option) *Engine {
	e := &Engine{
		rules:        rules,
		tasks:        tasks,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxRangeDays: defaultMaxRangeDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// slotKey identifies one (rule, date) pair. A slot is occupied when a real
// task row exists for it, which suppresses virtual generation.
func slotKey(ruleID string, date dateutil.Date) string {
	return ruleID + "|" + date.String()
}

// Expand computes the merged, deduplicated, date-ordered occurrence list
// for ownerID over [start, end] from the given rules and tasks. Inputs
// belonging to other owners are ignored. The result starts with every real
// task in the range; each rule then contributes a virtual occurrence for
// every covered date whose slot is not already occupied by a real row.
// Ordering is a stable sort on date alone.
func Expand(ownerID string, start, end dateutil.Date, rules []*storage.Rule, tasks []*storage.Task) ([]Occurrence, error) {
	dates, err := dateutil.Between(start, end)
	if err != nil {
		return nil, &Error{
			Type:    ErrInvalidRange,
			Message: fmt.Sprintf("cannot expand %s..%s", start, end),
			Err:     err,
		}
	}

	occupied := make(map[string]struct{})
	for _, t := range tasks {
		if t.UserID == ownerID && t.FromRule != "" {
			occupied[slotKey(t.FromRule, t.Date)] = struct{}{}
		}
	}

	result := make([]Occurrence, 0, len(tasks))
	for _, t := range tasks {
		if t.UserID != ownerID || t.Date.Before(start) || t.Date.After(end) {
			continue
		}
		result = append(result, Real(t))
	}

	for _, r := range rules {
		if r.UserID != ownerID || !r.ActiveIn(start, end) {
			continue
		}
		for d := range dates {
			if !r.Covers(d) {
				continue
			}
			if _, ok := occupied[slotKey(r.ID, d)]; ok {
				continue
			}
			result = append(result, Virtual(r, d))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].date.Before(result[j].date)
	})

	return result, nil
}

// ExpandRange queries both stores and expands ownerID's occurrences over
// [start, end].
func (e *Engine) ExpandRange(ctx context.Context, ownerID string, start, end dateutil.Date) ([]Occurrence, error) {
	if err := dateutil.ValidateRange(start, end); err != nil {
		return nil, &Error{
			Type:    ErrInvalidRange,
			Message: fmt.Sprintf("cannot expand %s..%s", start, end),
			Err:     err,
		}
	}
	if days := start.DaysUntil(end) + 1; days > e.maxRangeDays {
		return nil, &Error{
			Type:    ErrInvalidRange,
			Message: fmt.Sprintf("range of %d days exceeds the %d-day limit", days, e.maxRangeDays),
		}
	}

	rules, err := e.rules.FindRulesActiveInRange(ctx, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("find active rules: %w", err)
	}
	tasks, err := e.tasks.FindTasksInRange(ctx, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("find tasks in range: %w", err)
	}

	occurrences, err := Expand(ownerID, start, end, rules, tasks)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("expanded range",
		"owner", ownerID,
		"start", start.String(),
		"end", end.String(),
		"rules", len(rules),
		"tasks", len(tasks),
		"occurrences", len(occurrences))

	return occurrences, nil
}

// ExpandDay is the single-date form of ExpandRange, used by day views.
func (e *Engine) ExpandDay(ctx context.Context, ownerID string, date dateutil.Date) ([]Occurrence, error) {
	return e.ExpandRange(ctx, ownerID, date, date)
}

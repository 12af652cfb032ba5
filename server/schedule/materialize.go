package schedule

import (
	"context"
	"fmt"

	"github.com/samber/mo"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/storage"
)

// Materialize promotes the virtual occurrence of ruleID on date into a
// persisted task owned by ownerID. The rule must exist and belong to
// ownerID. The task's text is the override when present and non-empty,
// else the rule's text.
//
// Materialize is an idempotent upsert: the store rejects a second row for
// an occupied (rule, date) slot, and this function answers such a conflict
// by returning the already-materialized task. Two raced calls for the same
// occurrence therefore converge on one row.
func (e *Engine) Materialize(ctx context.Context, ownerID, ruleID string, date dateutil.Date, done bool, textOverride mo.Option[string]) (*storage.Task, error) {
	rule, err := e.rules.GetRule(ctx, ownerID, ruleID)
	if err != nil {
		if storage.IsType(err, storage.ErrNotFound) {
			return nil, &Error{
				Type:    ErrNotFound,
				Message: fmt.Sprintf("rule %s not found for this user", ruleID),
				Err:     err,
			}
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}

	text := rule.Text
	if override, ok := textOverride.Get(); ok && override != "" {
		text = override
	}

	task := &storage.Task{
		UserID:   ownerID,
		Date:     date,
		Text:     text,
		Done:     done,
		FromRule: rule.ID,
	}
	err = e.tasks.CreateTask(ctx, task)
	if err == nil {
		e.logger.Debug("materialized occurrence",
			"owner", ownerID,
			"rule", rule.ID,
			"date", date.String(),
			"task", task.ID)
		return task, nil
	}
	if !storage.IsType(err, storage.ErrAlreadyExists) {
		return nil, fmt.Errorf("create task: %w", err)
	}

	// Lost a race (or repeated call) for this slot; hand back the row that won.
	existing, lookupErr := e.tasks.FindTaskBySlot(ctx, ownerID, rule.ID, date)
	if lookupErr != nil {
		return nil, &Error{
			Type:    ErrDuplicateOccurrence,
			Message: fmt.Sprintf("occurrence of rule %s on %s already materialized but could not be read back", rule.ID, date),
			Err:     lookupErr,
		}
	}

	e.logger.Debug("materialize hit occupied slot, returning existing task",
		"owner", ownerID,
		"rule", rule.ID,
		"date", date.String(),
		"task", existing.ID)

	return existing, nil
}

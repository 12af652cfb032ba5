// Package storage defines the persistence contracts of the planner. The
// expansion engine and the HTTP layer only ever see these interfaces; the
// memory and sqlite sub-packages are interchangeable implementations.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/planner/internal/dateutil"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// IsType reports whether err is a storage Error of the given type.
func IsType(err error, t ErrorType) bool {
	serr, ok := err.(*Error)
	return ok && serr.Type == t
}

// Rule is a weekly recurrence rule: one weekday, an inclusive active window,
// and the text every generated occurrence starts with. Rules are immutable
// after creation; the only mutation is deletion, which stops virtual
// generation but leaves already-materialized tasks untouched.
type Rule struct {
	ID      string
	UserID  string
	Text    string
	Weekday int // 0=Sunday .. 6=Saturday
	Start   dateutil.Date
	// End is the inclusive last date the rule may produce an occurrence.
	// Absent means unbounded.
	End     mo.Option[dateutil.Date]
	Created time.Time
}

// ActiveIn reports whether the rule's window intersects [start, end].
func (r *Rule) ActiveIn(start, end dateutil.Date) bool {
	if r.Start.After(end) {
		return false
	}
	if e, ok := r.End.Get(); ok && e.Before(start) {
		return false
	}
	return true
}

// Covers reports whether the rule may produce an occurrence on d: the
// weekday matches and d lies inside the active window.
func (r *Rule) Covers(d dateutil.Date) bool {
	if d.Weekday() != r.Weekday || d.Before(r.Start) {
		return false
	}
	if e, ok := r.End.Get(); ok && d.After(e) {
		return false
	}
	return true
}

// Task is one concrete, independently editable task row on one calendar
// date. FromRule links it to the rule that spawned it; empty for manual
// tasks. For a given (UserID, FromRule, Date) with non-empty FromRule at
// most one Task may exist.
type Task struct {
	ID       string
	UserID   string
	Date     dateutil.Date
	Text     string
	Done     bool
	FromRule string
	Created  time.Time
	Modified time.Time
}

// TaskPatch carries the mutable fields for UpdateTask. Absent fields are
// left unchanged.
type TaskPatch struct {
	Text mo.Option[string]
	Done mo.Option[bool]
}

// RuleStore persists recurrence rules, scoped per owning user.
type RuleStore interface {
	// ListRules retrieves every rule owned by userID, newest first.
	ListRules(ctx context.Context, userID string) ([]*Rule, error)
	// GetRule finds one rule by id. Returns ErrNotFound when the rule is
	// absent or owned by a different user.
	GetRule(ctx context.Context, userID, ruleID string) (*Rule, error)
	// FindRulesActiveInRange retrieves the rules whose active window
	// intersects [start, end].
	FindRulesActiveInRange(ctx context.Context, userID string, start, end dateutil.Date) ([]*Rule, error)
	// CreateRule stores a new rule. The implementation assigns ID and
	// Created.
	CreateRule(ctx context.Context, rule *Rule) error
	// DeleteRule removes a rule. Tasks materialized from it are not
	// touched; their FromRule simply dangles from then on.
	DeleteRule(ctx context.Context, userID, ruleID string) error
}

// TaskStore persists concrete task rows, scoped per owning user.
//
// Implementations must treat (UserID, FromRule, Date) as a unique key for
// rows with a non-empty FromRule and return ErrAlreadyExists from CreateTask
// when the slot is occupied. The engine relies on this to keep materialize
// idempotent under races.
type TaskStore interface {
	// FindTasksInRange retrieves tasks with a date in [start, end],
	// ordered by date then creation time.
	FindTasksInRange(ctx context.Context, userID string, start, end dateutil.Date) ([]*Task, error)
	// FindTasksOn retrieves the tasks on a single date, in creation order.
	FindTasksOn(ctx context.Context, userID string, date dateutil.Date) ([]*Task, error)
	// GetTask finds one task by id. Returns ErrNotFound when absent or
	// owned by a different user.
	GetTask(ctx context.Context, userID, taskID string) (*Task, error)
	// FindTaskBySlot finds the task materialized from ruleID on date, if
	// any. Returns ErrNotFound when the slot is free.
	FindTaskBySlot(ctx context.Context, userID, ruleID string, date dateutil.Date) (*Task, error)
	// CreateTask stores a new task. The implementation assigns ID,
	// Created and Modified. Returns ErrAlreadyExists when the task's
	// (FromRule, Date) slot is already occupied.
	CreateTask(ctx context.Context, task *Task) error
	// UpdateTask applies patch to a task and returns the updated row.
	UpdateTask(ctx context.Context, userID, taskID string, patch TaskPatch) (*Task, error)
	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, userID, taskID string) error
}

package schedule

import (
	"fmt"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/storage"
)

// ErrorType represents the type of scheduling error
type ErrorType string

const (
	ErrInvalidRange        ErrorType = "invalid_range"
	ErrNotFound            ErrorType = "not_found"
	ErrDuplicateOccurrence ErrorType = "duplicate_occurrence"
)

// Error represents a scheduling-related error
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

// virtualIDPrefix namespaces derived occurrence ids. Real task ids are
// uuids, so the prefix cannot collide with them.
const virtualIDPrefix = "recurring:"

// Occurrence is one scheduled appearance of a task on one calendar date.
// It is a tagged variant: either real, wrapping a persisted task verbatim,
// or virtual, synthesized from a rule for a date that has no row yet.
// Occurrences are computed per query and never stored.
type Occurrence struct {
	task *storage.Task // set for real occurrences
	rule *storage.Rule // set for virtual occurrences
	date dateutil.Date
}

// Real wraps a persisted task as an occurrence.
func Real(task *storage.Task) Occurrence {
	return Occurrence{task: task, date: task.Date}
}

// Virtual synthesizes a not-yet-materialized occurrence of rule on date.
func Virtual(rule *storage.Rule, date dateutil.Date) Occurrence {
	return Occurrence{rule: rule, date: date}
}

// IsVirtual reports whether the occurrence has no backing task row.
func (o Occurrence) IsVirtual() bool { return o.task == nil }

// Date returns the occurrence's calendar date.
func (o Occurrence) Date() dateutil.Date { return o.date }

// Text returns the task text, or the rule text for virtual occurrences.
func (o Occurrence) Text() string {
	if o.task != nil {
		return o.task.Text
	}
	return o.rule.Text
}

// Done reports completion. Virtual occurrences are never done.
func (o Occurrence) Done() bool {
	return o.task != nil && o.task.Done
}

// RuleID returns the id of the rule the occurrence descends from, or ""
// for purely manual tasks.
func (o Occurrence) RuleID() string {
	if o.task != nil {
		return o.task.FromRule
	}
	return o.rule.ID
}

// Task returns the backing task row of a real occurrence.
func (o Occurrence) Task() (*storage.Task, bool) {
	return o.task, o.task != nil
}

// WireOccurrence is the serialized form handed to callers.
type WireOccurrence struct {
	ID            string  `json:"id"`
	Date          string  `json:"date"`
	Text          string  `json:"text"`
	Done          bool    `json:"done"`
	FromRecurring *string `json:"fromRecurring"`
	Virtual       bool    `json:"virtual"`
}

// Wire derives the caller-facing representation. The id of a virtual
// occurrence is a deterministic composite of rule id and date, derived
// here and nowhere else.
func (o Occurrence) Wire() WireOccurrence {
	w := WireOccurrence{
		Date:    o.date.String(),
		Text:    o.Text(),
		Done:    o.Done(),
		Virtual: o.IsVirtual(),
	}
	if o.task != nil {
		w.ID = o.task.ID
	} else {
		w.ID = fmt.Sprintf("%s%s:%s", virtualIDPrefix, o.rule.ID, o.date)
	}
	if ruleID := o.RuleID(); ruleID != "" {
		w.FromRecurring = &ruleID
	}
	return w
}

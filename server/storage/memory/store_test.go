package memory

import (
	"context"
	"testing"

	"github.com/samber/mo"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/storage"
)

func TestStore_Rules(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Test getting non-existent rule
	_, err := store.GetRule(ctx, "alice", "nonexistent")
	if err == nil {
		t.Error("expected error getting non-existent rule")
	} else if err.(*storage.Error).Type != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rule := &storage.Rule{
		UserID:  "alice",
		Text:    "Gym",
		Weekday: 1,
		Start:   dateutil.MustParseISO("2024-01-01"),
	}
	if err := store.CreateRule(ctx, rule); err != nil {
		t.Fatalf("unexpected error creating rule: %v", err)
	}
	if rule.ID == "" {
		t.Error("expected CreateRule to assign an id")
	}

	// Test getting existing rule
	got, err := store.GetRule(ctx, "alice", rule.ID)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Text != "Gym" || got.Weekday != 1 {
		t.Errorf("got rule %+v, want text=Gym weekday=1", got)
	}

	// Ownership: another user must not see the rule
	if _, err := store.GetRule(ctx, "bob", rule.ID); err == nil {
		t.Error("expected error getting rule as wrong user")
	}

	// Test listing rules
	rules, err := store.ListRules(ctx, "alice")
	if err != nil {
		t.Errorf("unexpected error listing rules: %v", err)
	}
	if len(rules) != 1 {
		t.Errorf("got %d rules, want 1", len(rules))
	}

	// Test deleting rule
	if err := store.DeleteRule(ctx, "alice", rule.ID); err != nil {
		t.Errorf("unexpected error deleting rule: %v", err)
	}
	if _, err := store.GetRule(ctx, "alice", rule.ID); err == nil {
		t.Error("expected error getting deleted rule")
	}
}

func TestStore_FindRulesActiveInRange(t *testing.T) {
	store := New()
	ctx := context.Background()

	bounded := &storage.Rule{
		UserID:  "alice",
		Text:    "Standup",
		Weekday: 2,
		Start:   dateutil.MustParseISO("2024-01-01"),
		End:     mo.Some(dateutil.MustParseISO("2024-01-31")),
	}
	unbounded := &storage.Rule{
		UserID:  "alice",
		Text:    "Gym",
		Weekday: 1,
		Start:   dateutil.MustParseISO("2024-03-01"),
	}
	for _, r := range []*storage.Rule{bounded, unbounded} {
		if err := store.CreateRule(ctx, r); err != nil {
			t.Fatalf("unexpected error creating rule: %v", err)
		}
	}

	// Range before both windows
	rules, err := store.FindRulesActiveInRange(ctx, "alice",
		dateutil.MustParseISO("2023-01-01"), dateutil.MustParseISO("2023-12-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("got %d rules, want 0", len(rules))
	}

	// Range covering only the bounded rule
	rules, _ = store.FindRulesActiveInRange(ctx, "alice",
		dateutil.MustParseISO("2024-01-15"), dateutil.MustParseISO("2024-02-15"))
	if len(rules) != 1 || rules[0].Text != "Standup" {
		t.Errorf("got %v, want only the bounded rule", rules)
	}

	// Range covering both
	rules, _ = store.FindRulesActiveInRange(ctx, "alice",
		dateutil.MustParseISO("2024-01-01"), dateutil.MustParseISO("2024-12-31"))
	if len(rules) != 2 {
		t.Errorf("got %d rules, want 2", len(rules))
	}
}

func TestStore_Tasks(t *testing.T) {
	store := New()
	ctx := context.Background()

	task := &storage.Task{
		UserID: "alice",
		Date:   dateutil.MustParseISO("2024-01-08"),
		Text:   "Buy milk",
	}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("unexpected error creating task: %v", err)
	}

	// Test getting task
	got, err := store.GetTask(ctx, "alice", task.ID)
	if err != nil {
		t.Errorf("unexpected error getting task: %v", err)
	}
	if got.Text != "Buy milk" || got.Done {
		t.Errorf("got task %+v, want text=Buy milk done=false", got)
	}

	// Test updating task
	updated, err := store.UpdateTask(ctx, "alice", task.ID, storage.TaskPatch{
		Done: mo.Some(true),
	})
	if err != nil {
		t.Errorf("unexpected error updating task: %v", err)
	}
	if !updated.Done || updated.Text != "Buy milk" {
		t.Errorf("got task %+v, want done=true with unchanged text", updated)
	}

	// Test range query ordering
	earlier := &storage.Task{
		UserID: "alice",
		Date:   dateutil.MustParseISO("2024-01-07"),
		Text:   "Laundry",
	}
	if err := store.CreateTask(ctx, earlier); err != nil {
		t.Fatalf("unexpected error creating task: %v", err)
	}
	tasks, err := store.FindTasksInRange(ctx, "alice",
		dateutil.MustParseISO("2024-01-01"), dateutil.MustParseISO("2024-01-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Text != "Laundry" || tasks[1].Text != "Buy milk" {
		t.Errorf("got %v, want Laundry before Buy milk", tasks)
	}

	// Test deleting task
	if err := store.DeleteTask(ctx, "alice", task.ID); err != nil {
		t.Errorf("unexpected error deleting task: %v", err)
	}
	if _, err := store.GetTask(ctx, "alice", task.ID); err == nil {
		t.Error("expected error getting deleted task")
	}
}

func TestStore_SlotUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	date := dateutil.MustParseISO("2024-01-08")
	first := &storage.Task{
		UserID:   "alice",
		Date:     date,
		Text:     "Gym",
		FromRule: "rule-1",
	}
	if err := store.CreateTask(ctx, first); err != nil {
		t.Fatalf("unexpected error creating task: %v", err)
	}

	// Second task for the same (rule, date) slot must be rejected
	dup := &storage.Task{
		UserID:   "alice",
		Date:     date,
		Text:     "Gym again",
		FromRule: "rule-1",
	}
	err := store.CreateTask(ctx, dup)
	if err == nil {
		t.Fatal("expected error creating duplicate slot task")
	}
	if err.(*storage.Error).Type != storage.ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	// The occupied slot is findable
	got, err := store.FindTaskBySlot(ctx, "alice", "rule-1", date)
	if err != nil {
		t.Errorf("unexpected error finding slot: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("got task %s, want %s", got.ID, first.ID)
	}

	// Same rule on another date is fine; manual tasks never collide
	other := &storage.Task{UserID: "alice", Date: date.Next(), Text: "Gym", FromRule: "rule-1"}
	if err := store.CreateTask(ctx, other); err != nil {
		t.Errorf("unexpected error creating task on free slot: %v", err)
	}
	for range 2 {
		manual := &storage.Task{UserID: "alice", Date: date, Text: "Manual"}
		if err := store.CreateTask(ctx, manual); err != nil {
			t.Errorf("unexpected error creating manual task: %v", err)
		}
	}

	// Deleting the materialized task frees the slot
	if err := store.DeleteTask(ctx, "alice", first.ID); err != nil {
		t.Fatalf("unexpected error deleting task: %v", err)
	}
	if err := store.CreateTask(ctx, dup); err != nil {
		t.Errorf("unexpected error re-materializing freed slot: %v", err)
	}
}

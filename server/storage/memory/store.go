// memory based implementation, used for demo mode and testing
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/storage"
)

// Store implements storage.RuleStore and storage.TaskStore using in-memory maps
type Store struct {
	mu    sync.RWMutex
	rules map[string]*storage.Rule // key: userID/ruleID
	tasks map[string]*storage.Task // key: userID/taskID
	slots map[string]string        // key: userID/ruleID/date -> taskID
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		rules: make(map[string]*storage.Rule),
		tasks: make(map[string]*storage.Task),
		slots: make(map[string]string),
	}
}

func (s *Store) ruleKey(userID, ruleID string) string {
	return fmt.Sprintf("%s/%s", userID, ruleID)
}

func (s *Store) taskKey(userID, taskID string) string {
	return fmt.Sprintf("%s/%s", userID, taskID)
}

func (s *Store) slotKey(userID, ruleID string, date dateutil.Date) string {
	return fmt.Sprintf("%s/%s/%s", userID, ruleID, date)
}

// Rule operations

func (s *Store) ListRules(_ context.Context, userID string) ([]*storage.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rules []*storage.Rule
	for _, r := range s.rules {
		if r.UserID == userID {
			rc := *r
			rules = append(rules, &rc)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Created.After(rules[j].Created)
	})

	return rules, nil
}

func (s *Store) GetRule(_ context.Context, userID, ruleID string) (*storage.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[s.ruleKey(userID, ruleID)]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "rule not found",
		}
	}

	rc := *r
	return &rc, nil
}

func (s *Store) FindRulesActiveInRange(_ context.Context, userID string, start, end dateutil.Date) ([]*storage.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rules []*storage.Rule
	for _, r := range s.rules {
		if r.UserID == userID && r.ActiveIn(start, end) {
			rc := *r
			rules = append(rules, &rc)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Created.After(rules[j].Created)
	})

	return rules, nil
}

func (s *Store) CreateRule(_ context.Context, rule *storage.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.UserID == "" {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "rule has no owner",
		}
	}

	rule.ID = uuid.NewString()
	rule.Created = time.Now()
	rc := *rule
	s.rules[s.ruleKey(rule.UserID, rule.ID)] = &rc

	return nil
}

func (s *Store) DeleteRule(_ context.Context, userID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.ruleKey(userID, ruleID)
	if _, ok := s.rules[key]; !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "rule not found",
		}
	}

	// Materialized tasks keep their FromRule reference; it just dangles.
	delete(s.rules, key)

	return nil
}

// Task operations

func (s *Store) FindTasksInRange(_ context.Context, userID string, start, end dateutil.Date) ([]*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*storage.Task
	for _, t := range s.tasks {
		if t.UserID == userID && !t.Date.Before(start) && !t.Date.After(end) {
			tc := *t
			tasks = append(tasks, &tc)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Date.Equal(tasks[j].Date) {
			return tasks[i].Date.Before(tasks[j].Date)
		}
		return tasks[i].Created.Before(tasks[j].Created)
	})

	return tasks, nil
}

func (s *Store) FindTasksOn(ctx context.Context, userID string, date dateutil.Date) ([]*storage.Task, error) {
	return s.FindTasksInRange(ctx, userID, date, date)
}

func (s *Store) GetTask(_ context.Context, userID, taskID string) (*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[s.taskKey(userID, taskID)]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "task not found",
		}
	}

	tc := *t
	return &tc, nil
}

func (s *Store) FindTaskBySlot(_ context.Context, userID, ruleID string, date dateutil.Date) (*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	taskID, ok := s.slots[s.slotKey(userID, ruleID, date)]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "no task materialized for this slot",
		}
	}

	tc := *s.tasks[s.taskKey(userID, taskID)]
	return &tc, nil
}

func (s *Store) CreateTask(_ context.Context, task *storage.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.UserID == "" {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "task has no owner",
		}
	}

	var slot string
	if task.FromRule != "" {
		slot = s.slotKey(task.UserID, task.FromRule, task.Date)
		if _, occupied := s.slots[slot]; occupied {
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: fmt.Sprintf("occurrence of rule %s on %s already materialized", task.FromRule, task.Date),
			}
		}
	}

	now := time.Now()
	task.ID = uuid.NewString()
	task.Created = now
	task.Modified = now

	tc := *task
	s.tasks[s.taskKey(task.UserID, task.ID)] = &tc
	if slot != "" {
		s.slots[slot] = task.ID
	}

	return nil
}

func (s *Store) UpdateTask(_ context.Context, userID, taskID string, patch storage.TaskPatch) (*storage.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[s.taskKey(userID, taskID)]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "task not found",
		}
	}

	if text, ok := patch.Text.Get(); ok {
		t.Text = text
	}
	if done, ok := patch.Done.Get(); ok {
		t.Done = done
	}
	t.Modified = time.Now()

	tc := *t
	return &tc, nil
}

func (s *Store) DeleteTask(_ context.Context, userID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.taskKey(userID, taskID)
	t, ok := s.tasks[key]
	if !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "task not found",
		}
	}

	if t.FromRule != "" {
		delete(s.slots, s.slotKey(userID, t.FromRule, t.Date))
	}
	delete(s.tasks, key)

	return nil
}

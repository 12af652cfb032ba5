// Package sqlite implements the planner storage contracts on SQLite via the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	sqlite3 "modernc.org/sqlite"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/storage"
)

const currentVersion = 1

// SQLITE_CONSTRAINT_UNIQUE
const sqliteConstraintUnique = 2067

// Store implements storage.RuleStore and storage.TaskStore on a SQLite file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS rules (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		text        TEXT NOT NULL,
		weekday     INTEGER NOT NULL CHECK (weekday BETWEEN 0 AND 6),
		start_date  TEXT NOT NULL,
		end_date    TEXT,
		created_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_user ON rules(user_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		date        TEXT NOT NULL,
		text        TEXT NOT NULL,
		done        INTEGER NOT NULL DEFAULT 0,
		from_rule   TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user_date ON tasks(user_id, date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_slot
		ON tasks(user_id, from_rule, date) WHERE from_rule != '';
	`
	_, err := s.db.Exec(ddl)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Rule operations

func (s *Store) ListRules(ctx context.Context, userID string) ([]*storage.Rule, error) {
	return s.queryRules(ctx,
		`SELECT id, user_id, text, weekday, start_date, end_date, created_at
		 FROM rules WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
}

func (s *Store) GetRule(ctx context.Context, userID, ruleID string) (*storage.Rule, error) {
	rules, err := s.queryRules(ctx,
		`SELECT id, user_id, text, weekday, start_date, end_date, created_at
		 FROM rules WHERE user_id = ? AND id = ?`, userID, ruleID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "rule not found"}
	}
	return rules[0], nil
}

func (s *Store) FindRulesActiveInRange(ctx context.Context, userID string, start, end dateutil.Date) ([]*storage.Rule, error) {
	return s.queryRules(ctx,
		`SELECT id, user_id, text, weekday, start_date, end_date, created_at
		 FROM rules
		 WHERE user_id = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		 ORDER BY created_at DESC, id`,
		userID, end.String(), start.String())
}

func (s *Store) CreateRule(ctx context.Context, rule *storage.Rule) error {
	if rule.UserID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "rule has no owner"}
	}

	rule.ID = uuid.NewString()
	rule.Created = time.Now().UTC()

	var end any
	if e, ok := rule.End.Get(); ok {
		end = e.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rules (id, user_id, text, weekday, start_date, end_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.UserID, rule.Text, rule.Weekday, rule.Start.String(), end,
		rule.Created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, userID, ruleID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rules WHERE user_id = ? AND id = ?`, userID, ruleID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "rule not found"}
	}
	return nil
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]*storage.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []*storage.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func scanRule(rows *sql.Rows) (*storage.Rule, error) {
	r := &storage.Rule{}
	var start, createdAt string
	var end sql.NullString
	if err := rows.Scan(&r.ID, &r.UserID, &r.Text, &r.Weekday, &start, &end, &createdAt); err != nil {
		return nil, fmt.Errorf("scan rule: %w", err)
	}

	var err error
	if r.Start, err = dateutil.ParseISO(start); err != nil {
		return nil, fmt.Errorf("rule %s: bad start date: %w", r.ID, err)
	}
	if end.Valid {
		e, err := dateutil.ParseISO(end.String)
		if err != nil {
			return nil, fmt.Errorf("rule %s: bad end date: %w", r.ID, err)
		}
		r.End = mo.Some(e)
	}
	r.Created, _ = time.Parse(time.RFC3339Nano, createdAt)
	return r, nil
}

// Task operations

func (s *Store) FindTasksInRange(ctx context.Context, userID string, start, end dateutil.Date) ([]*storage.Task, error) {
	return s.queryTasks(ctx,
		`SELECT id, user_id, date, text, done, from_rule, created_at, updated_at
		 FROM tasks WHERE user_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, created_at, id`,
		userID, start.String(), end.String())
}

func (s *Store) FindTasksOn(ctx context.Context, userID string, date dateutil.Date) ([]*storage.Task, error) {
	return s.FindTasksInRange(ctx, userID, date, date)
}

func (s *Store) GetTask(ctx context.Context, userID, taskID string) (*storage.Task, error) {
	tasks, err := s.queryTasks(ctx,
		`SELECT id, user_id, date, text, done, from_rule, created_at, updated_at
		 FROM tasks WHERE user_id = ? AND id = ?`, userID, taskID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "task not found"}
	}
	return tasks[0], nil
}

func (s *Store) FindTaskBySlot(ctx context.Context, userID, ruleID string, date dateutil.Date) (*storage.Task, error) {
	tasks, err := s.queryTasks(ctx,
		`SELECT id, user_id, date, text, done, from_rule, created_at, updated_at
		 FROM tasks WHERE user_id = ? AND from_rule = ? AND date = ?`,
		userID, ruleID, date.String())
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "no task materialized for this slot"}
	}
	return tasks[0], nil
}

func (s *Store) CreateTask(ctx context.Context, task *storage.Task) error {
	if task.UserID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "task has no owner"}
	}

	now := time.Now().UTC()
	task.ID = uuid.NewString()
	task.Created = now
	task.Modified = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, date, text, done, from_rule, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Date.String(), task.Text, boolToInt(task.Done),
		task.FromRule, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: fmt.Sprintf("occurrence of rule %s on %s already materialized", task.FromRule, task.Date),
				Err:     err,
			}
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, userID, taskID string, patch storage.TaskPatch) (*storage.Task, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339Nano)}

	if text, ok := patch.Text.Get(); ok {
		sets = append(sets, "text = ?")
		args = append(args, text)
	}
	if done, ok := patch.Done.Get(); ok {
		sets = append(sets, "done = ?")
		args = append(args, boolToInt(done))
	}
	args = append(args, userID, taskID)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tasks SET %s WHERE user_id = ? AND id = ?`, strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "task not found"}
	}
	return s.GetTask(ctx, userID, taskID)
}

func (s *Store) DeleteTask(ctx context.Context, userID, taskID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "task not found"}
	}
	return nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]*storage.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*storage.Task
	for rows.Next() {
		t := &storage.Task{}
		var date, createdAt, updatedAt string
		var done int
		if err := rows.Scan(&t.ID, &t.UserID, &date, &t.Text, &done, &t.FromRule, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if t.Date, err = dateutil.ParseISO(date); err != nil {
			return nil, fmt.Errorf("task %s: bad date: %w", t.ID, err)
		}
		t.Done = done == 1
		t.Created, _ = time.Parse(time.RFC3339Nano, createdAt)
		t.Modified, _ = time.Parse(time.RFC3339Nano, updatedAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqliteConstraintUnique
	}
	return false
}

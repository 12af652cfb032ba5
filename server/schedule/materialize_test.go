package schedule

import (
	"context"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/planner/server/storage"
	"github.com/cyp0633/planner/server/storage/memory"
)

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewEngine(store, store), store
}

func createRule(t *testing.T, store *memory.Store, rule *storage.Rule) *storage.Rule {
	t.Helper()
	require.NoError(t, store.CreateRule(context.Background(), rule))
	return rule
}

func TestMaterialize(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	rule := createRule(t, store, gymRule(""))

	task, err := engine.Materialize(ctx, "alice", rule.ID, date("2024-01-08"), true, mo.Some("Gym (done)"))
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "alice", task.UserID)
	assert.Equal(t, "2024-01-08", task.Date.String())
	assert.Equal(t, "Gym (done)", task.Text)
	assert.True(t, task.Done)
	assert.Equal(t, rule.ID, task.FromRule)

	// Re-querying the range shows the date as real with the stored
	// override, the other Mondays still virtual.
	occs, err := engine.ExpandRange(ctx, "alice", date("2024-01-01"), date("2024-01-21"))
	require.NoError(t, err)
	require.Len(t, occs, 3)
	assert.Equal(t, []string{"2024-01-01", "2024-01-15"}, virtualDates(occs))

	var real *storage.Task
	for _, o := range occs {
		if got, ok := o.Task(); ok {
			real = got
		}
	}
	require.NotNil(t, real)
	assert.Equal(t, task.ID, real.ID)
	assert.Equal(t, "Gym (done)", real.Text)
	assert.True(t, real.Done)
}

func TestMaterialize_TextDefaultsToRule(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	rule := createRule(t, store, gymRule(""))

	tests := []struct {
		name     string
		override mo.Option[string]
		date     string
		want     string
	}{
		{name: "No override", override: mo.None[string](), date: "2024-01-01", want: "Gym"},
		{name: "Empty override falls back", override: mo.Some(""), date: "2024-01-08", want: "Gym"},
		{name: "Non-empty override wins", override: mo.Some("Leg day"), date: "2024-01-15", want: "Leg day"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := engine.Materialize(ctx, "alice", rule.ID, date(tt.date), false, tt.override)
			require.NoError(t, err)
			assert.Equal(t, tt.want, task.Text)
		})
	}
}

func TestMaterialize_UnknownRule(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Materialize(context.Background(), "alice", "nope", date("2024-01-08"), false, mo.None[string]())
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrNotFound, serr.Type)
}

func TestMaterialize_ForeignRule(t *testing.T) {
	engine, store := newTestEngine(t)
	rule := createRule(t, store, gymRule(""))

	// A client-supplied rule id must never cross user boundaries.
	_, err := engine.Materialize(context.Background(), "mallory", rule.ID, date("2024-01-08"), false, mo.None[string]())
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ErrNotFound, serr.Type)
}

func TestMaterialize_Idempotent(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	rule := createRule(t, store, gymRule(""))

	first, err := engine.Materialize(ctx, "alice", rule.ID, date("2024-01-08"), true, mo.None[string]())
	require.NoError(t, err)

	// A second call for the same occurrence returns the existing row and
	// creates nothing.
	second, err := engine.Materialize(ctx, "alice", rule.ID, date("2024-01-08"), false, mo.Some("other text"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Text, second.Text)
	assert.True(t, second.Done)

	tasks, err := store.FindTasksInRange(ctx, "alice", date("2024-01-01"), date("2024-01-31"))
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

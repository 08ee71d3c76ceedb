package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"github.com/garyjia/flow-forge/migrations"
	"github.com/garyjia/flow-forge/pkg/database"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	logger := zap.NewNop()

	raw, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "flow.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	require.NoError(t, database.NewMigrator(raw, logger).RunMigrations(migrations.SQLite()))
	return NewDB(raw.DB, logger)
}

func newWorkflow(id int64) *entity.Workflow {
	now := time.Now().UTC().Truncate(time.Second)
	return &entity.Workflow{
		ID:           id,
		Name:         "expense",
		CurrentState: "DRAFT",
		Creator:      "alice",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSequenceRepository_Next(t *testing.T) {
	db := setupDB(t)
	seq := NewSequenceRepository(db, zap.NewNop())
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, port.CounterWorkflow)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Template IDs are an independent space
	got, err := seq.Next(ctx, port.CounterTemplate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	_, err = seq.Next(ctx, "missing")
	assert.Error(t, err)
}

func TestSequenceRepository_RolledBackWithTransaction(t *testing.T) {
	db := setupDB(t)
	seq := NewSequenceRepository(db, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := seq.Next(ctx, port.CounterWorkflow)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := seq.Next(ctx, port.CounterWorkflow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestDB_NestedTransactionRollsBackAsOne(t *testing.T) {
	db := setupDB(t)
	seq := NewSequenceRepository(db, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := seq.Next(ctx, port.CounterWorkflow)
		require.NoError(t, err)

		inner := db.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := seq.Next(ctx, port.CounterWorkflow)
			return err
		})
		require.NoError(t, inner)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := seq.Next(ctx, port.CounterWorkflow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestWorkflowRepository_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewWorkflowRepository(db, zap.NewNop())
	ctx := context.Background()

	wf := newWorkflow(1)
	require.NoError(t, repo.Create(ctx, wf))

	got, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "expense", got.Name)
	assert.Equal(t, workflow.State("DRAFT"), got.CurrentState)
	assert.Equal(t, workflow.Identity("alice"), got.Creator)
	assert.True(t, wf.CreatedAt.Equal(got.CreatedAt))

	missing, err := repo.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWorkflowRepository_UpdateState(t *testing.T) {
	db := setupDB(t)
	repo := NewWorkflowRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newWorkflow(1)))

	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		wf, err := repo.GetForUpdate(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, wf)
		return repo.UpdateState(ctx, wf.ID, "PENDING")
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, workflow.State("PENDING"), got.CurrentState)

	err = repo.UpdateState(ctx, 42, "PENDING")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestTransitionRuleRepository_UpsertReplaces(t *testing.T) {
	db := setupDB(t)
	workflows := NewWorkflowRepository(db, zap.NewNop())
	rules := NewTransitionRuleRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, workflows.Create(ctx, newWorkflow(1)))

	first := &entity.TransitionRule{
		WorkflowID:  1,
		SourceState: "DRAFT",
		Rule:        workflow.NewRule([]workflow.State{"PENDING", "CANCELLED"}, []workflow.Identity{"alice"}),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, rules.Upsert(ctx, first))

	second := &entity.TransitionRule{
		WorkflowID:  1,
		SourceState: "DRAFT",
		Rule:        workflow.NewRule([]workflow.State{"REJECTED"}, []workflow.Identity{"bob", "carol"}),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, rules.Upsert(ctx, second))

	got, err := rules.Get(ctx, 1, "DRAFT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []workflow.State{"REJECTED"}, got.Destinations)
	assert.Equal(t, []workflow.Identity{"bob", "carol"}, got.Approvers)

	none, err := rules.Get(ctx, 1, "PENDING")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestTransitionRuleRepository_EmptySetsRoundTrip(t *testing.T) {
	db := setupDB(t)
	workflows := NewWorkflowRepository(db, zap.NewNop())
	rules := NewTransitionRuleRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, workflows.Create(ctx, newWorkflow(1)))
	require.NoError(t, rules.Upsert(ctx, &entity.TransitionRule{
		WorkflowID:  1,
		SourceState: "DRAFT",
		UpdatedAt:   time.Now().UTC(),
	}))

	got, err := rules.Get(ctx, 1, "DRAFT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Destinations)
	assert.Empty(t, got.Approvers)
}

func TestTransitionRuleRepository_ListByWorkflow(t *testing.T) {
	db := setupDB(t)
	workflows := NewWorkflowRepository(db, zap.NewNop())
	rules := NewTransitionRuleRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, workflows.Create(ctx, newWorkflow(1)))
	require.NoError(t, workflows.Create(ctx, newWorkflow(2)))

	for _, source := range []workflow.State{"PENDING", "DRAFT"} {
		require.NoError(t, rules.Upsert(ctx, &entity.TransitionRule{
			WorkflowID:  1,
			SourceState: source,
			Rule:        workflow.NewRule([]workflow.State{"DONE"}, []workflow.Identity{"alice"}),
			UpdatedAt:   time.Now().UTC(),
		}))
	}

	list, err := rules.ListByWorkflow(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, workflow.State("DRAFT"), list[0].SourceState)
	assert.Equal(t, workflow.State("PENDING"), list[1].SourceState)

	other, err := rules.ListByWorkflow(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestTemplateRepository_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewTemplateRepository(db, zap.NewNop())
	ctx := context.Background()

	tpl := &entity.Template{
		ID:           1,
		Name:         "expense",
		InitialState: "DRAFT",
		States: []workflow.Definition{
			{State: "PENDING", Rule: workflow.NewRule([]workflow.State{"APPROVED", "REJECTED"}, []workflow.Identity{"bob"})},
			{State: "DRAFT", Rule: workflow.NewRule([]workflow.State{"PENDING"}, []workflow.Identity{"alice"})},
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, tpl))

	got, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "expense", got.Name)
	assert.Equal(t, workflow.State("DRAFT"), got.InitialState)
	require.Len(t, got.States, 2)
	assert.Equal(t, workflow.State("PENDING"), got.States[0].State)
	assert.Equal(t, []workflow.State{"APPROVED", "REJECTED"}, got.States[0].Destinations)
	assert.Equal(t, workflow.State("DRAFT"), got.States[1].State)

	missing, err := repo.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

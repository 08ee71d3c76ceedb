package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/garyjia/flow-forge/internal/application/port"
	"github.com/garyjia/flow-forge/internal/domain/entity"
	"github.com/garyjia/flow-forge/internal/domain/workflow"
	"github.com/garyjia/flow-forge/migrations"
)

func setupPostgres(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("flowforge"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, connStr, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx, migrations.Postgres()))
	// Running twice must be a no-op
	require.NoError(t, db.Migrate(ctx, migrations.Postgres()))
	return db
}

func TestPostgresRepositories(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	logger := zap.NewNop()

	sequences := NewSequenceRepository(db, logger)
	workflows := NewWorkflowRepository(db, logger)
	rules := NewTransitionRuleRepository(db, logger)
	templates := NewTemplateRepository(db, logger)

	t.Run("workflow lifecycle", func(t *testing.T) {
		id, err := sequences.Next(ctx, port.CounterWorkflow)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		now := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, workflows.Create(ctx, &entity.Workflow{
			ID: id, Name: "expense", CurrentState: "DRAFT", Creator: "alice",
			CreatedAt: now, UpdatedAt: now,
		}))

		require.NoError(t, rules.Upsert(ctx, &entity.TransitionRule{
			WorkflowID:  id,
			SourceState: "DRAFT",
			Rule:        workflow.NewRule([]workflow.State{"PENDING"}, []workflow.Identity{"alice"}),
			UpdatedAt:   now,
		}))

		err = db.WithTransaction(ctx, func(ctx context.Context) error {
			wf, err := workflows.GetForUpdate(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, wf)

			rule, err := rules.Get(ctx, id, wf.CurrentState)
			require.NoError(t, err)
			require.NotNil(t, rule)
			assert.Equal(t, []workflow.State{"PENDING"}, rule.Destinations)
			assert.Equal(t, []workflow.Identity{"alice"}, rule.Approvers)

			return workflows.UpdateState(ctx, id, "PENDING")
		})
		require.NoError(t, err)

		got, err := workflows.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, workflow.State("PENDING"), got.CurrentState)

		missing, err := workflows.GetByID(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, missing)

		none, err := rules.Get(ctx, id, "PENDING")
		require.NoError(t, err)
		assert.Nil(t, none)

		list, err := rules.ListByWorkflow(ctx, id)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("template round trip", func(t *testing.T) {
		id, err := sequences.Next(ctx, port.CounterTemplate)
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		require.NoError(t, templates.Create(ctx, &entity.Template{
			ID: id, Name: "expense", InitialState: "DRAFT",
			States: []workflow.Definition{
				{State: "DRAFT", Rule: workflow.NewRule([]workflow.State{"PENDING"}, []workflow.Identity{"alice"})},
				{State: "PENDING", Rule: workflow.NewRule([]workflow.State{"APPROVED", "REJECTED"}, []workflow.Identity{"bob"})},
			},
			CreatedAt: time.Now().UTC(),
		}))

		got, err := templates.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Len(t, got.States, 2)
		assert.Equal(t, workflow.State("PENDING"), got.States[1].State)
		assert.Equal(t, []workflow.State{"APPROVED", "REJECTED"}, got.States[1].Destinations)
	})

	t.Run("concurrent counters are unique", func(t *testing.T) {
		const n = 20
		ids := make(chan int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = db.WithTransaction(ctx, func(ctx context.Context) error {
					id, err := sequences.Next(ctx, port.CounterWorkflow)
					if err == nil {
						ids <- id
					}
					return err
				})
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]bool)
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
		assert.Len(t, seen, n)
	})
}

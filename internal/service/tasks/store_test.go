package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/parser"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/pkg/logger"
	"github.com/aimd54/task-coach/test/mocks"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(mocks.NewTestDB(t), 0, logger.New("debug", "text", "stdout"))
}

func TestParseCode(t *testing.T) {
	code, err := ParseCode("q2-15")
	require.NoError(t, err)
	assert.Equal(t, Code{Quadrant: models.Q2, Order: 15}, code)
	assert.Equal(t, "Q2-15", code.String())

	for _, bad := range []string{"", "Q5-1", "Q1-0", "Q1", "write report", "Q1-x"} {
		_, err := ParseCode(bad)
		assert.ErrorIs(t, err, ErrInvalidCode, bad)
	}
}

func TestCreate_OrdersPerQuadrant(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, "alice", "a", models.Q1, 0)
	require.NoError(t, err)
	b, err := store.Create(ctx, "alice", "b", models.Q1, 0)
	require.NoError(t, err)
	c, err := store.Create(ctx, "alice", "c", models.Q2, 0)
	require.NoError(t, err)
	d, err := store.Create(ctx, "bob", "d", models.Q1, 0)
	require.NoError(t, err)

	assert.Equal(t, "Q1-1", a.Code())
	assert.Equal(t, "Q1-2", b.Code())
	assert.Equal(t, "Q2-1", c.Code())
	assert.Equal(t, "Q1-1", d.Code())
}

func TestResumeTwice_MintsIncreasingOrders(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task, err := store.Create(ctx, "alice", "write thesis", models.Q2, 30)
	require.NoError(t, err)
	_, err = store.Create(ctx, "alice", "other", models.Q2, 0)
	require.NoError(t, err)

	_, err = store.Pause(ctx, "alice", Code{models.Q2, task.TaskOrder})
	require.NoError(t, err)
	first, err := store.Resume(ctx, "alice", Code{models.Q2, task.TaskOrder}, 0)
	require.NoError(t, err)
	assert.Equal(t, "Q2-3", first.Code)

	firstCode, err := ParseCode(first.Code)
	require.NoError(t, err)
	_, err = store.Pause(ctx, "alice", firstCode)
	require.NoError(t, err)
	second, err := store.Resume(ctx, "alice", firstCode, 0)
	require.NoError(t, err)
	assert.Equal(t, "Q2-4", second.Code)

	// Retired orders no longer resolve and are not handed out again.
	_, err = store.Find(ctx, "alice", Code{models.Q2, 1})
	assert.ErrorIs(t, err, ErrTaskNotFound)
	next, err := store.Create(ctx, "alice", "new", models.Q2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, next.TaskOrder)
}

func TestResume_ToOtherQuadrant(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task, err := store.Create(ctx, "alice", "taxes", models.Q3, 0)
	require.NoError(t, err)
	code := Code{models.Q3, task.TaskOrder}
	_, err = store.Pause(ctx, "alice", code)
	require.NoError(t, err)

	change, err := store.Resume(ctx, "alice", code, models.Q1)
	require.NoError(t, err)
	assert.Equal(t, "Q1-1", change.Code)
	assert.Equal(t, models.Q1, change.Quadrant)
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task, err := store.Create(ctx, "alice", "report", models.Q1, 0)
	require.NoError(t, err)
	code := Code{models.Q1, task.TaskOrder}

	_, err = store.Resume(ctx, "alice", code, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	change, err := store.Complete(ctx, "alice", code)
	require.NoError(t, err)
	assert.True(t, change.Completed)
	assert.Equal(t, 100, change.NewProgress)

	_, err = store.Pause(ctx, "alice", code)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = store.UpdateProgress(ctx, "alice", code, 50)
	assert.ErrorIs(t, err, ErrTaskCompleted)
	_, err = store.Complete(ctx, "alice", code)
	assert.ErrorIs(t, err, ErrTaskCompleted)

	// Completed tasks are retained.
	found, err := store.Find(ctx, "alice", code)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, found.Status)
	assert.NotNil(t, found.CompletedAt)
}

func TestUpdateProgress_ClampsAndCompletes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task, err := store.Create(ctx, "alice", "report", models.Q1, 20)
	require.NoError(t, err)
	code := Code{models.Q1, task.TaskOrder}

	change, err := store.UpdateProgress(ctx, "alice", code, -10)
	require.NoError(t, err)
	assert.Equal(t, 20, change.OldProgress)
	assert.Equal(t, 0, change.NewProgress)

	change, err = store.UpdateProgress(ctx, "alice", code, 150)
	require.NoError(t, err)
	assert.Equal(t, 100, change.NewProgress)
	assert.True(t, change.Completed)
}

func TestApplyUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	out, err := store.ApplyUpdate(ctx, "alice", parser.TaskUpdate{
		Name: "write report", Progress: 40, Quadrant: models.Q1, QuadrantSet: true, Action: parser.ActionUpdate,
	})
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.Equal(t, "Q1-1", out.Change.Code)
	assert.Equal(t, 0, out.Change.OldProgress)
	assert.Equal(t, 40, out.Change.NewProgress)

	// By name, without a quadrant: stays in Q1.
	out, err = store.ApplyUpdate(ctx, "alice", parser.TaskUpdate{
		Name: "write report", Progress: 70, Quadrant: models.Q1, Action: parser.ActionUpdate,
	})
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, 40, out.Change.OldProgress)
	assert.Equal(t, 70, out.Change.NewProgress)

	// By code, with a pause that does not restate progress.
	out, err = store.ApplyUpdate(ctx, "alice", parser.TaskUpdate{
		Name: "q1-1", Quadrant: models.Q1, Action: parser.ActionPause,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPaused, out.Task.Status)
	assert.Equal(t, 70, out.Change.NewProgress)

	// Reporting on a paused task resumes it under a new order.
	out, err = store.ApplyUpdate(ctx, "alice", parser.TaskUpdate{
		Name: "write report", Progress: 90, Quadrant: models.Q1, Action: parser.ActionUpdate,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusActive, out.Task.Status)
	assert.Equal(t, "Q1-2", out.Change.Code)

	out, err = store.ApplyUpdate(ctx, "alice", parser.TaskUpdate{
		Name: "write report", Quadrant: models.Q1, Action: parser.ActionComplete,
	})
	require.NoError(t, err)
	assert.True(t, out.Change.Completed)
	assert.Equal(t, 100, out.Change.NewProgress)

	// Completed tasks no longer match by name; the same name starts a new task.
	out, err = store.ApplyUpdate(ctx, "alice", parser.TaskUpdate{
		Name: "write report", Progress: 5, Quadrant: models.Q1, Action: parser.ActionUpdate,
	})
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.Equal(t, "Q1-3", out.Change.Code)

	// Unknown codes are not turned into tasks.
	_, err = store.ApplyUpdate(ctx, "alice", parser.TaskUpdate{Name: "Q4-9", Action: parser.ActionUpdate})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestApplyUpdate_QuadrantMove(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "alice", "gym", models.Q3, 10)
	require.NoError(t, err)

	out, err := store.ApplyUpdate(ctx, "alice", parser.TaskUpdate{
		Name: "gym", Progress: 20, Quadrant: models.Q2, QuadrantSet: true, Action: parser.ActionUpdate,
	})
	require.NoError(t, err)
	assert.Equal(t, "Q2-1", out.Change.Code)
	assert.Equal(t, models.Q2, out.Change.Quadrant)
}

func TestPausedForDigest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base }
	task, err := store.Create(ctx, "alice", "novel", models.Q2, 10)
	require.NoError(t, err)
	_, err = store.Pause(ctx, "alice", Code{models.Q2, task.TaskOrder})
	require.NoError(t, err)

	store.now = func() time.Time { return base.AddDate(0, 0, 9) }
	paused, err := store.PausedForDigest(ctx, "alice", time.UTC)
	require.NoError(t, err)
	require.Len(t, paused, 1)
	assert.Equal(t, 9, paused[0].DaysPaused)
	assert.Equal(t, "novel", paused[0].Task.Name)
}

func TestApplyUpdateTx_SiblingsSurviveAndRollbackIsWhole(t *testing.T) {
	db := mocks.NewTestDB(t)
	log := logger.New("debug", "text", "stdout")
	store := NewStore(db, 0, log)
	l := ledger.NewService(db, ledger.Options{}, log)
	ctx := context.Background()

	_, err := l.Transact(ctx, "alice", "reply", func(ctx context.Context, tx *ledger.Tx) error {
		_, err := store.ApplyUpdateTx(ctx, tx, parser.TaskUpdate{Name: "Q3-7", Progress: 10})
		assert.ErrorIs(t, err, ErrTaskNotFound)

		out, err := store.ApplyUpdateTx(ctx, tx, parser.TaskUpdate{Name: "Gym", Progress: 40, Quadrant: models.Q2, QuadrantSet: true})
		require.NoError(t, err)
		assert.Equal(t, "Q2-1", out.Change.Code)
		return nil
	})
	require.NoError(t, err)

	task, err := store.FindByName(ctx, "alice", "Gym")
	require.NoError(t, err)
	assert.Equal(t, 40, task.ProgressPercentage)

	storeDown := errors.New("store unreachable")
	_, err = l.Transact(ctx, "alice", "reply", func(ctx context.Context, tx *ledger.Tx) error {
		if _, err := store.ApplyUpdateTx(ctx, tx, parser.TaskUpdate{Name: "Q2-1", Progress: 90}); err != nil {
			return err
		}
		return storeDown
	})
	assert.ErrorIs(t, err, storeDown)

	task, err = store.FindByName(ctx, "alice", "Gym")
	require.NoError(t, err)
	assert.Equal(t, 40, task.ProgressPercentage)
}

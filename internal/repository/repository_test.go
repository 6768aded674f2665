package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aimd54/task-coach/internal/models"
)

// setupTestDB creates a migrated in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenSQLite(":memory:", gormlogger.Silent)
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestProfileRepository_GetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultLevel, first.Level)
	assert.Equal(t, models.DefaultCoins, first.Coins)
	assert.Equal(t, models.DefaultPersonality, first.AIPersonality)

	first.Coins = 999
	require.NoError(t, repo.UpdateVersioned(ctx, first))

	// A second call must not reset the row.
	second, err := repo.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 999, second.Coins)

	owners, err := repo.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, owners)
}

func TestProfileRepository_UpdateVersioned_Conflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	a, err := repo.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	b, err := repo.Get(ctx, "alice")
	require.NoError(t, err)

	a.Coins = 10
	require.NoError(t, repo.UpdateVersioned(ctx, a))
	assert.Equal(t, b.Version+1, a.Version)

	b.Coins = 20
	assert.ErrorIs(t, repo.UpdateVersioned(ctx, b), ErrVersionConflict)

	stored, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Coins)
}

func TestTaskRepository_NextOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	// Rows that predate the sequence are respected.
	require.NoError(t, repo.Create(ctx, &models.Task{Owner: "alice", Name: "old", Quadrant: models.Q1, TaskOrder: 4, Status: models.TaskStatusActive}))

	n, err := repo.NextOrder(ctx, "alice", models.Q1)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = repo.NextOrder(ctx, "alice", models.Q1)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = repo.NextOrder(ctx, "alice", models.Q2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.NextOrder(ctx, "bob", models.Q1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTaskRepository_UniqueOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Task{Owner: "alice", Name: "a", Quadrant: models.Q2, TaskOrder: 1, Status: models.TaskStatusActive}))
	err := repo.Create(ctx, &models.Task{Owner: "alice", Name: "b", Quadrant: models.Q2, TaskOrder: 1, Status: models.TaskStatusActive})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = repo.FindByCode(ctx, "alice", models.Q2, 9)
	assert.True(t, IsNotFound(err))
}

func TestTaskRepository_ListByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	for i, status := range []models.TaskStatus{models.TaskStatusActive, models.TaskStatusPaused, models.TaskStatusActive} {
		require.NoError(t, repo.Create(ctx, &models.Task{
			Owner: "alice", Name: "t", Quadrant: models.Q3, TaskOrder: i + 1, Status: status,
		}))
	}

	active, err := repo.ListByStatus(ctx, "alice", models.TaskStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, 1, active[0].TaskOrder)
	assert.Equal(t, 3, active[1].TaskOrder)

	all, err := repo.ListByStatus(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReplyTrackingRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReplyTrackingRepository(db)
	ctx := context.Background()

	tracking, err := repo.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, tracking.LastReplyDate)

	today := models.Date(time.Now())
	tracking.LastReplyDate = &today
	tracking.TotalReplies = 3
	require.NoError(t, repo.Save(ctx, tracking))

	again, err := repo.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, again.TotalReplies)
	require.NotNil(t, again.LastReplyDate)
}

func TestShopRepository_Inventory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertItem(ctx, &models.ShopItem{ItemCode: "coffee", ItemName: "Coffee", Price: 50, RequiredLevel: 1}))
	require.NoError(t, repo.UpsertItem(ctx, &models.ShopItem{ItemCode: "coffee", ItemName: "Coffee Break", Price: 60, RequiredLevel: 1}))

	items, err := repo.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Coffee Break", items[0].ItemName)
	assert.Equal(t, 60, items[0].Price)

	require.NoError(t, repo.IncrementInventory(ctx, "alice", "coffee"))
	require.NoError(t, repo.IncrementInventory(ctx, "alice", "coffee"))

	inv, err := repo.GetInventory(ctx, "alice", "coffee")
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Quantity)
	assert.Equal(t, 2, inv.UsageCountDaily)

	n, err := repo.ResetUsage(ctx, models.UsageDaily)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	inv, err = repo.GetInventory(ctx, "alice", "coffee")
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Quantity)
	assert.Equal(t, 0, inv.UsageCountDaily)
	assert.Equal(t, 2, inv.UsageCountWeekly)

	_, err = repo.ResetUsage(ctx, models.UsageUnlimited)
	assert.Error(t, err)
}

func TestRewardRepository_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRewardRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &models.PersistenceReward{Owner: "alice", MilestoneDays: 7}))
	err := repo.Insert(ctx, &models.PersistenceReward{Owner: "alice", MilestoneDays: 7})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, repo.Insert(ctx, &models.PersistenceReward{Owner: "alice", MilestoneDays: 3}))
	rewards, err := repo.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.Equal(t, 3, rewards[0].MilestoneDays)
}

func TestHistoryRepository_PunishmentOncePerDay(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()
	today := models.Date(time.Now())

	entry := func(ref string) *models.PunishmentHistory {
		return &models.PunishmentHistory{
			Owner: "alice", PunishmentType: models.PunishmentTaskDelay, PunishmentDate: today, Reference: ref, CoinsDeducted: 15,
		}
	}

	require.NoError(t, repo.AddPunishment(ctx, entry("Q1-1")))
	require.NoError(t, repo.AddPunishment(ctx, entry("Q1-2")))
	assert.ErrorIs(t, repo.AddPunishment(ctx, entry("Q1-1")), ErrDuplicate)

	since, err := repo.PunishmentsSince(ctx, "alice", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, since, 2)

	require.NoError(t, repo.AddExp(ctx, &models.ExpHistory{Owner: "alice", ExpGained: 40, CoinsGained: 5}))
	exp, err := repo.ExpSince(ctx, "alice", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, exp, 1)
	assert.Equal(t, 40, exp[0].ExpGained)
}

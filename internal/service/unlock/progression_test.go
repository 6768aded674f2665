package unlock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/pkg/logger"
)

type mockUpdater struct {
	profile *models.UserGamification
	writes  int
}

func (m *mockUpdater) UpdateProfile(ctx context.Context, owner, reason string, fn func(p *models.UserGamification) error) (*models.UserGamification, error) {
	copied := *m.profile
	if err := fn(&copied); err != nil {
		return nil, err
	}
	m.profile = &copied
	m.writes++
	return m.profile, nil
}

func TestAvailablePersonalities(t *testing.T) {
	assert.Equal(t, []models.Personality{models.PersonalityFriendly}, AvailablePersonalities(1))
	assert.Len(t, AvailablePersonalities(4), 2)
	assert.Len(t, AvailablePersonalities(12), 3)
	assert.Len(t, AvailablePersonalities(13), 4)
}

func TestUnlocksAt(t *testing.T) {
	m := UnlocksAt(8)
	require.NotNil(t, m)
	assert.Equal(t, models.PersonalityStrict, *m.Personality)
	assert.Nil(t, UnlocksAt(9))
	assert.Len(t, UnlocksBetween(3, 13), 3)
	assert.Equal(t, 13, FeatureLevel(FeatureShop))
}

func TestNextUnlockInfo(t *testing.T) {
	// Level 2 with 50 exp: level 2 needs 200 and level 3 needs 300 to reach level 4.
	next := NextUnlockInfo(2, 50, 50)
	require.NotNil(t, next)
	assert.Equal(t, 4, next.Milestone.Level)
	assert.Equal(t, 450, next.ExpRemaining)
	assert.Equal(t, 9, next.UpdatesNeeded)

	next = NextUnlockInfo(2, 50, 0)
	require.NotNil(t, next)
	assert.Zero(t, next.UpdatesNeeded)

	next = NextUnlockInfo(19, 100, 70)
	require.NotNil(t, next)
	assert.Equal(t, 20, next.Milestone.Level)
	assert.Equal(t, 1800, next.ExpRemaining)
	assert.Equal(t, 26, next.UpdatesNeeded)

	assert.Nil(t, NextUnlockInfo(20, 5000, 10))
}

func TestSwitchPersonality(t *testing.T) {
	log := logger.New("debug", "text", "stdout")

	t.Run("level insufficient", func(t *testing.T) {
		updater := &mockUpdater{profile: &models.UserGamification{Level: 3, AIPersonality: models.PersonalityFriendly}}
		svc := NewService(updater, log)

		_, err := svc.SwitchPersonality(context.Background(), "alice", models.PersonalityProfessional)
		var levelErr *ledger.LevelInsufficientError
		require.ErrorAs(t, err, &levelErr)
		assert.Equal(t, 4, levelErr.RequiredLevel)
		assert.Zero(t, updater.writes)
	})

	t.Run("already active", func(t *testing.T) {
		updater := &mockUpdater{profile: &models.UserGamification{Level: 10, AIPersonality: models.PersonalityStrict}}
		svc := NewService(updater, log)

		_, err := svc.SwitchPersonality(context.Background(), "alice", models.PersonalityStrict)
		assert.ErrorIs(t, err, ErrNoOp)
	})

	t.Run("unknown", func(t *testing.T) {
		updater := &mockUpdater{profile: &models.UserGamification{Level: 20}}
		svc := NewService(updater, log)

		_, err := svc.SwitchPersonality(context.Background(), "alice", models.Personality("sarcastic"))
		assert.ErrorIs(t, err, ErrUnknownPersonality)
	})

	t.Run("switches", func(t *testing.T) {
		updater := &mockUpdater{profile: &models.UserGamification{Level: 13, AIPersonality: models.PersonalityFriendly}}
		svc := NewService(updater, log)

		p, err := svc.SwitchPersonality(context.Background(), "alice", models.PersonalityToxic)
		require.NoError(t, err)
		assert.Equal(t, models.PersonalityToxic, p.AIPersonality)
		assert.Equal(t, 1, updater.writes)
	})
}

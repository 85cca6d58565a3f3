package effects_test

import (
	"context"
	"testing"

	"github.com/cyprus7/quest-engine/internal/effects"
	"github.com/cyprus7/quest-engine/internal/models"
	"github.com/cyprus7/quest-engine/internal/repository"
	repoMocks "github.com/cyprus7/quest-engine/internal/repository/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testQuest() *models.QuestContent {
	return &models.QuestContent{
		ID: "forest",
		RewardPools: map[string]models.RewardPool{
			"common": {Title: "Common", Variants: []models.PoolVariant{
				{ID: "a", Weight: 1, Rewards: []models.RewardDef{{Type: "coins", Amount: 100}}},
				{ID: "b", Weight: 1, Rewards: []models.RewardDef{{Type: "gems", Amount: 1}}},
			}},
		},
		Chests: map[string]models.ChestDef{
			"small":  {PoolID: "common", Overrides: []models.WeightOverride{{VariantID: "b", Weight: 5}, {VariantID: "zzz", Weight: 9}}},
			"orphan": {PoolID: "missing"},
		},
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryProgressStore(zap.NewNop())
	resolver := effects.NewResolver(store, zap.NewNop())

	t.Run("counters accumulate in order", func(t *testing.T) {
		state := models.NewUserState(uuid.New(), "forest", "s1")
		state.Stats["hp"] = 10

		result, err := resolver.Resolve(ctx, testQuest(), state, []models.EffectDef{
			{Kind: models.EffectTag, Key: "courage", Delta: 3},
			{Kind: models.EffectStat, Key: "hp", Delta: -4},
			{Kind: models.EffectTag, Key: "courage", Delta: 2},
			{Kind: models.EffectItem, Key: "torch", Delta: 1},
		})
		require.NoError(t, err)

		assert.Equal(t, int64(5), state.Tags["courage"])
		assert.Equal(t, int64(6), state.Stats["hp"])
		assert.Equal(t, int64(1), state.Inventory["torch"])
		require.Len(t, result.EffectsApplied, 4)
		assert.Equal(t, int64(3), result.EffectsApplied[2].Before)
		assert.Equal(t, int64(5), result.EffectsApplied[2].After)
		assert.Equal(t, []models.RewardApplied{{Source: models.RewardSourceEffect, Type: "item", ID: "torch", Amount: 1}}, result.Rewards)
		assert.Empty(t, result.SpawnedChestIDs)
	})

	t.Run("spawn chest freezes merged pool", func(t *testing.T) {
		quest := testQuest()
		state := models.NewUserState(uuid.New(), "forest", "s1")

		result, err := resolver.Resolve(ctx, quest, state, []models.EffectDef{{Kind: models.EffectSpawnChest, ChestID: "small"}})
		require.NoError(t, err)
		require.Len(t, result.SpawnedChestIDs, 1)

		chest, err := store.GetChestInstance(ctx, result.SpawnedChestIDs[0])
		require.NoError(t, err)
		assert.Equal(t, models.ChestStatusClosed, chest.Status)
		assert.Equal(t, state.UserID, chest.UserID)
		assert.Equal(t, "forest", chest.QuestID)
		assert.Equal(t, []int64{1, 5}, chest.Pool.Weights())

		// базовый пул не изменился
		assert.Equal(t, []int64{1, 1}, quest.RewardPools["common"].Weights())

		// изменения контента после выдачи не влияют на снимок
		quest.RewardPools["common"].Variants[0].Weight = 100
		chest, err = store.GetChestInstance(ctx, result.SpawnedChestIDs[0])
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 5}, chest.Pool.Weights())
	})

	t.Run("unknown chest", func(t *testing.T) {
		state := models.NewUserState(uuid.New(), "forest", "s1")
		_, err := resolver.Resolve(ctx, testQuest(), state, []models.EffectDef{{Kind: models.EffectSpawnChest, ChestID: "nope"}})
		assert.ErrorIs(t, err, models.ErrUnknownChest)
		assert.ErrorIs(t, err, models.ErrInvalidRequest)
	})

	t.Run("unknown pool", func(t *testing.T) {
		state := models.NewUserState(uuid.New(), "forest", "s1")
		_, err := resolver.Resolve(ctx, testQuest(), state, []models.EffectDef{{Kind: models.EffectSpawnChest, ChestID: "orphan"}})
		assert.ErrorIs(t, err, models.ErrUnknownPool)
	})
}

func TestResolver_ResolveDoesNotSave(t *testing.T) {
	ctx := context.Background()
	store := new(repoMocks.ProgressStore)
	resolver := effects.NewResolver(store, zap.NewNop())
	state := models.NewUserState(uuid.New(), "forest", "s1")
	chestID := uuid.New()

	store.On("CreateChestInstance", ctx, state, "small", mock.AnythingOfType("models.RewardPool")).Return(chestID, nil).Once()

	result, err := resolver.Resolve(ctx, testQuest(), state, []models.EffectDef{
		{Kind: models.EffectTag, Key: "a", Delta: 1},
		{Kind: models.EffectSpawnChest, ChestID: "small"},
		{Kind: models.EffectStat, Key: "b", Delta: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{chestID}, result.SpawnedChestIDs)
	assert.Equal(t, int64(1), state.Tags["a"])
	assert.Equal(t, int64(2), state.Stats["b"])
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "SaveSession", mock.Anything, mock.Anything)
}

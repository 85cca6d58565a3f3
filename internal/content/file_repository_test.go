package content_test

import (
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/cyprus7/quest-engine/internal/content"
	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const forestJSON = `{
  "id": "forest",
  "title": "Тёмный лес",
  "stages": [
    {
      "key": "s1",
      "scenes": [
        {
          "id": "gate",
          "text": "Ворота леса",
          "choices": [
            {"id": "enter", "text": "Войти", "effects": [{"type": "tag", "key": "courage", "value": 3}]},
            {"id": "loot", "text": "Обыскать", "effects": [{"type": "spawn_chest", "chest_id": "small"}], "next": "gate"}
          ],
          "on_complete": [{"id": "gold", "amount": 10}]
        }
      ],
      "connect": {"next_stage_key": "s2"}
    }
  ],
  "reward_pools": {
    "common": {"title": "Common", "variants": [
      {"id": "a", "weight": 1, "rewards": [{"type": "coins", "amount": 100}]},
      {"id": "b", "weight": 1, "rewards": [{"type": "freespins", "game_id": "book", "denom": 0.2, "amount": 10}]}
    ]}
  },
  "chests": {"small": {"pool_id": "common", "overrides": [{"variant_id": "b", "weight": 3}]}}
}`

const forestTOML = `
id = "forest"
title = "Forest"

[[stages]]
key = "s1"
connect = { next_stage_key = "s2" }

  [[stages.scenes]]
  id = "gate"
  text = "Forest gate"

    [[stages.scenes.choices]]
    id = "enter"
    text = "Enter"

      [[stages.scenes.choices.effects]]
      type = "stat"
      key = "hp"
      value = -2

[reward_pools.common]
title = "Common"

  [[reward_pools.common.variants]]
  id = "a"
  weight = 2

[chests.small]
pool_id = "common"
`

func newFS() fstest.MapFS {
	return fstest.MapFS{
		"forest/ru.json": {Data: []byte(forestJSON)},
		"forest/en.toml": {Data: []byte(forestTOML)},
		"broken/en.json": {Data: []byte(`{"id": "broken", "stages": [{"key": "s", "scenes": [{"id": "x", "choices": [{"id": "c", "effects": [{"type": "teleport"}]}]}]}]}`)},
	}
}

func TestFileRepository_Get(t *testing.T) {
	ctx := context.Background()
	repo := content.NewFileRepository(newFS(), "en", zap.NewNop())

	t.Run("json content", func(t *testing.T) {
		quest, err := repo.Get(ctx, "forest", "ru")
		require.NoError(t, err)
		assert.Equal(t, "forest", quest.ID)
		assert.Equal(t, "ru", quest.Locale)
		require.Len(t, quest.Stages, 1)
		scene, ok := quest.Stages[0].FirstScene()
		require.True(t, ok)
		assert.Equal(t, models.EffectTag, scene.Choices[0].Effects[0].Kind)
		assert.Equal(t, int64(3), scene.Choices[0].Effects[0].Delta)
		assert.True(t, scene.Choices[0].CompletesStage())
		assert.False(t, scene.Choices[1].CompletesStage())
		require.NotNil(t, quest.RewardPools["common"].Variants[1].Rewards[0].Denom)
		assert.Equal(t, "common", quest.Chests["small"].PoolID)
	})

	t.Run("toml content", func(t *testing.T) {
		quest, err := repo.Get(ctx, "forest", "en")
		require.NoError(t, err)
		assert.Equal(t, "en", quest.Locale)
		effect := quest.Stages[0].Scenes[0].Choices[0].Effects[0]
		assert.Equal(t, models.EffectStat, effect.Kind)
		assert.Equal(t, int64(-2), effect.Delta)
		assert.Equal(t, "s2", quest.Stages[0].Connect.NextStageKey)
	})

	t.Run("missing locale falls back to default", func(t *testing.T) {
		quest, err := repo.Get(ctx, "forest", "de")
		require.NoError(t, err)
		assert.Equal(t, "en", quest.Locale)
	})

	t.Run("unknown quest", func(t *testing.T) {
		_, err := repo.Get(ctx, "desert", "en")
		assert.ErrorIs(t, err, models.ErrQuestNotFound)
		assert.ErrorIs(t, err, models.ErrInvalidRequest)
	})

	t.Run("path traversal is treated as not found", func(t *testing.T) {
		_, err := repo.Get(ctx, "../forest", "en")
		assert.ErrorIs(t, err, models.ErrQuestNotFound)
	})

	t.Run("unknown effect type is malformed content", func(t *testing.T) {
		_, err := repo.Get(ctx, "broken", "en")
		assert.ErrorIs(t, err, models.ErrMalformedContent)
	})
}

func TestFileRepository_BundledContent(t *testing.T) {
	repo := content.NewFileRepository(os.DirFS("../../content"), "en", zap.NewNop())

	for _, questID := range []string{"courage", "forest"} {
		quest, err := repo.Get(context.Background(), questID, "en")
		require.NoError(t, err, questID)
		assert.Equal(t, questID, quest.ID)
		assert.NotEmpty(t, quest.Stages)
	}
}

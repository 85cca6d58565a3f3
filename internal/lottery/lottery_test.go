package lottery_test

import (
	"testing"

	"github.com/cyprus7/quest-engine/internal/lottery"
	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func denom(v float64) *float64 { return &v }

func TestPickIndex(t *testing.T) {
	t.Run("two equal variants split at the middle", func(t *testing.T) {
		weights := []int64{1, 1}

		i, err := lottery.PickIndex(weights, 0.49)
		require.NoError(t, err)
		assert.Equal(t, 0, i)

		i, err = lottery.PickIndex(weights, 0.51)
		require.NoError(t, err)
		assert.Equal(t, 1, i)
	})

	t.Run("boundary falls into the lower bucket", func(t *testing.T) {
		// total=4, u=0.25 -> target=1 == cumulative[0], поэтому индекс 1
		i, err := lottery.PickIndex([]int64{1, 3}, 0.25)
		require.NoError(t, err)
		assert.Equal(t, 1, i)
	})

	t.Run("zero always selects first non-zero variant", func(t *testing.T) {
		i, err := lottery.PickIndex([]int64{5, 1, 1}, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, i)

		i, err = lottery.PickIndex([]int64{0, 0, 2}, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, i)
	})

	t.Run("value just below one selects last reachable variant", func(t *testing.T) {
		i, err := lottery.PickIndex([]int64{1, 2, 3, 0}, 0.9999999999999999)
		require.NoError(t, err)
		assert.Equal(t, 2, i)
	})

	t.Run("cumulative bounds hold for a sweep", func(t *testing.T) {
		weights := []int64{3, 0, 7, 2, 8}
		cumulative, err := lottery.CumulativeTable(weights)
		require.NoError(t, err)
		total := float64(cumulative[len(cumulative)-1])
		for step := 0; step < 1000; step++ {
			u := float64(step) / 1000
			i, err := lottery.PickIndex(weights, u)
			require.NoError(t, err)
			target := u * total
			lower := 0.0
			if i > 0 {
				lower = float64(cumulative[i-1])
			}
			assert.LessOrEqual(t, lower, target)
			assert.Less(t, target, float64(cumulative[i]))
		}
	})

	t.Run("degenerate pools are rejected", func(t *testing.T) {
		_, err := lottery.PickIndex([]int64{0, 0}, 0.3)
		assert.ErrorIs(t, err, models.ErrDegeneratePool)

		_, err = lottery.PickIndex(nil, 0.3)
		assert.ErrorIs(t, err, models.ErrDegeneratePool)
		assert.ErrorIs(t, err, models.ErrNotPermitted)
	})

	t.Run("negative weight is rejected", func(t *testing.T) {
		_, err := lottery.PickIndex([]int64{3, -1, 5}, 0.3)
		assert.ErrorIs(t, err, models.ErrInvalidWeight)
	})

	t.Run("unit value out of range", func(t *testing.T) {
		_, err := lottery.PickIndex([]int64{1}, 1)
		assert.ErrorIs(t, err, lottery.ErrUnitOutOfRange)
		_, err = lottery.PickIndex([]int64{1}, -0.1)
		assert.ErrorIs(t, err, lottery.ErrUnitOutOfRange)
	})
}

func TestSeeder(t *testing.T) {
	seeder, err := lottery.NewSeeder([]byte("test-secret"))
	require.NoError(t, err)

	seed := seeder.Seed("user", "quest", "chest")
	assert.Equal(t, []byte("user:quest:chest"), seed)

	first := seeder.UnitInterval(seed)
	second := seeder.UnitInterval(seeder.Seed("user", "quest", "chest"))
	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first, 0.0)
	assert.Less(t, first, 1.0)

	changed := seeder.UnitInterval(seeder.Seed("user", "quest", "chesu"))
	assert.NotEqual(t, first, changed)

	other, err := lottery.NewSeeder([]byte("another-secret"))
	require.NoError(t, err)
	assert.NotEqual(t, first, other.UnitInterval(seed))

	_, err = lottery.NewSeeder(nil)
	assert.Error(t, err)
}

func TestCombinationID(t *testing.T) {
	r1 := models.RewardDef{Type: "freespins", GameID: "book-of-ra", Denom: denom(0.2), Amount: 10}
	r2 := models.RewardDef{Type: "coins", Amount: 500}

	id := lottery.CombinationID([]models.RewardDef{r1, r2})
	assert.Len(t, id, 32)
	assert.Equal(t, id, lottery.CombinationID([]models.RewardDef{r2, r1}))

	variants := []models.RewardDef{
		{Type: "bonus", GameID: "book-of-ra", Denom: denom(0.2), Amount: 10},
		{Type: "freespins", GameID: "sun-of-egypt", Denom: denom(0.2), Amount: 10},
		{Type: "freespins", GameID: "book-of-ra", Denom: denom(0.1), Amount: 10},
		{Type: "freespins", GameID: "book-of-ra", Denom: denom(0.2), Amount: 11},
		{Type: "freespins", GameID: "book-of-ra", Amount: 10},
	}
	for _, v := range variants {
		assert.NotEqual(t, id, lottery.CombinationID([]models.RewardDef{v, r2}))
	}
}

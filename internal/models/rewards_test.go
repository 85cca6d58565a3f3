package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewardPool_MergeOverrides(t *testing.T) {
	base := RewardPool{Title: "t", Variants: []PoolVariant{
		{ID: "a", Weight: 1, Rewards: []RewardDef{{Type: "coins", Amount: 1}}},
		{ID: "b", Weight: 1},
	}}

	merged := base.MergeOverrides([]WeightOverride{{VariantID: "b", Weight: 7}, {VariantID: "ghost", Weight: 3}})

	assert.Equal(t, []int64{1, 7}, merged.Weights())
	assert.Equal(t, []int64{1, 1}, base.Weights())

	merged.Variants[0].Rewards[0].Amount = 99
	assert.Equal(t, int64(1), base.Variants[0].Rewards[0].Amount)
}

func TestRewardPool_MergeWithoutOverridesCopies(t *testing.T) {
	base := RewardPool{Variants: []PoolVariant{{ID: "a", Weight: 2}}}
	merged := base.MergeOverrides(nil)
	merged.Variants[0].Weight = 5
	assert.Equal(t, int64(2), base.Variants[0].Weight)
}

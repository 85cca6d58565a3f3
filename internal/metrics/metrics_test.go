package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(choicesAppliedTotal.WithLabelValues("metrics-q", "true"))
	ChoiceApplied("metrics-q", true)
	assert.Equal(t, before+1, testutil.ToFloat64(choicesAppliedTotal.WithLabelValues("metrics-q", "true")))

	ChestsSpawned("metrics-q", 0)
	ChestsSpawned("metrics-q", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(chestsSpawnedTotal.WithLabelValues("metrics-q")))

	ChestOpened("metrics-q", ChestOpenReplayed)
	assert.Equal(t, float64(1), testutil.ToFloat64(chestOpensTotal.WithLabelValues("metrics-q", ChestOpenReplayed)))

	failures := testutil.ToFloat64(rewardExportFailuresTotal)
	RewardExportFailed()
	assert.Equal(t, failures+1, testutil.ToFloat64(rewardExportFailuresTotal))
}

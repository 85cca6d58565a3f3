// Package metrics exposes prometheus counters for quest activity.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	choicesAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_choices_applied_total",
			Help: "Total number of applied choices by quest and whether the stage was completed.",
		},
		[]string{"quest", "stage_completed"},
	)

	chestsSpawnedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_chests_spawned_total",
			Help: "Total number of spawned chest instances by quest.",
		},
		[]string{"quest"},
	)

	chestOpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_chest_opens_total",
			Help: "Total number of chest open requests by quest and result (drawn/replayed).",
		},
		[]string{"quest", "result"},
	)

	rewardExportFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_reward_export_failures_total",
		Help: "Total number of failed reward exports.",
	})
)

// Chest open results
const (
	ChestOpenDrawn    = "drawn"
	ChestOpenReplayed = "replayed"
)

// ChoiceApplied records a successfully applied choice.
func ChoiceApplied(questID string, stageCompleted bool) {
	choicesAppliedTotal.WithLabelValues(questID, strconv.FormatBool(stageCompleted)).Inc()
}

// ChestsSpawned records spawned chest instances.
func ChestsSpawned(questID string, n int) {
	if n > 0 {
		chestsSpawnedTotal.WithLabelValues(questID).Add(float64(n))
	}
}

// ChestOpened records a chest open with the given result label.
func ChestOpened(questID, result string) {
	chestOpensTotal.WithLabelValues(questID, result).Inc()
}

// RewardExportFailed records a failed reward export.
func RewardExportFailed() {
	rewardExportFailuresTotal.Inc()
}

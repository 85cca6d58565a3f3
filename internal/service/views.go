package service

import (
	"github.com/cyprus7/quest-engine/internal/effects"
	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/google/uuid"
)

// ChoiceView - вариант выбора, как его видит клиент.
type ChoiceView struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	CompletesStage bool   `json:"completes_stage"`
}

// SceneView is the client-facing rendering of a scene.
type SceneView struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	Choices      []ChoiceView `json:"choices"`
	TimerSeconds *int         `json:"timer_seconds,omitempty"`
}

// StateView - текущее положение пользователя в квесте и полный снимок счетчиков.
// Completed == true, если ключ этапа сессии не найден в контенте (квест пройден).
type StateView struct {
	QuestID   string           `json:"quest_id"`
	StageKey  string           `json:"stage_key"`
	Scene     *SceneView       `json:"scene,omitempty"`
	Completed bool             `json:"completed"`
	Tags      map[string]int64 `json:"tags"`
	Stats     map[string]int64 `json:"stats"`
	Inventory map[string]int64 `json:"inventory"`
}

// PreviewView is the result of a stateless stage-gating preview.
type PreviewView struct {
	StageKey string     `json:"stage_key"`
	Scene    *SceneView `json:"scene,omitempty"`
}

// Snapshot - копия трех пространств счетчиков.
type Snapshot struct {
	Tags      map[string]int64 `json:"tags"`
	Stats     map[string]int64 `json:"stats"`
	Inventory map[string]int64 `json:"inventory"`
}

// ChoiceRequest selects a choice. CurrentSceneID overrides the scene stored in the session.
type ChoiceRequest struct {
	CurrentSceneID *string
	ChoiceID       string
}

// ChoiceOutcome is returned by ApplyChoice.
type ChoiceOutcome struct {
	PreviousSceneID string                  `json:"previous_scene_id"`
	ChoiceID        string                  `json:"choice_id"`
	StageCompleted  bool                    `json:"stage_completed"`
	Before          Snapshot                `json:"before"`
	After           Snapshot                `json:"after"`
	Delta           Snapshot                `json:"delta"`
	EffectsApplied  []effects.AppliedEffect `json:"effects_applied"`
	Rewards         []models.RewardApplied  `json:"rewards"`
	SpawnedChestIDs []uuid.UUID             `json:"spawned_chest_ids"`
	State           *StateView              `json:"state"`
}

// ChestOpenResult is returned by ChestService.Open.
// Replayed == true, если сундук был открыт раньше и вернулся сохраненный результат.
// В тело ответа не попадает: повторное открытие отдает побайтно тот же JSON.
type ChestOpenResult struct {
	models.ChestResult
	QuestID  string `json:"quest_id"`
	Replayed bool   `json:"-"`
}

func takeSnapshot(state *models.UserState) Snapshot {
	return Snapshot{
		Tags:      models.CopyCounters(state.Tags),
		Stats:     models.CopyCounters(state.Stats),
		Inventory: models.CopyCounters(state.Inventory),
	}
}

// diffSnapshots оставляет только изменившиеся ключи (after - before), нулевые дельты опускаются.
func diffSnapshots(before, after Snapshot) Snapshot {
	return Snapshot{
		Tags:      diffCounters(before.Tags, after.Tags),
		Stats:     diffCounters(before.Stats, after.Stats),
		Inventory: diffCounters(before.Inventory, after.Inventory),
	}
}

func diffCounters(before, after map[string]int64) map[string]int64 {
	delta := map[string]int64{}
	for k, v := range after {
		if d := v - before[k]; d != 0 {
			delta[k] = d
		}
	}
	for k, v := range before {
		if _, ok := after[k]; !ok && v != 0 {
			delta[k] = -v
		}
	}
	return delta
}

func newSceneView(scene *models.SceneDef) *SceneView {
	view := &SceneView{
		ID:           scene.ID,
		Text:         scene.Text,
		Choices:      make([]ChoiceView, 0, len(scene.Choices)),
		TimerSeconds: scene.TimerSeconds,
	}
	for _, c := range scene.Choices {
		view.Choices = append(view.Choices, ChoiceView{ID: c.ID, Text: c.Text, CompletesStage: c.CompletesStage()})
	}
	return view
}

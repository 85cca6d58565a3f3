package models

import (
	"fmt"
	"strings"
)

// QuestContent - неизменяемое описание квеста для пары (quest id, locale).
// Порядок Stages значим: гейтинг идет по позиции, а не по ключу.
type QuestContent struct {
	ID          string                `json:"id" toml:"id"`
	Locale      string                `json:"locale" toml:"locale"`
	Title       string                `json:"title" toml:"title"`
	Stages      []StageDef            `json:"stages" toml:"stages"`
	RewardPools map[string]RewardPool `json:"reward_pools" toml:"reward_pools"`
	Chests      map[string]ChestDef   `json:"chests" toml:"chests"`
}

// StageDef is a gated chapter of the quest.
type StageDef struct {
	Key        string      `json:"key" toml:"key"`
	Conditions []Condition `json:"conditions,omitempty" toml:"conditions"`
	Scenes     []SceneDef  `json:"scenes" toml:"scenes"`
	Connect    Connect     `json:"connect" toml:"connect"`
}

// Condition требует, чтобы параметр был не меньше Min.
type Condition struct {
	Param string `json:"param" toml:"param"`
	Min   int64  `json:"min" toml:"min"`
}

// Connect names the stage entered after the current one is completed.
type Connect struct {
	NextStageKey string `json:"next_stage_key" toml:"next_stage_key"`
}

// SceneDef - узел повествования внутри этапа.
// Сцена без выборов - тупик; движок сам не продвигает игрока дальше.
type SceneDef struct {
	ID           string      `json:"id" toml:"id"`
	Text         string      `json:"text" toml:"text"`
	Choices      []ChoiceDef `json:"choices" toml:"choices"`
	OnComplete   []RewardDef `json:"on_complete,omitempty" toml:"on_complete"`
	TimerSeconds *int        `json:"timer_seconds,omitempty" toml:"timer_seconds"`
}

// ChoiceDef - вариант выбора. Next == nil означает завершение этапа.
type ChoiceDef struct {
	ID      string      `json:"id" toml:"id"`
	Text    string      `json:"text" toml:"text"`
	Effects []EffectDef `json:"effects,omitempty" toml:"effects"`
	Next    *string     `json:"next,omitempty" toml:"next"`
}

// CompletesStage reports whether selecting the choice finishes the current stage.
func (c ChoiceDef) CompletesStage() bool {
	return c.Next == nil
}

// EffectKind discriminates the EffectDef union.
type EffectKind string

const (
	EffectTag        EffectKind = "tag"
	EffectStat       EffectKind = "stat"
	EffectItem       EffectKind = "item"
	EffectSpawnChest EffectKind = "spawn_chest"
)

// UnmarshalText rejects unknown kinds for both JSON and TOML content.
func (k *EffectKind) UnmarshalText(text []byte) error {
	switch kind := EffectKind(strings.ToLower(strings.TrimSpace(string(text)))); kind {
	case EffectTag, EffectStat, EffectItem, EffectSpawnChest:
		*k = kind
		return nil
	default:
		return fmt.Errorf("%w: unknown effect type %q", ErrMalformedContent, string(text))
	}
}

// EffectDef - атомарная мутация состояния. Для tag/stat/item используются Key и Delta,
// для spawn_chest - ChestID.
type EffectDef struct {
	Kind    EffectKind `json:"type" toml:"type"`
	Key     string     `json:"key,omitempty" toml:"key"`
	Delta   int64      `json:"value,omitempty" toml:"value"`
	ChestID string     `json:"chest_id,omitempty" toml:"chest_id"`
}

// Stage returns the stage with the given key.
func (q *QuestContent) Stage(key string) (*StageDef, bool) {
	for i := range q.Stages {
		if q.Stages[i].Key == key {
			return &q.Stages[i], true
		}
	}
	return nil, false
}

// FirstStage returns the first stage in quest order.
func (q *QuestContent) FirstStage() (*StageDef, bool) {
	if len(q.Stages) == 0 {
		return nil, false
	}
	return &q.Stages[0], true
}

// Satisfied - все условия этапа выполнены для params (отсутствующий параметр = 0).
func (s *StageDef) Satisfied(params map[string]int64) bool {
	for _, cond := range s.Conditions {
		if params[cond.Param] < cond.Min {
			return false
		}
	}
	return true
}

// Scene returns the scene with the given id.
func (s *StageDef) Scene(id string) (*SceneDef, bool) {
	for i := range s.Scenes {
		if s.Scenes[i].ID == id {
			return &s.Scenes[i], true
		}
	}
	return nil, false
}

// FirstScene returns the first scene of the stage.
func (s *StageDef) FirstScene() (*SceneDef, bool) {
	if len(s.Scenes) == 0 {
		return nil, false
	}
	return &s.Scenes[0], true
}

// Choice returns the choice with the given id.
func (s *SceneDef) Choice(id string) (*ChoiceDef, bool) {
	for i := range s.Choices {
		if s.Choices[i].ID == id {
			return &s.Choices[i], true
		}
	}
	return nil, false
}

// Validate выполняет структурную проверку при загрузке контента.
// Ключи следующих этапов не проверяются: циклы и "концевые" ключи допустимы.
// Переходы next внутри этапа обязаны ссылаться на существующую сцену.
func (q *QuestContent) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: quest id is empty", ErrMalformedContent)
	}
	if len(q.Stages) == 0 {
		return fmt.Errorf("%w: quest %s has no stages", ErrMalformedContent, q.ID)
	}
	stageKeys := make(map[string]struct{}, len(q.Stages))
	for _, stage := range q.Stages {
		if stage.Key == "" {
			return fmt.Errorf("%w: stage with empty key in quest %s", ErrMalformedContent, q.ID)
		}
		if _, dup := stageKeys[stage.Key]; dup {
			return fmt.Errorf("%w: duplicate stage key %q", ErrMalformedContent, stage.Key)
		}
		stageKeys[stage.Key] = struct{}{}

		sceneIDs := make(map[string]struct{}, len(stage.Scenes))
		for _, scene := range stage.Scenes {
			if _, dup := sceneIDs[scene.ID]; dup {
				return fmt.Errorf("%w: duplicate scene id %q in stage %q", ErrMalformedContent, scene.ID, stage.Key)
			}
			sceneIDs[scene.ID] = struct{}{}
		}
		for _, scene := range stage.Scenes {
			choiceIDs := make(map[string]struct{}, len(scene.Choices))
			for _, choice := range scene.Choices {
				if _, dup := choiceIDs[choice.ID]; dup {
					return fmt.Errorf("%w: duplicate choice id %q in scene %q", ErrMalformedContent, choice.ID, scene.ID)
				}
				choiceIDs[choice.ID] = struct{}{}
				// next указывает на сцену того же этапа
				if choice.Next != nil {
					if _, ok := sceneIDs[*choice.Next]; !ok {
						return fmt.Errorf("%w: choice %q in scene %q leads to unknown scene %q",
							ErrMalformedContent, choice.ID, scene.ID, *choice.Next)
					}
				}
				if err := q.validateEffects(choice.Effects); err != nil {
					return fmt.Errorf("choice %q in scene %q: %w", choice.ID, scene.ID, err)
				}
			}
		}
	}
	for chestID, chest := range q.Chests {
		if _, ok := q.RewardPools[chest.PoolID]; !ok {
			return fmt.Errorf("%w: chest %q references missing pool %q", ErrMalformedContent, chestID, chest.PoolID)
		}
	}
	for poolID, pool := range q.RewardPools {
		for _, v := range pool.Variants {
			if v.Weight < 0 {
				return fmt.Errorf("%w: pool %q variant %q has negative weight", ErrMalformedContent, poolID, v.ID)
			}
		}
	}
	return nil
}

func (q *QuestContent) validateEffects(effects []EffectDef) error {
	for _, e := range effects {
		switch e.Kind {
		case EffectTag, EffectStat, EffectItem:
			if e.Key == "" {
				return fmt.Errorf("%w: %s effect without key", ErrMalformedContent, e.Kind)
			}
		case EffectSpawnChest:
			if _, ok := q.Chests[e.ChestID]; !ok {
				return fmt.Errorf("%w: spawn_chest references missing chest %q", ErrMalformedContent, e.ChestID)
			}
		default:
			return fmt.Errorf("%w: unknown effect type %q", ErrMalformedContent, e.Kind)
		}
	}
	return nil
}

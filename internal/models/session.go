package models

import (
	"time"

	"github.com/google/uuid"
)

// UserState - изменяемое состояние пользователя в рамках квеста.
// SceneID == nil означает "первая сцена текущего этапа".
type UserState struct {
	UserID    uuid.UUID        `db:"user_id" json:"user_id"`
	QuestID   string           `db:"quest_id" json:"quest_id"`
	StageKey  string           `db:"stage_key" json:"stage_key"`
	SceneID   *string          `db:"scene_id" json:"scene_id,omitempty"`
	Tags      map[string]int64 `db:"tags" json:"tags"`
	Stats     map[string]int64 `db:"stats" json:"stats"`
	Inventory map[string]int64 `db:"inventory" json:"inventory"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// NewUserState creates a fresh session positioned at the first scene of stageKey.
func NewUserState(userID uuid.UUID, questID, stageKey string) *UserState {
	return &UserState{
		UserID:    userID,
		QuestID:   questID,
		StageKey:  stageKey,
		Tags:      map[string]int64{},
		Stats:     map[string]int64{},
		Inventory: map[string]int64{},
	}
}

// EnsureMaps initialises nil counter maps (после чтения из хранилища).
func (s *UserState) EnsureMaps() {
	if s.Tags == nil {
		s.Tags = map[string]int64{}
	}
	if s.Stats == nil {
		s.Stats = map[string]int64{}
	}
	if s.Inventory == nil {
		s.Inventory = map[string]int64{}
	}
}

// Clone returns a deep copy of the state.
func (s *UserState) Clone() *UserState {
	out := *s
	if s.SceneID != nil {
		id := *s.SceneID
		out.SceneID = &id
	}
	out.Tags = CopyCounters(s.Tags)
	out.Stats = CopyCounters(s.Stats)
	out.Inventory = CopyCounters(s.Inventory)
	return &out
}

// CopyCounters copies a counter map; nil becomes an empty map.
func CopyCounters(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

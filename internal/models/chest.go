package models

import (
	"time"

	"github.com/google/uuid"
)

// ChestStatus - состояние экземпляра сундука.
type ChestStatus string

const (
	ChestStatusClosed ChestStatus = "closed"
	ChestStatusOpened ChestStatus = "opened"
)

// ChestInstance - сундук, выданный пользователю. Pool - замороженный снимок
// объединенного пула на момент выдачи; после открытия Result неизменяем.
type ChestInstance struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	QuestID   string       `json:"quest_id"`
	ChestID   string       `json:"chest_id"`
	Status    ChestStatus  `json:"status"`
	Pool      RewardPool   `json:"pool"`
	Result    *ChestResult `json:"result,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	OpenedAt  *time.Time   `json:"opened_at,omitempty"`
}

// Opened reports whether the chest has already been resolved.
func (c *ChestInstance) Opened() bool {
	return c.Status == ChestStatusOpened
}

// ChestResult - зафиксированный исход открытия сундука.
type ChestResult struct {
	ChestInstanceID uuid.UUID   `json:"chest_instance_id"`
	ChestID         string      `json:"chest_id"`
	VariantID       string      `json:"variant_id"`
	VariantIndex    int         `json:"variant_index"`
	Rewards         []RewardDef `json:"rewards"`
	CombinationID   string      `json:"combination_id"`
	Roll            float64     `json:"roll"`
	OpenedAt        time.Time   `json:"opened_at"`
}

// Package effects applies choice effects to a quest session.
package effects

import (
	"context"
	"fmt"

	"github.com/cyprus7/quest-engine/internal/models"
	"github.com/cyprus7/quest-engine/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AppliedEffect - запись аудита об одном примененном эффекте.
type AppliedEffect struct {
	Kind            models.EffectKind `json:"type"`
	Key             string            `json:"key,omitempty"`
	Delta           int64             `json:"delta,omitempty"`
	Before          int64             `json:"before"`
	After           int64             `json:"after"`
	ChestID         string            `json:"chest_id,omitempty"`
	ChestInstanceID *uuid.UUID        `json:"chest_instance_id,omitempty"`
}

// ApplyResult summarises a batch of effects.
type ApplyResult struct {
	EffectsApplied  []AppliedEffect        `json:"effects_applied"`
	Rewards         []models.RewardApplied `json:"rewards"`
	SpawnedChestIDs []uuid.UUID            `json:"spawned_chest_ids"`
}

// Resolver applies effects in list order; later effects see earlier mutations.
type Resolver struct {
	store  repository.ProgressStore
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store repository.ProgressStore, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.Named("EffectResolver"),
	}
}

// Resolve применяет эффекты к state в памяти, не сохраняя сессию.
// Сундуки создаются в хранилище сразу. Вызывающий владеет единственным
// SaveSession за запрос: туда же попадает переход сцены или этапа.
func (r *Resolver) Resolve(ctx context.Context, quest *models.QuestContent, state *models.UserState, effects []models.EffectDef) (*ApplyResult, error) {
	state.EnsureMaps()
	result := &ApplyResult{
		EffectsApplied:  make([]AppliedEffect, 0, len(effects)),
		Rewards:         []models.RewardApplied{},
		SpawnedChestIDs: []uuid.UUID{},
	}
	log := r.logger.With(zap.Stringer("userID", state.UserID), zap.String("questID", state.QuestID))

	for i, effect := range effects {
		switch effect.Kind {
		case models.EffectTag:
			result.EffectsApplied = append(result.EffectsApplied, addCounter(state.Tags, effect))
		case models.EffectStat:
			result.EffectsApplied = append(result.EffectsApplied, addCounter(state.Stats, effect))
		case models.EffectItem:
			result.EffectsApplied = append(result.EffectsApplied, addCounter(state.Inventory, effect))
			result.Rewards = append(result.Rewards, models.RewardApplied{
				Source: models.RewardSourceEffect,
				Type:   string(models.EffectItem),
				ID:     effect.Key,
				Amount: effect.Delta,
			})
		case models.EffectSpawnChest:
			id, err := r.spawnChest(ctx, quest, state, effect.ChestID)
			if err != nil {
				log.Error("Failed to spawn chest", zap.Int("effectIndex", i), zap.String("chestID", effect.ChestID), zap.Error(err))
				return nil, err
			}
			result.EffectsApplied = append(result.EffectsApplied, AppliedEffect{
				Kind:            models.EffectSpawnChest,
				ChestID:         effect.ChestID,
				ChestInstanceID: &id,
			})
			result.SpawnedChestIDs = append(result.SpawnedChestIDs, id)
		default:
			log.Error("Unknown effect type", zap.Int("effectIndex", i), zap.String("type", string(effect.Kind)))
			return nil, fmt.Errorf("%w: unknown effect type %q", models.ErrMalformedContent, effect.Kind)
		}
	}

	log.Debug("Effects resolved",
		zap.Int("effects", len(result.EffectsApplied)),
		zap.Int("spawnedChests", len(result.SpawnedChestIDs)))
	return result, nil
}

func addCounter(counters map[string]int64, effect models.EffectDef) AppliedEffect {
	before := counters[effect.Key]
	counters[effect.Key] = before + effect.Delta
	return AppliedEffect{
		Kind:   effect.Kind,
		Key:    effect.Key,
		Delta:  effect.Delta,
		Before: before,
		After:  counters[effect.Key],
	}
}

func (r *Resolver) spawnChest(ctx context.Context, quest *models.QuestContent, state *models.UserState, chestID string) (uuid.UUID, error) {
	chest, ok := quest.Chests[chestID]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", models.ErrUnknownChest, chestID)
	}
	base, ok := quest.RewardPools[chest.PoolID]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q (chest %q)", models.ErrUnknownPool, chest.PoolID, chestID)
	}
	// MergeOverrides возвращает глубокую копию: кэшированный пул не трогаем.
	snapshot := base.MergeOverrides(chest.Overrides)
	id, err := r.store.CreateChestInstance(ctx, state, chestID, snapshot)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create chest instance %q: %w", chestID, err)
	}
	return id, nil
}

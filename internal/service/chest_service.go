package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyprus7/quest-engine/internal/locker"
	"github.com/cyprus7/quest-engine/internal/lottery"
	"github.com/cyprus7/quest-engine/internal/messaging"
	"github.com/cyprus7/quest-engine/internal/metrics"
	"github.com/cyprus7/quest-engine/internal/models"
	"github.com/cyprus7/quest-engine/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChestService opens spawned chest instances.
//
//go:generate mockery --name ChestService --output ./mocks --outpkg mocks --case=underscore
type ChestService interface {
	// Open разыгрывает сундук не более одного раза; повторный вызов возвращает сохраненный результат.
	Open(ctx context.Context, userID uuid.UUID, questID string, chestInstanceID uuid.UUID, idempotencyKey string) (*ChestOpenResult, error)
}

type chestServiceImpl struct {
	store    repository.ProgressStore
	seeder   *lottery.Seeder
	exporter messaging.RewardsExporter
	locker   locker.Locker
	logger   *zap.Logger
	now      func() time.Time
}

// NewChestService creates a ChestService.
func NewChestService(
	store repository.ProgressStore,
	seeder *lottery.Seeder,
	exporter messaging.RewardsExporter,
	lock locker.Locker,
	logger *zap.Logger,
) ChestService {
	return &chestServiceImpl{
		store:    store,
		seeder:   seeder,
		exporter: exporter,
		locker:   lock,
		logger:   logger.Named("ChestService"),
		now:      time.Now,
	}
}

func (s *chestServiceImpl) Open(ctx context.Context, userID uuid.UUID, questID string, chestInstanceID uuid.UUID, idempotencyKey string) (*ChestOpenResult, error) {
	log := s.logger.With(
		zap.Stringer("userID", userID),
		zap.String("questID", questID),
		zap.Stringer("chestInstanceID", chestInstanceID),
		zap.String("idempotencyKey", idempotencyKey),
	)

	unlock, err := s.locker.Lock(ctx, locker.ChestKey(chestInstanceID.String()))
	if err != nil {
		log.Error("Failed to acquire chest lock", zap.Error(err))
		return nil, classify(err)
	}
	defer unlock()

	chest, err := s.loadChest(ctx, userID, questID, chestInstanceID)
	if err != nil {
		log.Warn("Chest open rejected", zap.Error(err))
		return nil, classify(err)
	}
	if chest.Opened() {
		log.Info("Chest already opened, returning stored result")
		return s.replay(chest)
	}

	seed := s.seeder.Seed(userID.String(), questID, chestInstanceID.String())
	u := s.seeder.UnitInterval(seed)
	index, err := lottery.PickIndex(chest.Pool.Weights(), u)
	if err != nil {
		log.Warn("Failed to draw chest variant", zap.Int("variants", len(chest.Pool.Variants)), zap.Error(err))
		return nil, classify(err)
	}
	variant := chest.Pool.Variants[index]
	rewards := models.CloneRewards(variant.Rewards)
	if rewards == nil {
		rewards = []models.RewardDef{}
	}

	// Время усекается до микросекунд, чтобы результат совпадал после чтения из JSONB.
	result := &models.ChestResult{
		ChestInstanceID: chest.ID,
		ChestID:         chest.ChestID,
		VariantID:       variant.ID,
		VariantIndex:    index,
		Rewards:         rewards,
		CombinationID:   lottery.CombinationID(rewards),
		Roll:            u,
		OpenedAt:        s.now().UTC().Truncate(time.Microsecond),
	}

	if err := s.store.MarkChestOpened(ctx, chest.ID, result); err != nil {
		if errors.Is(err, models.ErrChestAlreadyOpened) {
			log.Warn("Chest was opened concurrently, returning stored result")
			stored, getErr := s.store.GetChestInstance(ctx, chest.ID)
			if getErr != nil {
				return nil, classify(fmt.Errorf("failed to reload opened chest: %w", getErr))
			}
			return s.replay(stored)
		}
		log.Error("Failed to persist chest result", zap.Error(err))
		return nil, classify(fmt.Errorf("failed to persist chest result: %w", err))
	}

	s.export(ctx, chest, result, log)
	metrics.ChestOpened(questID, metrics.ChestOpenDrawn)
	log.Info("Chest opened",
		zap.String("variantID", result.VariantID),
		zap.String("combinationID", result.CombinationID),
		zap.Float64("roll", result.Roll))

	return &ChestOpenResult{ChestResult: *result, QuestID: questID}, nil
}

// loadChest проверяет принадлежность сундука квесту и пользователю.
// Чужой сундук выглядит как несуществующий.
func (s *chestServiceImpl) loadChest(ctx context.Context, userID uuid.UUID, questID string, id uuid.UUID) (*models.ChestInstance, error) {
	chest, err := s.store.GetChestInstance(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrChestNotFound, id)
		}
		return nil, fmt.Errorf("failed to get chest instance: %w", err)
	}
	if chest.QuestID != questID {
		return nil, fmt.Errorf("%w: chest %s belongs to quest %q", models.ErrChestNotInQuest, id, chest.QuestID)
	}
	if chest.UserID != userID {
		return nil, fmt.Errorf("%w: %s", models.ErrChestNotFound, id)
	}
	return chest, nil
}

func (s *chestServiceImpl) replay(chest *models.ChestInstance) (*ChestOpenResult, error) {
	if chest.Result == nil {
		return nil, fmt.Errorf("%w: opened chest %s has no result", models.ErrMalformedChest, chest.ID)
	}
	metrics.ChestOpened(chest.QuestID, metrics.ChestOpenReplayed)
	return &ChestOpenResult{ChestResult: *chest.Result, QuestID: chest.QuestID, Replayed: true}, nil
}

// export - best effort: ошибка логируется и считается, но не возвращается.
func (s *chestServiceImpl) export(ctx context.Context, chest *models.ChestInstance, result *models.ChestResult, log *zap.Logger) {
	applied := make([]models.RewardApplied, 0, len(result.Rewards))
	for _, r := range result.Rewards {
		applied = append(applied, models.AppliedFrom(models.RewardSourceChest, r))
	}
	chestID := chest.ID
	payload := messaging.RewardsExportPayload{
		EventID:         uuid.NewString(),
		UserID:          chest.UserID,
		QuestID:         chest.QuestID,
		ChestInstanceID: &chestID,
		CombinationID:   result.CombinationID,
		Rewards:         applied,
		OccurredAt:      result.OpenedAt,
	}
	if err := s.exporter.Export(ctx, payload); err != nil {
		metrics.RewardExportFailed()
		log.Error("Failed to export chest rewards", zap.String("eventID", payload.EventID), zap.Error(err))
	}
}

package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionKey struct {
	userID  uuid.UUID
	questID string
}

// Compile-time check
var _ ProgressStore = (*memoryProgressStore)(nil)

// memoryProgressStore хранит все в памяти процесса. Используется в тестах и в dev-режиме.
type memoryProgressStore struct {
	mu       sync.Mutex
	sessions map[sessionKey]*models.UserState
	chests   map[uuid.UUID]*models.ChestInstance
	logger   *zap.Logger
}

// NewMemoryProgressStore creates an empty in-memory store.
func NewMemoryProgressStore(logger *zap.Logger) ProgressStore {
	return &memoryProgressStore{
		sessions: make(map[sessionKey]*models.UserState),
		chests:   make(map[uuid.UUID]*models.ChestInstance),
		logger:   logger.Named("MemoryProgressStore"),
	}
}

func (s *memoryProgressStore) GetOrCreateSession(ctx context.Context, userID uuid.UUID, questID, defaultStage string) (*models.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{userID: userID, questID: questID}
	if state, ok := s.sessions[key]; ok {
		return state.Clone(), nil
	}
	now := time.Now().UTC()
	state := models.NewUserState(userID, questID, defaultStage)
	state.CreatedAt = now
	state.UpdatedAt = now
	s.sessions[key] = state
	s.logger.Debug("Session created", zap.Stringer("userID", userID), zap.String("questID", questID))
	return state.Clone(), nil
}

func (s *memoryProgressStore) SaveSession(ctx context.Context, state *models.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := state.Clone()
	stored.UpdatedAt = time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	s.sessions[sessionKey{userID: state.UserID, questID: state.QuestID}] = stored
	return nil
}

func (s *memoryProgressStore) CreateChestInstance(ctx context.Context, owner *models.UserState, chestID string, pool models.RewardPool) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.chests[id] = &models.ChestInstance{
		ID:        id,
		UserID:    owner.UserID,
		QuestID:   owner.QuestID,
		ChestID:   chestID,
		Status:    models.ChestStatusClosed,
		Pool:      pool.Clone(),
		CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

func (s *memoryProgressStore) GetChestInstance(ctx context.Context, id uuid.UUID) (*models.ChestInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chest, ok := s.chests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneChest(chest), nil
}

func (s *memoryProgressStore) MarkChestOpened(ctx context.Context, id uuid.UUID, result *models.ChestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chest, ok := s.chests[id]
	if !ok {
		return fmt.Errorf("mark chest %s opened: %w", id, models.ErrNotFound)
	}
	if chest.Opened() {
		return models.ErrChestAlreadyOpened
	}
	stored := cloneResult(result)
	openedAt := stored.OpenedAt
	chest.Status = models.ChestStatusOpened
	chest.Result = stored
	chest.OpenedAt = &openedAt
	return nil
}

func cloneChest(c *models.ChestInstance) *models.ChestInstance {
	out := *c
	out.Pool = c.Pool.Clone()
	if c.Result != nil {
		out.Result = cloneResult(c.Result)
	}
	if c.OpenedAt != nil {
		t := *c.OpenedAt
		out.OpenedAt = &t
	}
	return &out
}

func cloneResult(r *models.ChestResult) *models.ChestResult {
	out := *r
	out.Rewards = models.CloneRewards(r.Rewards)
	return &out
}

package mocks

import (
	"context"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// ProgressStore is a mock of repository.ProgressStore
type ProgressStore struct {
	mock.Mock
}

func (m *ProgressStore) GetOrCreateSession(ctx context.Context, userID uuid.UUID, questID, defaultStage string) (*models.UserState, error) {
	args := m.Called(ctx, userID, questID, defaultStage)
	state, _ := args.Get(0).(*models.UserState)
	return state, args.Error(1)
}

func (m *ProgressStore) SaveSession(ctx context.Context, state *models.UserState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *ProgressStore) CreateChestInstance(ctx context.Context, owner *models.UserState, chestID string, pool models.RewardPool) (uuid.UUID, error) {
	args := m.Called(ctx, owner, chestID, pool)
	id, _ := args.Get(0).(uuid.UUID)
	return id, args.Error(1)
}

func (m *ProgressStore) GetChestInstance(ctx context.Context, id uuid.UUID) (*models.ChestInstance, error) {
	args := m.Called(ctx, id)
	chest, _ := args.Get(0).(*models.ChestInstance)
	return chest, args.Error(1)
}

func (m *ProgressStore) MarkChestOpened(ctx context.Context, id uuid.UUID, result *models.ChestResult) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

package mocks

import (
	"context"

	"github.com/cyprus7/quest-engine/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// ChestService is a mock of service.ChestService
type ChestService struct {
	mock.Mock
}

func (m *ChestService) Open(ctx context.Context, userID uuid.UUID, questID string, chestInstanceID uuid.UUID, idempotencyKey string) (*service.ChestOpenResult, error) {
	args := m.Called(ctx, userID, questID, chestInstanceID, idempotencyKey)
	result, _ := args.Get(0).(*service.ChestOpenResult)
	return result, args.Error(1)
}

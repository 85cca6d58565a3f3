package mocks

import (
	"context"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/stretchr/testify/mock"
)

// Repository is a mock of content.Repository
type Repository struct {
	mock.Mock
}

func (m *Repository) Get(ctx context.Context, questID, locale string) (*models.QuestContent, error) {
	args := m.Called(ctx, questID, locale)
	quest, _ := args.Get(0).(*models.QuestContent)
	return quest, args.Error(1)
}

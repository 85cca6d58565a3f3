package mocks

import (
	"context"

	"github.com/cyprus7/quest-engine/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// QuestService is a mock of service.QuestService
type QuestService struct {
	mock.Mock
}

func (m *QuestService) GetState(ctx context.Context, userID uuid.UUID, questID, locale string) (*service.StateView, error) {
	args := m.Called(ctx, userID, questID, locale)
	view, _ := args.Get(0).(*service.StateView)
	return view, args.Error(1)
}

func (m *QuestService) GetStagePreview(ctx context.Context, questID string, parameters map[string]int64, locale string) (*service.PreviewView, error) {
	args := m.Called(ctx, questID, parameters, locale)
	view, _ := args.Get(0).(*service.PreviewView)
	return view, args.Error(1)
}

func (m *QuestService) ApplyChoice(ctx context.Context, userID uuid.UUID, questID string, req service.ChoiceRequest, locale string) (*service.ChoiceOutcome, error) {
	args := m.Called(ctx, userID, questID, req, locale)
	outcome, _ := args.Get(0).(*service.ChoiceOutcome)
	return outcome, args.Error(1)
}

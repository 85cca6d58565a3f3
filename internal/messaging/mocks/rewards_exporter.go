package mocks

import (
	"context"

	"github.com/cyprus7/quest-engine/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// RewardsExporter is a mock of messaging.RewardsExporter
type RewardsExporter struct {
	mock.Mock
}

func (m *RewardsExporter) Export(ctx context.Context, payload messaging.RewardsExportPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

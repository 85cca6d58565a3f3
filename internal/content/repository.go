// Package content provides read-only access to quest definitions.
package content

import (
	"context"

	"github.com/cyprus7/quest-engine/internal/models"
)

// Repository returns immutable quest content by quest id and locale.
// Implementations must be safe for concurrent use.
//
//go:generate mockery --name Repository --output ./mocks --outpkg mocks --case=underscore
type Repository interface {
	// Get returns models.ErrQuestNotFound when no content exists for the pair.
	Get(ctx context.Context, questID, locale string) (*models.QuestContent, error)
}

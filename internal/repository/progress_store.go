// Package repository holds the Progress Store: durable session and chest state.
package repository

import (
	"context"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChestSpawner creates chest instances. It is the only part of the store the
// effect resolver needs.
type ChestSpawner interface {
	// CreateChestInstance stores a closed chest with a frozen pool snapshot and returns its id.
	CreateChestInstance(ctx context.Context, owner *models.UserState, chestID string, pool models.RewardPool) (uuid.UUID, error)
}

// ProgressStore defines the persistence operations the quest core relies on.
// Сериализацию записей по ключу (сессия / сундук) обеспечивает вызывающая сторона
// через locker; реализации дополнительно защищают open-once условным обновлением.
//
//go:generate mockery --name ProgressStore --output ./mocks --outpkg mocks --case=underscore
type ProgressStore interface {
	ChestSpawner

	// GetOrCreateSession returns the session, creating it at defaultStage on first access.
	GetOrCreateSession(ctx context.Context, userID uuid.UUID, questID, defaultStage string) (*models.UserState, error)

	// SaveSession persists the whole session.
	SaveSession(ctx context.Context, state *models.UserState) error

	// GetChestInstance returns models.ErrNotFound if the chest does not exist.
	GetChestInstance(ctx context.Context, id uuid.UUID) (*models.ChestInstance, error)

	// MarkChestOpened stores the result and flips status to opened.
	// Returns models.ErrChestAlreadyOpened if the chest is not closed.
	MarkChestOpened(ctx context.Context, id uuid.UUID, result *models.ChestResult) error
}

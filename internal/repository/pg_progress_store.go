package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	sessionFields = `user_id, quest_id, stage_key, scene_id, tags, stats, inventory, created_at, updated_at`

	insertSessionIfMissingQuery = `
        INSERT INTO quest_sessions (user_id, quest_id, stage_key)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, quest_id) DO NOTHING
    `
	getSessionQuery = `
        SELECT ` + sessionFields + `
        FROM quest_sessions
        WHERE user_id = $1 AND quest_id = $2
    `
	upsertSessionQuery = `
        INSERT INTO quest_sessions (user_id, quest_id, stage_key, scene_id, tags, stats, inventory, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (user_id, quest_id) DO UPDATE SET
            stage_key = EXCLUDED.stage_key,
            scene_id = EXCLUDED.scene_id,
            tags = EXCLUDED.tags,
            stats = EXCLUDED.stats,
            inventory = EXCLUDED.inventory,
            updated_at = EXCLUDED.updated_at
    `

	chestFields = `id, user_id, quest_id, chest_id, status, pool, result, created_at, opened_at`

	insertChestQuery = `
        INSERT INTO chest_instances (id, user_id, quest_id, chest_id, status, pool, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	getChestQuery = `
        SELECT ` + chestFields + `
        FROM chest_instances
        WHERE id = $1
    `
	// Условное обновление: открыть можно только закрытый сундук.
	markChestOpenedQuery = `
        UPDATE chest_instances
        SET status = $2, result = $3, opened_at = $4
        WHERE id = $1 AND status = $5
    `
	chestExistsQuery = `SELECT EXISTS (SELECT 1 FROM chest_instances WHERE id = $1)`
)

type sessionRow struct {
	UserID    uuid.UUID `db:"user_id"`
	QuestID   string    `db:"quest_id"`
	StageKey  string    `db:"stage_key"`
	SceneID   *string   `db:"scene_id"`
	Tags      []byte    `db:"tags"`
	Stats     []byte    `db:"stats"`
	Inventory []byte    `db:"inventory"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type chestRow struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	QuestID   string     `db:"quest_id"`
	ChestID   string     `db:"chest_id"`
	Status    string     `db:"status"`
	Pool      []byte     `db:"pool"`
	Result    []byte     `db:"result"`
	CreatedAt time.Time  `db:"created_at"`
	OpenedAt  *time.Time `db:"opened_at"`
}

// Compile-time check to ensure pgProgressStore implements the interface
var _ ProgressStore = (*pgProgressStore)(nil)

// pgProgressStore is the PostgreSQL implementation of ProgressStore.
type pgProgressStore struct {
	db     DBTX // *pgxpool.Pool или pgx.Tx
	logger *zap.Logger
}

// NewPgProgressStore creates a new store instance.
func NewPgProgressStore(db DBTX, logger *zap.Logger) ProgressStore {
	return &pgProgressStore{
		db:     db,
		logger: logger.Named("PgProgressStore"),
	}
}

func (r *pgProgressStore) GetOrCreateSession(ctx context.Context, userID uuid.UUID, questID, defaultStage string) (*models.UserState, error) {
	logFields := []zap.Field{zap.Stringer("userID", userID), zap.String("questID", questID)}

	tag, err := r.db.Exec(ctx, insertSessionIfMissingQuery, userID, questID, defaultStage)
	if err != nil {
		r.logger.Error("Failed to create quest session", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to create quest session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.logger.Info("Quest session created", append(logFields, zap.String("stageKey", defaultStage))...)
	}

	var row sessionRow
	if err := pgxscan.Get(ctx, r.db, &row, getSessionQuery, userID, questID); err != nil {
		r.logger.Error("Failed to get quest session", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to get quest session: %w", err)
	}
	return row.toModel()
}

func (r *pgProgressStore) SaveSession(ctx context.Context, state *models.UserState) error {
	logFields := []zap.Field{zap.Stringer("userID", state.UserID), zap.String("questID", state.QuestID)}

	tags, err := json.Marshal(models.CopyCounters(state.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	stats, err := json.Marshal(models.CopyCounters(state.Stats))
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	inventory, err := json.Marshal(models.CopyCounters(state.Inventory))
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}

	state.UpdatedAt = time.Now().UTC()
	if _, err := r.db.Exec(ctx, upsertSessionQuery,
		state.UserID,    // $1
		state.QuestID,   // $2
		state.StageKey,  // $3
		state.SceneID,   // $4
		tags,            // $5
		stats,           // $6
		inventory,       // $7
		state.UpdatedAt, // $8
	); err != nil {
		r.logger.Error("Failed to save quest session", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка при сохранении сессии квеста: %w", err)
	}
	r.logger.Debug("Quest session saved", append(logFields, zap.String("stageKey", state.StageKey))...)
	return nil
}

func (r *pgProgressStore) CreateChestInstance(ctx context.Context, owner *models.UserState, chestID string, pool models.RewardPool) (uuid.UUID, error) {
	id := uuid.New()
	logFields := []zap.Field{
		zap.Stringer("chestInstanceID", id),
		zap.Stringer("userID", owner.UserID),
		zap.String("questID", owner.QuestID),
		zap.String("chestID", chestID),
	}

	snapshot, err := json.Marshal(pool)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal pool snapshot: %w", err)
	}
	if _, err := r.db.Exec(ctx, insertChestQuery,
		id, owner.UserID, owner.QuestID, chestID, string(models.ChestStatusClosed), snapshot, time.Now().UTC(),
	); err != nil {
		r.logger.Error("Failed to create chest instance", append(logFields, zap.Error(err))...)
		return uuid.Nil, fmt.Errorf("failed to create chest instance: %w", err)
	}
	r.logger.Info("Chest instance created", logFields...)
	return id, nil
}

func (r *pgProgressStore) GetChestInstance(ctx context.Context, id uuid.UUID) (*models.ChestInstance, error) {
	var row chestRow
	if err := pgxscan.Get(ctx, r.db, &row, getChestQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get chest instance", zap.Stringer("chestInstanceID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get chest instance %s: %w", id, err)
	}
	return row.toModel()
}

func (r *pgProgressStore) MarkChestOpened(ctx context.Context, id uuid.UUID, result *models.ChestResult) error {
	log := r.logger.With(zap.Stringer("chestInstanceID", id))

	snapshot, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal chest result: %w", err)
	}
	tag, err := r.db.Exec(ctx, markChestOpenedQuery,
		id, string(models.ChestStatusOpened), snapshot, result.OpenedAt, string(models.ChestStatusClosed),
	)
	if err != nil {
		log.Error("Failed to mark chest opened", zap.Error(err))
		return fmt.Errorf("failed to mark chest %s opened: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		log.Info("Chest marked opened", zap.String("variantID", result.VariantID))
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, chestExistsQuery, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check chest %s existence: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("mark chest %s opened: %w", id, models.ErrNotFound)
	}
	log.Warn("Chest was already opened")
	return models.ErrChestAlreadyOpened
}

func (row *sessionRow) toModel() (*models.UserState, error) {
	state := &models.UserState{
		UserID:    row.UserID,
		QuestID:   row.QuestID,
		StageKey:  row.StageKey,
		SceneID:   row.SceneID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	for _, f := range []struct {
		raw []byte
		dst *map[string]int64
	}{
		{row.Tags, &state.Tags},
		{row.Stats, &state.Stats},
		{row.Inventory, &state.Inventory},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session counters: %w", err)
		}
	}
	state.EnsureMaps()
	return state, nil
}

func (row *chestRow) toModel() (*models.ChestInstance, error) {
	chest := &models.ChestInstance{
		ID:        row.ID,
		UserID:    row.UserID,
		QuestID:   row.QuestID,
		ChestID:   row.ChestID,
		Status:    models.ChestStatus(row.Status),
		CreatedAt: row.CreatedAt,
		OpenedAt:  row.OpenedAt,
	}
	if err := json.Unmarshal(row.Pool, &chest.Pool); err != nil {
		return nil, fmt.Errorf("%w: pool of chest %s: %v", models.ErrMalformedChest, row.ID, err)
	}
	if len(row.Result) > 0 {
		var result models.ChestResult
		if err := json.Unmarshal(row.Result, &result); err != nil {
			return nil, fmt.Errorf("%w: result of chest %s: %v", models.ErrMalformedChest, row.ID, err)
		}
		chest.Result = &result
	}
	return chest, nil
}

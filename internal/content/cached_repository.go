package content

import (
	"context"
	"fmt"

	"github.com/cyprus7/quest-engine/internal/models"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is used when a non-positive size is configured.
const DefaultCacheSize = 256

// CachedRepository кэширует неизменяемый контент по ключу (quest id, locale).
// Одновременные промахи по одному ключу схлопываются в одну загрузку.
type CachedRepository struct {
	next   Repository
	cache  *lru.Cache
	group  singleflight.Group
	logger *zap.Logger
}

// NewCachedRepository wraps next with an LRU cache.
func NewCachedRepository(next Repository, size int, logger *zap.Logger) (*CachedRepository, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create content cache: %w", err)
	}
	return &CachedRepository{
		next:   next,
		cache:  cache,
		logger: logger.Named("CachedContentRepo"),
	}, nil
}

// Get returns cached content or loads it from the wrapped repository.
// Ошибки не кэшируются.
func (r *CachedRepository) Get(ctx context.Context, questID, locale string) (*models.QuestContent, error) {
	key := questID + "|" + locale
	if v, ok := r.cache.Get(key); ok {
		return v.(*models.QuestContent), nil
	}
	// Загрузка общая для всех ожидающих: отмена первого запроса не должна ронять остальных.
	fillCtx := context.WithoutCancel(ctx)
	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		quest, err := r.next.Get(fillCtx, questID, locale)
		if err != nil {
			return nil, err
		}
		r.cache.Add(key, quest)
		return quest, nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Quest content loaded into cache",
		zap.String("questID", questID), zap.String("locale", locale), zap.Bool("shared", shared))
	return v.(*models.QuestContent), nil
}

// Purge drops every cached entry (после выкладки нового контента).
func (r *CachedRepository) Purge() {
	r.cache.Purge()
}

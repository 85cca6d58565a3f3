package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

var supportedExtensions = []string{".json", ".toml"}

// FileRepository читает квесты из дерева <questID>/<locale>.json|.toml.
type FileRepository struct {
	fsys          fs.FS
	defaultLocale string
	logger        *zap.Logger
}

// NewFileRepository creates a repository over fsys (обычно os.DirFS(cfg.ContentDir)).
func NewFileRepository(fsys fs.FS, defaultLocale string, logger *zap.Logger) *FileRepository {
	return &FileRepository{
		fsys:          fsys,
		defaultLocale: defaultLocale,
		logger:        logger.Named("FileContentRepo"),
	}
}

// Get loads, decodes and validates the quest. If the requested locale is missing
// the default locale is used.
func (r *FileRepository) Get(ctx context.Context, questID, locale string) (*models.QuestContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validPathSegment(questID) || (locale != "" && !validPathSegment(locale)) {
		return nil, fmt.Errorf("%w: %q", models.ErrQuestNotFound, questID)
	}
	log := r.logger.With(zap.String("questID", questID), zap.String("locale", locale))

	locales := []string{locale}
	if r.defaultLocale != "" && r.defaultLocale != locale {
		locales = append(locales, r.defaultLocale)
	}
	for _, loc := range locales {
		if loc == "" {
			continue
		}
		for _, ext := range supportedExtensions {
			name := path.Join(questID, loc+ext)
			raw, err := fs.ReadFile(r.fsys, name)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				log.Error("Failed to read quest content file", zap.String("file", name), zap.Error(err))
				return nil, fmt.Errorf("failed to read quest content %s: %w", name, err)
			}
			quest, err := decode(raw, ext)
			if err != nil {
				log.Error("Failed to decode quest content", zap.String("file", name), zap.Error(err))
				return nil, err
			}
			if quest.ID == "" {
				quest.ID = questID
			}
			if quest.Locale == "" {
				quest.Locale = loc
			}
			if err := quest.Validate(); err != nil {
				log.Error("Quest content failed validation", zap.String("file", name), zap.Error(err))
				return nil, err
			}
			if loc != locale {
				log.Debug("Requested locale missing, using default", zap.String("usedLocale", loc))
			}
			return quest, nil
		}
	}
	log.Warn("Quest content not found")
	return nil, fmt.Errorf("%w: %s/%s", models.ErrQuestNotFound, questID, locale)
}

func decode(raw []byte, ext string) (*models.QuestContent, error) {
	var quest models.QuestContent
	switch ext {
	case ".toml":
		if err := toml.NewDecoder(bytes.NewReader(raw)).Decode(&quest); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedContent, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&quest); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedContent, err)
		}
	}
	return &quest, nil
}

// validPathSegment не пускает обход каталогов через id/locale.
func validPathSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

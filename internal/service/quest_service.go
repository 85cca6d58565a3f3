// Package service contains the quest state machine and the chest opening service.
package service

import (
	"context"
	"fmt"

	"github.com/cyprus7/quest-engine/internal/content"
	"github.com/cyprus7/quest-engine/internal/effects"
	"github.com/cyprus7/quest-engine/internal/locker"
	"github.com/cyprus7/quest-engine/internal/metrics"
	"github.com/cyprus7/quest-engine/internal/models"
	"github.com/cyprus7/quest-engine/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuestService определяет интерфейс для прохождения квеста.
//
//go:generate mockery --name QuestService --output ./mocks --outpkg mocks --case=underscore
type QuestService interface {
	GetState(ctx context.Context, userID uuid.UUID, questID, locale string) (*StateView, error)
	GetStagePreview(ctx context.Context, questID string, parameters map[string]int64, locale string) (*PreviewView, error)
	ApplyChoice(ctx context.Context, userID uuid.UUID, questID string, req ChoiceRequest, locale string) (*ChoiceOutcome, error)
}

type questServiceImpl struct {
	content  content.Repository
	store    repository.ProgressStore
	resolver *effects.Resolver
	locker   locker.Locker
	logger   *zap.Logger
}

// NewQuestService creates a QuestService.
func NewQuestService(
	contentRepo content.Repository,
	store repository.ProgressStore,
	resolver *effects.Resolver,
	lock locker.Locker,
	logger *zap.Logger,
) QuestService {
	return &questServiceImpl{
		content:  contentRepo,
		store:    store,
		resolver: resolver,
		locker:   lock,
		logger:   logger.Named("QuestService"),
	}
}

// GetState возвращает текущую сцену пользователя, создавая сессию при первом обращении.
func (s *questServiceImpl) GetState(ctx context.Context, userID uuid.UUID, questID, locale string) (*StateView, error) {
	log := s.logger.With(zap.Stringer("userID", userID), zap.String("questID", questID), zap.String("locale", locale))

	quest, err := s.content.Get(ctx, questID, locale)
	if err != nil {
		log.Warn("Failed to load quest content", zap.Error(err))
		return nil, classify(err)
	}
	state, err := s.loadSession(ctx, quest, userID)
	if err != nil {
		log.Error("Failed to load session", zap.Error(err))
		return nil, classify(err)
	}
	view, err := buildStateView(quest, state)
	if err != nil {
		log.Warn("Failed to build state view", zap.String("stageKey", state.StageKey), zap.Error(err))
		return nil, classify(err)
	}
	return view, nil
}

// GetStagePreview проходит этапы по порядку и останавливается на первом,
// условия которого не выполнены. Состояние сессий не затрагивается.
func (s *questServiceImpl) GetStagePreview(ctx context.Context, questID string, parameters map[string]int64, locale string) (*PreviewView, error) {
	quest, err := s.content.Get(ctx, questID, locale)
	if err != nil {
		s.logger.Warn("Failed to load quest content for preview",
			zap.String("questID", questID), zap.String("locale", locale), zap.Error(err))
		return nil, classify(err)
	}
	current, ok := quest.FirstStage()
	if !ok {
		return nil, fmt.Errorf("%w: quest %s has no stages", models.ErrMalformedContent, questID)
	}
	for i := range quest.Stages {
		if !quest.Stages[i].Satisfied(parameters) {
			break
		}
		current = &quest.Stages[i]
	}

	preview := &PreviewView{StageKey: current.Key}
	if scene, ok := current.FirstScene(); ok {
		preview.Scene = newSceneView(scene)
	}
	return preview, nil
}

// ApplyChoice применяет выбор под блокировкой сессии и сохраняет сессию один раз.
func (s *questServiceImpl) ApplyChoice(ctx context.Context, userID uuid.UUID, questID string, req ChoiceRequest, locale string) (*ChoiceOutcome, error) {
	log := s.logger.With(zap.Stringer("userID", userID), zap.String("questID", questID), zap.String("choiceID", req.ChoiceID))

	quest, err := s.content.Get(ctx, questID, locale)
	if err != nil {
		log.Warn("Failed to load quest content", zap.Error(err))
		return nil, classify(err)
	}

	unlock, err := s.locker.Lock(ctx, locker.SessionKey(userID.String(), questID))
	if err != nil {
		log.Error("Failed to acquire session lock", zap.Error(err))
		return nil, classify(err)
	}
	defer unlock()

	state, err := s.loadSession(ctx, quest, userID)
	if err != nil {
		log.Error("Failed to load session", zap.Error(err))
		return nil, classify(err)
	}

	stage, ok := quest.Stage(state.StageKey)
	if !ok {
		log.Warn("Choice requested on a stage missing from content", zap.String("stageKey", state.StageKey))
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownStage, state.StageKey)
	}
	scene, err := actingScene(stage, state, req.CurrentSceneID)
	if err != nil {
		log.Warn("Failed to resolve acting scene", zap.Error(err))
		return nil, err
	}
	choice, ok := scene.Choice(req.ChoiceID)
	if !ok {
		log.Warn("Unknown choice", zap.String("sceneID", scene.ID))
		return nil, fmt.Errorf("%w: %q in scene %q", models.ErrUnknownChoice, req.ChoiceID, scene.ID)
	}

	before := takeSnapshot(state)

	applied, err := s.resolver.Resolve(ctx, quest, state, choice.Effects)
	if err != nil {
		return nil, classify(err)
	}
	rewards := applied.Rewards

	stageCompleted := choice.CompletesStage()
	if stageCompleted {
		for _, reward := range scene.OnComplete {
			state.Inventory[inventoryKey(reward)] += reward.Amount
			rewards = append(rewards, models.AppliedFrom(models.RewardSourceSceneComplete, reward))
		}
		state.StageKey = stage.Connect.NextStageKey
		state.SceneID = nil
	} else {
		next, ok := stage.Scene(*choice.Next)
		if !ok {
			// Контент не прошел бы Validate; сессию в таком случае не трогаем.
			log.Error("Choice leads to a scene missing from the stage", zap.String("next", *choice.Next))
			return nil, fmt.Errorf("%w: %q in stage %q", models.ErrUnknownScene, *choice.Next, stage.Key)
		}
		nextID := next.ID
		state.SceneID = &nextID
	}

	if err := s.store.SaveSession(ctx, state); err != nil {
		log.Error("Failed to save session", zap.Error(err))
		return nil, classify(fmt.Errorf("failed to save session: %w", err))
	}

	after := takeSnapshot(state)
	view, err := buildStateView(quest, state)
	if err != nil {
		log.Error("Choice applied but next state cannot be rendered", zap.Error(err))
		return nil, classify(err)
	}

	metrics.ChoiceApplied(questID, stageCompleted)
	metrics.ChestsSpawned(questID, len(applied.SpawnedChestIDs))
	log.Info("Choice applied",
		zap.String("sceneID", scene.ID),
		zap.Bool("stageCompleted", stageCompleted),
		zap.String("stageKey", state.StageKey))

	return &ChoiceOutcome{
		PreviousSceneID: scene.ID,
		ChoiceID:        choice.ID,
		StageCompleted:  stageCompleted,
		Before:          before,
		After:           after,
		Delta:           diffSnapshots(before, after),
		EffectsApplied:  applied.EffectsApplied,
		Rewards:         rewards,
		SpawnedChestIDs: applied.SpawnedChestIDs,
		State:           view,
	}, nil
}

func (s *questServiceImpl) loadSession(ctx context.Context, quest *models.QuestContent, userID uuid.UUID) (*models.UserState, error) {
	first, ok := quest.FirstStage()
	if !ok {
		return nil, fmt.Errorf("%w: quest %s has no stages", models.ErrMalformedContent, quest.ID)
	}
	state, err := s.store.GetOrCreateSession(ctx, userID, quest.ID, first.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	state.EnsureMaps()
	return state, nil
}

// actingScene: сцена из запроса, иначе сохраненная в сессии, иначе первая сцена этапа.
func actingScene(stage *models.StageDef, state *models.UserState, requested *string) (*models.SceneDef, error) {
	sceneID := state.SceneID
	if requested != nil {
		sceneID = requested
	}
	if sceneID == nil {
		scene, ok := stage.FirstScene()
		if !ok {
			return nil, fmt.Errorf("%w: stage %q has no scenes", models.ErrUnknownScene, stage.Key)
		}
		return scene, nil
	}
	scene, ok := stage.Scene(*sceneID)
	if !ok {
		return nil, fmt.Errorf("%w: %q in stage %q", models.ErrUnknownScene, *sceneID, stage.Key)
	}
	return scene, nil
}

func buildStateView(quest *models.QuestContent, state *models.UserState) (*StateView, error) {
	view := &StateView{
		QuestID:   quest.ID,
		StageKey:  state.StageKey,
		Tags:      models.CopyCounters(state.Tags),
		Stats:     models.CopyCounters(state.Stats),
		Inventory: models.CopyCounters(state.Inventory),
	}
	stage, ok := quest.Stage(state.StageKey)
	if !ok {
		view.Completed = true
		return view, nil
	}
	if state.SceneID == nil {
		if scene, ok := stage.FirstScene(); ok {
			view.Scene = newSceneView(scene)
		}
		return view, nil
	}
	scene, ok := stage.Scene(*state.SceneID)
	if !ok {
		return nil, fmt.Errorf("%w: %q in stage %q", models.ErrUnknownScene, *state.SceneID, stage.Key)
	}
	view.Scene = newSceneView(scene)
	return view, nil
}

// inventoryKey - награды сцены зачисляются по id, без id - по типу.
func inventoryKey(r models.RewardDef) string {
	if r.ID != "" {
		return r.ID
	}
	return r.Type
}

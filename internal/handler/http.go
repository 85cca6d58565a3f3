// Package handler exposes the quest engine over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cyprus7/quest-engine/internal/models"
	"github.com/cyprus7/quest-engine/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HeaderIdempotencyKey - заголовок ключа идемпотентности открытия сундука.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderChestReplayed выставляется в "true", если вернулся ранее сохраненный результат.
const HeaderChestReplayed = "X-Chest-Replayed"

// QuestHandler обрабатывает HTTP запросы квестов и сундуков.
type QuestHandler struct {
	quests        service.QuestService
	chests        service.ChestService
	verify        TokenVerifier
	defaultLocale string
	logger        *zap.Logger
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(quests service.QuestService, chests service.ChestService, verify TokenVerifier, defaultLocale string, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{
		quests:        quests,
		chests:        chests,
		verify:        verify,
		defaultLocale: defaultLocale,
		logger:        logger.Named("QuestHandler"),
	}
}

// RegisterRoutes регистрирует маршруты сервиса.
func (h *QuestHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// preview анонимный: не читает и не меняет сессию
	e.POST("/quests/:quest_id/preview", h.previewStage)

	quests := e.Group("/quests/:quest_id", AuthMiddleware(h.verify, h.logger))
	{
		quests.GET("/state", h.getState)
		quests.POST("/choices", h.applyChoice)
		quests.POST("/chests/:chest_id/open", h.openChest)
	}
}

func (h *QuestHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *QuestHandler) getState(c echo.Context) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err, h.logger)
	}
	view, err := h.quests.GetState(c.Request().Context(), userID, c.Param("quest_id"), h.locale(c.QueryParam("locale")))
	if err != nil {
		return handleServiceError(c, err, h.logger)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *QuestHandler) previewStage(c echo.Context) error {
	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: validationMessage(err)})
	}
	view, err := h.quests.GetStagePreview(c.Request().Context(), c.Param("quest_id"), req.Parameters, h.locale(req.Locale))
	if err != nil {
		return handleServiceError(c, err, h.logger)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *QuestHandler) applyChoice(c echo.Context) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err, h.logger)
	}
	var req ChoiceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: validationMessage(err)})
	}
	outcome, err := h.quests.ApplyChoice(c.Request().Context(), userID, c.Param("quest_id"), service.ChoiceRequest{
		CurrentSceneID: req.CurrentSceneID,
		ChoiceID:       req.ChoiceID,
	}, h.locale(req.Locale))
	if err != nil {
		return handleServiceError(c, err, h.logger)
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *QuestHandler) openChest(c echo.Context) error {
	userID, err := userIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err, h.logger)
	}
	chestID, err := uuid.Parse(c.Param("chest_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid chest id"})
	}
	result, err := h.chests.Open(c.Request().Context(), userID, c.Param("quest_id"), chestID, c.Request().Header.Get(HeaderIdempotencyKey))
	if err != nil {
		return handleServiceError(c, err, h.logger)
	}
	c.Response().Header().Set(HeaderChestReplayed, strconv.FormatBool(result.Replayed))
	return c.JSON(http.StatusOK, result)
}

func (h *QuestHandler) locale(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return h.defaultLocale
}

func userIDFromContext(c echo.Context) (uuid.UUID, error) {
	userID, ok := models.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, models.ErrUnauthorized
	}
	return userID, nil
}

func validationMessage(err error) string {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if msg, ok := httpErr.Message.(string); ok {
			return msg
		}
	}
	return "Invalid request"
}

// handleServiceError сопоставляет классы ошибок со статусами HTTP.
// Детали внутренних ошибок наружу не отдаются.
func handleServiceError(c echo.Context, err error, logger *zap.Logger) error {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		apiErr = APIError{Message: "Unauthorized"}
	case errors.Is(err, models.ErrInternalServer):
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	case errors.Is(err, models.ErrInvalidRequest):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrNotPermitted):
		statusCode = http.StatusForbidden
		apiErr = APIError{Message: err.Error()}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(statusCode, apiErr)
}

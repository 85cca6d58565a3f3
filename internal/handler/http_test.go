package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyprus7/quest-engine/internal/auth"
	"github.com/cyprus7/quest-engine/internal/handler"
	"github.com/cyprus7/quest-engine/internal/models"
	"github.com/cyprus7/quest-engine/internal/service"
	serviceMocks "github.com/cyprus7/quest-engine/internal/service/mocks"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	e      *echo.Echo
	quests *serviceMocks.QuestService
	chests *serviceMocks.ChestService
	token  string
	userID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	verifier, err := auth.NewJWTVerifier("test-secret", zap.NewNop())
	require.NoError(t, err)

	userID := uuid.New()
	token, err := verifier.Sign(models.Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	require.NoError(t, err)

	quests := new(serviceMocks.QuestService)
	chests := new(serviceMocks.ChestService)

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	h := handler.NewQuestHandler(quests, chests, verifier.VerifyToken, "en", zap.NewNop())
	h.RegisterRoutes(e)

	return &testServer{e: e, quests: quests, chests: chests, token: token, userID: userID}
}

func (s *testServer) do(method, path, body string, authorized bool, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authorized {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestGetState(t *testing.T) {
	t.Run("success uses default locale", func(t *testing.T) {
		s := newTestServer(t)
		s.quests.On("GetState", mock.Anything, s.userID, "forest", "en").
			Return(&service.StateView{QuestID: "forest", StageKey: "s1"}, nil).Once()

		rec := s.do(http.MethodGet, "/quests/forest/state", "", true, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var view service.StateView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, "s1", view.StageKey)
		s.quests.AssertExpectations(t)
	})

	t.Run("locale from query", func(t *testing.T) {
		s := newTestServer(t)
		s.quests.On("GetState", mock.Anything, s.userID, "forest", "ru").
			Return(&service.StateView{QuestID: "forest"}, nil).Once()

		rec := s.do(http.MethodGet, "/quests/forest/state?locale=ru", "", true, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		s.quests.AssertExpectations(t)
	})

	t.Run("missing token", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(http.MethodGet, "/quests/forest/state", "", false, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		s.quests.AssertNotCalled(t, "GetState", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid token", func(t *testing.T) {
		s := newTestServer(t)
		s.token = "garbage"
		rec := s.do(http.MethodGet, "/quests/forest/state", "", true, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("error classes map to statuses", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
		}{
			{models.ErrQuestNotFound, http.StatusBadRequest},
			{models.ErrUnknownScene, http.StatusBadRequest},
			{models.ErrChestNotFound, http.StatusForbidden},
			{fmt.Errorf("%w: %w", models.ErrInternalServer, errors.New("pg: connection refused")), http.StatusInternalServerError},
			{errors.New("boom"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			s := newTestServer(t)
			s.quests.On("GetState", mock.Anything, s.userID, "forest", "en").Return(nil, tc.err).Once()

			rec := s.do(http.MethodGet, "/quests/forest/state", "", true, nil)
			assert.Equal(t, tc.status, rec.Code, tc.err.Error())
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", decodeError(t, rec).Message)
			}
		}
	})
}

func TestPreviewStage(t *testing.T) {
	s := newTestServer(t)
	s.quests.On("GetStagePreview", mock.Anything, "forest", map[string]int64{"x": 2}, "en").
		Return(&service.PreviewView{StageKey: "s2"}, nil).Once()

	rec := s.do(http.MethodPost, "/quests/forest/preview", `{"parameters":{"x":2}}`, false, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view service.PreviewView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "s2", view.StageKey)
	s.quests.AssertExpectations(t)
}

func TestApplyChoice(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := newTestServer(t)
		scene := "clearing"
		s.quests.On("ApplyChoice", mock.Anything, s.userID, "forest",
			service.ChoiceRequest{CurrentSceneID: &scene, ChoiceID: "rest"}, "en").
			Return(&service.ChoiceOutcome{ChoiceID: "rest", StageCompleted: true}, nil).Once()

		rec := s.do(http.MethodPost, "/quests/forest/choices", `{"current_scene_id":"clearing","choice_id":"rest"}`, true, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var outcome service.ChoiceOutcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
		assert.True(t, outcome.StageCompleted)
		s.quests.AssertExpectations(t)
	})

	t.Run("missing choice id", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/quests/forest/choices", `{"locale":"en"}`, true, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		s.quests.AssertNotCalled(t, "ApplyChoice", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/quests/forest/choices", `{"choice_id":`, true, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOpenChest(t *testing.T) {
	t.Run("passes idempotency key", func(t *testing.T) {
		s := newTestServer(t)
		chestID := uuid.New()
		s.chests.On("Open", mock.Anything, s.userID, "forest", chestID, "req-42").
			Return(&service.ChestOpenResult{ChestResult: models.ChestResult{ChestInstanceID: chestID, VariantID: "a"}, QuestID: "forest"}, nil).Once()

		rec := s.do(http.MethodPost, "/quests/forest/chests/"+chestID.String()+"/open", "", true,
			map[string]string{handler.HeaderIdempotencyKey: "req-42"})
		require.Equal(t, http.StatusOK, rec.Code)

		var result service.ChestOpenResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "a", result.VariantID)
		assert.Equal(t, "false", rec.Header().Get(handler.HeaderChestReplayed))
		s.chests.AssertExpectations(t)
	})

	t.Run("replay is reported in header only", func(t *testing.T) {
		s := newTestServer(t)
		chestID := uuid.New()
		s.chests.On("Open", mock.Anything, s.userID, "forest", chestID, "").
			Return(&service.ChestOpenResult{ChestResult: models.ChestResult{ChestInstanceID: chestID, VariantID: "a"}, QuestID: "forest", Replayed: true}, nil).Once()

		rec := s.do(http.MethodPost, "/quests/forest/chests/"+chestID.String()+"/open", "", true, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", rec.Header().Get(handler.HeaderChestReplayed))
		assert.NotContains(t, rec.Body.String(), "replayed")
	})

	t.Run("chest in another quest", func(t *testing.T) {
		s := newTestServer(t)
		chestID := uuid.New()
		s.chests.On("Open", mock.Anything, s.userID, "desert", chestID, "").Return(nil, models.ErrChestNotInQuest).Once()

		rec := s.do(http.MethodPost, "/quests/desert/chests/"+chestID.String()+"/open", "", true, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid chest id", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/quests/forest/chests/not-a-uuid/open", "", true, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", false, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "", false, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TokenVerifier проверяет строку токена и возвращает claims.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

// AuthMiddleware проверяет Bearer-токен и кладет UserID в контекст запроса.
func AuthMiddleware(verify TokenVerifier, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			log := logger.With(zap.String("path", req.URL.Path))

			authHeader := req.Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Debug("Authorization header missing")
				return c.JSON(http.StatusUnauthorized, APIError{Message: "Unauthorized: Missing token"})
			}
			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || tokenString == "" {
				log.Warn("Malformed Authorization header")
				return c.JSON(http.StatusUnauthorized, APIError{Message: "Unauthorized: Malformed token header"})
			}

			claims, err := verify(req.Context(), tokenString)
			if err != nil {
				if !errors.Is(err, models.ErrUnauthorized) {
					log.Error("Unexpected token verification error", zap.Error(err))
					return c.JSON(http.StatusInternalServerError, APIError{Message: "Internal server error"})
				}
				msg := "Unauthorized: Invalid token"
				if errors.Is(err, models.ErrTokenExpired) {
					msg = "Unauthorized: Token expired"
				}
				return c.JSON(http.StatusUnauthorized, APIError{Message: msg})
			}

			c.SetRequest(req.WithContext(models.WithUserID(req.Context(), claims.UserID)))
			return next(c)
		}
	}
}

// Package auth verifies user access tokens issued by the auth service.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JWTVerifier проверяет HMAC-подписанные JWT.
type JWTVerifier struct {
	secret []byte
	logger *zap.Logger
}

// NewJWTVerifier creates a JWTVerifier. Если логгер nil, используется Noop.
func NewJWTVerifier(secret string, logger *zap.Logger) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTVerifier{secret: []byte(secret), logger: logger.Named("JWTVerifier")}, nil
}

// VerifyToken проверяет подпись и срок действия токена и возвращает claims.
// Все ошибки оборачивают models.ErrUnauthorized.
func (v *JWTVerifier) VerifyToken(_ context.Context, tokenString string) (*models.Claims, error) {
	log := v.logger.With(zap.String("tokenSnippet", tokenSnippet(tokenString)))
	claims := &models.Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		log.Warn("Failed to parse or verify token", zap.Error(err))
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, models.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, models.ErrTokenMalformed
		default:
			return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
		}
	}
	if !token.Valid {
		return nil, models.ErrTokenInvalid
	}
	if claims.UserID == uuid.Nil {
		log.Warn("Token missing UserID")
		return nil, fmt.Errorf("%w: user_id missing", models.ErrTokenInvalid)
	}
	return claims, nil
}

// Sign issues a token for userID. Используется в тестах и локальной отладке.
func (v *JWTVerifier) Sign(claims models.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func tokenSnippet(tokenString string) string {
	const limit = 15
	if len(tokenString) > limit {
		return tokenString[:limit] + "..."
	}
	return tokenString
}

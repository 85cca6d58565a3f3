package models

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims представляет поля JWT, которые выдает auth-сервис.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Roles  []string  `json:"roles"`
	jwt.RegisteredClaims
}

// contextKey - приватный тип для ключей контекста, чтобы избежать коллизий.
type contextKey string

// UserContextKey используется как ключ для хранения UserID в контексте запроса.
const UserContextKey contextKey = "userID"

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserContextKey, userID)
}

// GetUserIDFromContext извлекает UserID из контекста.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserContextKey).(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}

package handler

import (
	"net/http"
	"time"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// EchoZapLogger логирует каждый запрос через zap. Уровень зависит от статуса ответа.
func EchoZapLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			err := next(c)
			if err != nil {
				// Пусть echo запишет ответ, чтобы в логе был итоговый статус.
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
			}
			if id := res.Header().Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if userID, ok := models.GetUserIDFromContext(req.Context()); ok {
				fields = append(fields, zap.Stringer("userID", userID))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			switch n := res.Status; {
			case n >= http.StatusInternalServerError:
				log.Error("Server error", fields...)
			case n >= http.StatusBadRequest:
				log.Warn("Client error", fields...)
			default:
				log.Info("Success", fields...)
			}
			return nil
		}
	}
}

package models

import (
	"errors"
	"fmt"
)

// Классы ошибок. Транспортный слой сопоставляет их со статусами HTTP.
var (
	// ErrInvalidRequest - запрос ссылается на то, что нельзя разрешить (контент или устаревшее состояние).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotPermitted - запрос корректен, но недопустим в текущем состоянии.
	ErrNotPermitted = errors.New("operation not permitted")
	// ErrInternalServer - все остальное. Детали наружу не отдаются.
	ErrInternalServer = errors.New("internal server error")

	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// Content integrity errors
var (
	ErrQuestNotFound    = fmt.Errorf("%w: quest not found", ErrInvalidRequest)
	ErrUnknownStage     = fmt.Errorf("%w: unknown stage", ErrInvalidRequest)
	ErrUnknownChest     = fmt.Errorf("%w: unknown chest", ErrInvalidRequest)
	ErrUnknownPool      = fmt.Errorf("%w: unknown pool", ErrInvalidRequest)
	ErrMalformedContent = fmt.Errorf("%w: malformed content", ErrInvalidRequest)
	ErrMalformedChest   = fmt.Errorf("%w: malformed chest snapshot", ErrInvalidRequest)
)

// State conflict errors (обычно устаревший scene id на клиенте)
var (
	ErrUnknownScene  = fmt.Errorf("%w: unknown scene", ErrInvalidRequest)
	ErrUnknownChoice = fmt.Errorf("%w: unknown choice", ErrInvalidRequest)
)

// Domain logic errors
var (
	ErrChestNotFound      = fmt.Errorf("%w: chest not found", ErrNotPermitted)
	ErrChestNotInQuest    = fmt.Errorf("%w: chest not in this quest", ErrNotPermitted)
	ErrDegeneratePool     = fmt.Errorf("%w: degenerate pool", ErrNotPermitted)
	ErrInvalidWeight      = fmt.Errorf("%w: invalid weight", ErrNotPermitted)
	ErrChestAlreadyOpened = errors.New("chest already opened")
)

// Token errors
var (
	ErrTokenInvalid   = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenExpired   = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrTokenMalformed = fmt.Errorf("%w: malformed token", ErrUnauthorized)
)

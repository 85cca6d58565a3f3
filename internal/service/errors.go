package service

import (
	"errors"
	"fmt"

	"github.com/cyprus7/quest-engine/internal/models"
)

// classify приводит ошибку к одному из классов models.Err*.
// Все, что не относится к известному классу, считается внутренней ошибкой.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, models.ErrInvalidRequest),
		errors.Is(err, models.ErrNotPermitted),
		errors.Is(err, models.ErrInternalServer),
		errors.Is(err, models.ErrUnauthorized):
		return err
	default:
		return fmt.Errorf("%w: %w", models.ErrInternalServer, err)
	}
}

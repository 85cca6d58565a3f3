package handler

// PreviewRequest - тело POST /quests/:quest_id/preview.
type PreviewRequest struct {
	Parameters map[string]int64 `json:"parameters"`
	Locale     string           `json:"locale" validate:"omitempty,max=16"`
}

// ChoiceRequest - тело POST /quests/:quest_id/choices.
type ChoiceRequest struct {
	CurrentSceneID *string `json:"current_scene_id,omitempty" validate:"omitempty,min=1,max=128"`
	ChoiceID       string  `json:"choice_id" validate:"required,max=128"`
	Locale         string  `json:"locale" validate:"omitempty,max=16"`
}

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

package discord

import (
	"log/slog"

	"lerngruppe/internal/ports/input"
	"lerngruppe/internal/ports/output"
)

// Handler handles Discord interactions using use cases.
type Handler struct {
	participantUseCase input.ParticipantUseCase
	translator         output.T
	locale             string
	logger             *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(
	participantUseCase input.ParticipantUseCase,
	translator output.T,
	locale string,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		participantUseCase: participantUseCase,
		translator:         translator,
		locale:             locale,
		logger:             logger,
	}
}

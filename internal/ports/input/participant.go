package input

import (
	"context"

	"lerngruppe/internal/domain/entities"
)

// ParticipantUseCase is the surface offered to form and admin collaborators.
type ParticipantUseCase interface {
	AddParticipant(ctx context.Context, participant entities.Participant) (string, error)
	GetParticipants(ctx context.Context) ([]entities.Participant, error)
	DeleteParticipantByToken(ctx context.Context, token string) (bool, error)
	DeleteParticipantByID(ctx context.Context, id string) error
	SubscribeToParticipants(ctx context.Context, fn func(entities.Snapshot)) (unsubscribe func(), err error)
	WatchParticipants(ctx context.Context) (<-chan entities.Snapshot, error)
	MigrateLegacyCache(ctx context.Context) (int, error)
}

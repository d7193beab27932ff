package output

import (
	"context"

	"lerngruppe/internal/domain/entities"
)

// ParticipantRepository is the authoritative store of participant records.
type ParticipantRepository interface {
	Add(ctx context.Context, participant entities.Participant) (string, error)
	List(ctx context.Context) ([]entities.Participant, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
	Subscribe(ctx context.Context, fn func([]entities.Participant, error)) (unsubscribe func(), err error)
}

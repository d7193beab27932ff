// Package registry implements the participant store on top of a generic
// document store.
package registry

import (
	"context"
	"errors"
	"fmt"

	"lerngruppe/internal/domain"
	"lerngruppe/internal/domain/entities"
	"lerngruppe/internal/ports/output"
	"lerngruppe/pkg/document"
)

// CollectionName is the document collection holding participants.
const CollectionName = "participants"

var _ output.ParticipantRepository = (*ParticipantRepository)(nil)

// ParticipantRepository implements output.ParticipantRepository over an
// output.DocumentStore. The logical id and delete token are payload fields,
// so deletes scan the collection and remove the first match by row key.
type ParticipantRepository struct {
	store      output.DocumentStore
	collection string
}

// NewParticipantRepository creates a ParticipantRepository.
func NewParticipantRepository(store output.DocumentStore) *ParticipantRepository {
	return &ParticipantRepository{store: store, collection: CollectionName}
}

// unavailable tags a store failure with domain.ErrStoreUnavailable while
// keeping the transport cause.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func (r *ParticipantRepository) Add(ctx context.Context, participant entities.Participant) (string, error) {
	if err := participant.Validate(); err != nil {
		return "", err
	}
	if participant.ID != "" {
		return r.addWithID(ctx, participant)
	}

	fields := participantToFields(participant)
	for range maxKeyAttempts {
		key, err := r.store.Create(ctx, r.collection, fields)
		if err != nil {
			return "", unavailable("add participant", err)
		}
		taken, err := r.keyTaken(ctx, key)
		if err != nil {
			return "", err
		}
		if !taken {
			return key, nil
		}
		// Row keys are not reused, so the next Create gets a free one.
		if err := r.store.Delete(ctx, r.collection, key); err != nil {
			return "", unavailable("add participant", err)
		}
	}
	return "", fmt.Errorf("add participant: %w: no free row key after %d attempts", domain.ErrStoreUnavailable, maxKeyAttempts)
}

// maxKeyAttempts bounds the retries when a fresh row key collides with a
// payload id.
const maxKeyAttempts = 3

// addWithID writes a record carrying its own id. The id must not be the
// logical id of a live record, payload id or row key alike.
func (r *ParticipantRepository) addWithID(ctx context.Context, participant entities.Participant) (string, error) {
	docs, err := r.store.List(ctx, r.collection)
	if err != nil {
		return "", unavailable("add participant", err)
	}
	for _, doc := range docs {
		if logicalID(doc) == participant.ID {
			return "", fmt.Errorf("%w: id %q déjà attribué", domain.ErrInvalidRecord, participant.ID)
		}
	}
	if _, err := r.store.Create(ctx, r.collection, participantToFields(participant)); err != nil {
		return "", unavailable("add participant", err)
	}
	return participant.ID, nil
}

// keyTaken reports whether another live record already uses key as its
// payload id.
func (r *ParticipantRepository) keyTaken(ctx context.Context, key string) (bool, error) {
	docs, err := r.store.List(ctx, r.collection)
	if err != nil {
		return false, unavailable("add participant", err)
	}
	for _, doc := range docs {
		if doc.Key != key && doc.Fields.String(entities.KeyID) == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *ParticipantRepository) List(ctx context.Context) ([]entities.Participant, error) {
	docs, err := r.store.List(ctx, r.collection)
	if err != nil {
		return nil, unavailable("list participants", err)
	}
	return documentsToParticipants(docs), nil
}

func (r *ParticipantRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return r.deleteFirst(ctx, "delete participant by id", func(doc document.Document) bool {
		return logicalID(doc) == id
	})
}

func (r *ParticipantRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return r.deleteFirst(ctx, "delete participant by token", func(doc document.Document) bool {
		return doc.Fields.String(entities.KeyDeleteToken) == token
	})
}

func (r *ParticipantRepository) deleteFirst(ctx context.Context, op string, match func(document.Document) bool) (bool, error) {
	docs, err := r.store.List(ctx, r.collection)
	if err != nil {
		return false, unavailable(op, err)
	}
	for _, doc := range docs {
		if !match(doc) {
			continue
		}
		if err := r.store.Delete(ctx, r.collection, doc.Key); err != nil {
			return false, unavailable(op, err)
		}
		return true, nil
	}
	return false, nil
}

func (r *ParticipantRepository) Subscribe(ctx context.Context, fn func([]entities.Participant, error)) (func(), error) {
	stop, err := r.store.Watch(ctx, r.collection, func(docs []document.Document, err error) {
		if err != nil {
			fn(nil, unavailable("watch participants", err))
			return
		}
		fn(documentsToParticipants(docs), nil)
	})
	if err != nil {
		return nil, unavailable("subscribe participants", err)
	}
	return stop, nil
}

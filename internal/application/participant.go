package application

import (
	"context"
	"log/slog"

	"lerngruppe/internal/domain/entities"
	"lerngruppe/internal/ports/input"
	"lerngruppe/internal/ports/output"
)

var _ input.ParticipantUseCase = (*ParticipantService)(nil)

// ParticipantService is the registry surface used by the form and admin
// collaborators.
type ParticipantService struct {
	participantRepo output.ParticipantRepository
	notifier        *ChangeNotifier
	migrator        *MigrationEngine
	logger          *slog.Logger
	metrics         output.Metrics
}

// NewParticipantService wires the three registry components together.
// metrics may be nil.
func NewParticipantService(
	participantRepo output.ParticipantRepository,
	notifier *ChangeNotifier,
	migrator *MigrationEngine,
	logger *slog.Logger,
	metrics output.Metrics,
) *ParticipantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParticipantService{
		participantRepo: participantRepo,
		notifier:        notifier,
		migrator:        migrator,
		logger:          logger,
		metrics:         metrics,
	}
}

func (s *ParticipantService) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, err)
	}
}

func (s *ParticipantService) AddParticipant(ctx context.Context, participant entities.Participant) (string, error) {
	id, err := s.participantRepo.Add(ctx, participant)
	s.observe("add", err)
	if err != nil {
		s.logger.Error("add participant failed", "error", err)
		return "", err
	}
	s.logger.Info("participant added", "id", id)
	return id, nil
}

func (s *ParticipantService) GetParticipants(ctx context.Context) ([]entities.Participant, error) {
	participants, err := s.participantRepo.List(ctx)
	s.observe("list", err)
	if err != nil {
		s.logger.Error("list participants failed", "error", err)
		return nil, err
	}
	s.logger.Debug("participants loaded", "count", len(participants))
	return participants, nil
}

func (s *ParticipantService) DeleteParticipantByToken(ctx context.Context, token string) (bool, error) {
	deleted, err := s.participantRepo.DeleteByToken(ctx, token)
	s.observe("delete_by_token", err)
	if err != nil {
		s.logger.Error("delete participant by token failed", "error", err)
		return false, err
	}
	if deleted {
		s.logger.Info("participant withdrew with delete token")
	}
	return deleted, nil
}

// DeleteParticipantByID removes the record with the given id. Nothing to
// delete is only logged.
func (s *ParticipantService) DeleteParticipantByID(ctx context.Context, id string) error {
	deleted, err := s.participantRepo.DeleteByID(ctx, id)
	s.observe("delete_by_id", err)
	if err != nil {
		s.logger.Error("delete participant by id failed", "id", id, "error", err)
		return err
	}
	if !deleted {
		s.logger.Warn("participant not found", "id", id)
		return nil
	}
	s.logger.Info("participant deleted", "id", id)
	return nil
}

func (s *ParticipantService) SubscribeToParticipants(ctx context.Context, fn func(entities.Snapshot)) (func(), error) {
	unsubscribe, err := s.notifier.Subscribe(ctx, fn)
	s.observe("subscribe", err)
	if err != nil {
		s.logger.Error("subscribe to participants failed", "error", err)
		return nil, err
	}
	return unsubscribe, nil
}

func (s *ParticipantService) WatchParticipants(ctx context.Context) (<-chan entities.Snapshot, error) {
	ch, err := s.notifier.Watch(ctx)
	s.observe("subscribe", err)
	if err != nil {
		s.logger.Error("watch participants failed", "error", err)
		return nil, err
	}
	return ch, nil
}

func (s *ParticipantService) MigrateLegacyCache(ctx context.Context) (int, error) {
	n, err := s.migrator.Migrate(ctx)
	s.observe("migrate", err)
	if err != nil {
		s.logger.Error("legacy migration failed", "migrated", n, "error", err)
		return n, err
	}
	return n, nil
}

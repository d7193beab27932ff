package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lerngruppe/internal/domain"
	"lerngruppe/internal/domain/entities"
	"lerngruppe/internal/ports/output"
)

// LegacyCacheKey is the well-known key of the serialized participant array.
const LegacyCacheKey = "participants"

// participantWriter is the part of the repository migration may use.
type participantWriter interface {
	Add(ctx context.Context, participant entities.Participant) (string, error)
	List(ctx context.Context) ([]entities.Participant, error)
}

// MigrationEngine copies legacy cache records into the repository without
// duplicating records that are already live.
type MigrationEngine struct {
	cache   output.LegacyCache
	repo    participantWriter
	logger  *slog.Logger
	metrics output.Metrics
}

// NewMigrationEngine creates a MigrationEngine. metrics may be nil.
func NewMigrationEngine(cache output.LegacyCache, repo participantWriter, logger *slog.Logger, metrics output.Metrics) *MigrationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &MigrationEngine{cache: cache, repo: repo, logger: logger, metrics: metrics}
}

// dedupeKey identifies a record across the cache and the store: its id, or
// its delete token for records that never got one.
func dedupeKey(p entities.Participant) string {
	if p.ID != "" {
		return "id:" + p.ID
	}
	return "token:" + p.DeleteToken
}

// Migrate returns the number of records added. The live set is read once at
// the start; two concurrent runs can both add the same record. On failure the
// records added so far stay in place and the count so far is returned.
func (m *MigrationEngine) Migrate(ctx context.Context) (int, error) {
	legacy, err := m.readLegacy(ctx)
	if err != nil {
		return 0, err
	}
	if len(legacy) == 0 {
		m.logger.Info("no legacy participants to migrate")
		return 0, nil
	}

	existing, err := m.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list existing participants: %w", err)
	}
	live := make(map[string]struct{}, len(existing)*2)
	for _, p := range existing {
		live["id:"+p.ID] = struct{}{}
		if p.DeleteToken != "" {
			live["token:"+p.DeleteToken] = struct{}{}
		}
	}

	migrated := 0
	defer func() {
		if m.metrics != nil && migrated > 0 {
			m.metrics.RecordsMigrated(migrated)
		}
	}()
	for _, p := range legacy {
		key := dedupeKey(p)
		if _, ok := live[key]; ok {
			continue
		}
		if _, err := m.repo.Add(ctx, p); err != nil {
			m.logger.Error("legacy migration interrupted", "migrated", migrated, "error", err)
			return migrated, fmt.Errorf("migrate participant %q: %w", p.ID, err)
		}
		live[key] = struct{}{}
		migrated++
	}

	m.logger.Info("legacy participants migrated", "migrated", migrated, "legacy", len(legacy))
	return migrated, nil
}

func (m *MigrationEngine) readLegacy(ctx context.Context) ([]entities.Participant, error) {
	raw, err := m.cache.Get(ctx, LegacyCacheKey)
	if errors.Is(err, output.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy cache: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var legacy []entities.Participant
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLegacyCacheCorrupt, err)
	}
	return legacy, nil
}

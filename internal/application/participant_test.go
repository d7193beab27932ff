package application

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lerngruppe/internal/domain"
	"lerngruppe/internal/domain/entities"
	"lerngruppe/internal/infrastructure/legacycache"
	"lerngruppe/internal/infrastructure/memstore"
	"lerngruppe/internal/infrastructure/registry"
)

type recordingMetrics struct {
	mu        sync.Mutex
	ops       map[string]int
	failures  map[string]int
	observers int
	delivered int
	migrated  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ops: map[string]int{}, failures: map[string]int{}}
}

func (m *recordingMetrics) ObserveOperation(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op]++
	if err != nil {
		m.failures[op]++
	}
}

func (m *recordingMetrics) SetObservers(n int) {
	m.mu.Lock()
	m.observers = n
	m.mu.Unlock()
}

func (m *recordingMetrics) SnapshotDelivered() {
	m.mu.Lock()
	m.delivered++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordsMigrated(n int) {
	m.mu.Lock()
	m.migrated += n
	m.mu.Unlock()
}

type serviceFixture struct {
	svc     *ParticipantService
	store   *memstore.Store
	cache   *legacycache.MemoryCache
	metrics *recordingMetrics
	logs    *bytes.Buffer
}

func newServiceFixture() *serviceFixture {
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := memstore.New()
	cache := legacycache.NewMemoryCache()
	metrics := newRecordingMetrics()
	repo := registry.NewParticipantRepository(store)
	svc := NewParticipantService(
		repo,
		NewChangeNotifier(repo, logger, metrics),
		NewMigrationEngine(cache, repo, logger, metrics),
		logger,
		metrics,
	)
	return &serviceFixture{svc: svc, store: store, cache: cache, metrics: metrics, logs: logs}
}

func TestParticipantService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	id, err := f.svc.AddParticipant(ctx, entities.Participant{Name: "Anna", DeleteToken: "tok1", Timestamp: jan1})
	require.NoError(t, err)
	require.Equal(t, "r1", id)

	ps, err := f.svc.GetParticipants(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)

	deleted, err := f.svc.DeleteParticipantByToken(ctx, "tok1")
	require.NoError(t, err)
	require.True(t, deleted)
	require.NotContains(t, f.logs.String(), "tok1", "delete tokens are never logged")

	ps, err = f.svc.GetParticipants(ctx)
	require.NoError(t, err)
	require.Empty(t, ps)

	require.Equal(t, 1, f.metrics.ops["add"])
	require.Equal(t, 2, f.metrics.ops["list"])
	require.Equal(t, 1, f.metrics.ops["delete_by_token"])
}

func TestParticipantService_DeleteByIDNotFoundOnlyLogs(t *testing.T) {
	f := newServiceFixture()

	require.NoError(t, f.svc.DeleteParticipantByID(context.Background(), "ghost"))
	require.Contains(t, f.logs.String(), "participant not found")
	require.Contains(t, f.logs.String(), "id=ghost")
}

func TestParticipantService_ErrorsSurface(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	_, err := f.svc.AddParticipant(ctx, entities.Participant{Name: "no token", Timestamp: jan1})
	require.ErrorIs(t, err, domain.ErrInvalidRecord)
	require.Equal(t, 1, f.metrics.failures["add"])

	f.store.Close()
	_, err = f.svc.GetParticipants(ctx)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.ErrorIs(t, err, memstore.ErrClosed)
	require.NotEmpty(t, err.Error())

	err = f.svc.DeleteParticipantByID(ctx, "r1")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = f.svc.SubscribeToParticipants(ctx, func(entities.Snapshot) {})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestParticipantService_SubscribeAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	var rec recorder
	unsubscribe, err := f.svc.SubscribeToParticipants(ctx, rec.record)
	require.NoError(t, err)

	_, err = f.svc.AddParticipant(ctx, entities.Participant{Name: "Anna", DeleteToken: "tok1", Timestamp: jan1})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snaps := rec.all()
		return len(snaps) > 0 && len(snaps[len(snaps)-1].Participants) == 1
	}, time.Second, 5*time.Millisecond)

	unsubscribe()
	seen := len(rec.all())
	require.Equal(t, 0, f.store.WatcherCount(registry.CollectionName))

	_, err = f.svc.AddParticipant(ctx, entities.Participant{Name: "Ben", DeleteToken: "tok2", Timestamp: jan1})
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	require.Len(t, rec.all(), seen, "no callbacks after unsubscribe")
}

func TestParticipantService_WatchParticipants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newServiceFixture()

	ch, err := f.svc.WatchParticipants(ctx)
	require.NoError(t, err)

	_, err = f.svc.AddParticipant(ctx, entities.Participant{Name: "Anna", DeleteToken: "tok1", Timestamp: jan1})
	require.NoError(t, err)

	timeout := time.After(time.Second)
	for {
		select {
		case s := <-ch:
			require.NoError(t, s.Err)
			if len(s.Participants) == 1 {
				return
			}
		case <-timeout:
			require.Fail(t, "snapshot with the new participant never arrived")
			return
		}
	}
}

func TestParticipantService_Migrate(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	f.cache.Set(LegacyCacheKey, `[{"id":"A","name":"Anna","deleteToken":"a","timestamp":"2024-01-01T00:00:00.000Z"}]`)

	n, err := f.svc.MigrateLegacyCache(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, f.metrics.migrated)

	f.cache.Set(LegacyCacheKey, `[oops`)
	_, err = f.svc.MigrateLegacyCache(ctx)
	require.True(t, errors.Is(err, domain.ErrLegacyCacheCorrupt))
}

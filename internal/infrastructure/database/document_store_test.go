package database

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lerngruppe/pkg/document"
)

// testStore connects to REGISTRY_TEST_DATABASE_URL and migrates it. Each test
// gets its own collection so runs do not interfere.
func testStore(t *testing.T) (*DocumentStore, string) {
	t.Helper()
	dsn := os.Getenv("REGISTRY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("REGISTRY_TEST_DATABASE_URL not set")
	}
	require.NoError(t, RunMigrations(dsn, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := NewPool(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewDocumentStore(pool, nil), "test-" + uuid.NewString()
}

func TestDocumentStore_CreateListDelete(t *testing.T) {
	s, coll := testStore(t)
	ctx := context.Background()

	ts := document.Timestamp{Seconds: 1704067200, Nanos: 5}
	k1, err := s.Create(ctx, coll, document.Fields{"name": "Anna", "timestamp": ts})
	require.NoError(t, err)
	k2, err := s.Create(ctx, coll, document.Fields{"name": "Ben"})
	require.NoError(t, err)

	docs, err := s.List(ctx, coll)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, k1, docs[0].Key)
	require.Equal(t, "Anna", docs[0].Fields.String("name"))
	require.Equal(t, ts, docs[0].Fields["timestamp"])

	require.NoError(t, s.Delete(ctx, coll, k2))
	require.NoError(t, s.Delete(ctx, coll, "missing"))

	docs, err = s.List(ctx, coll)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestDocumentStore_Watch(t *testing.T) {
	s, coll := testStore(t)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		sizes []int
	)
	stop, err := s.Watch(ctx, coll, func(docs []document.Document, err error) {
		assert.NoError(t, err)
		mu.Lock()
		sizes = append(sizes, len(docs))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	last := func() int {
		mu.Lock()
		defer mu.Unlock()
		if len(sizes) == 0 {
			return -1
		}
		return sizes[len(sizes)-1]
	}
	require.Eventually(t, func() bool { return last() == 0 }, 5*time.Second, 20*time.Millisecond)

	_, err = s.Create(ctx, coll, document.Fields{"name": "Anna"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return last() == 1 }, 5*time.Second, 20*time.Millisecond)

	// Changes to other collections do not reach this watcher.
	_, err = s.Create(ctx, coll+"-other", document.Fields{"name": "x"})
	require.NoError(t, err)

	stop()
	stop()
	mu.Lock()
	seen := len(sizes)
	mu.Unlock()
	_, err = s.Create(ctx, coll, document.Fields{"name": "Ben"})
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sizes, seen)
}

package natskv

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lerngruppe/pkg/document"
)

type entry struct {
	key string
	rev uint64
	val []byte
}

func (e entry) Bucket() string                  { return "b" }
func (e entry) Key() string                     { return e.key }
func (e entry) Value() []byte                   { return e.val }
func (e entry) Revision() uint64                { return e.rev }
func (e entry) Created() time.Time              { return time.Time{} }
func (e entry) Delta() uint64                   { return 0 }
func (e entry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

func TestBucketName(t *testing.T) {
	tests := []struct {
		prefix, collection, want string
	}{
		{"lerngruppe", "participants", "lerngruppe_participants"},
		{"", "participants", "participants"},
		{"p", "a.b c/d", "p_a_b_c_d"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, BucketName(tt.prefix, tt.collection))
	}
}

func TestEntriesToDocuments_OrdersByRevision(t *testing.T) {
	docs, err := entriesToDocuments([]jetstream.KeyValueEntry{
		entry{key: "b", rev: 7, val: []byte(`{"name":"Ben"}`)},
		entry{key: "a", rev: 3, val: []byte(`{"name":"Anna"}`)},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "a", docs[0].Key)
	require.Equal(t, "Anna", docs[0].Fields.String("name"))
	require.Equal(t, "b", docs[1].Key)

	_, err = entriesToDocuments([]jetstream.KeyValueEntry{entry{key: "x", rev: 1, val: []byte(`nope`)}})
	require.Error(t, err)
}

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("REGISTRY_TEST_NATS_URL")
	if url == "" {
		t.Skip("REGISTRY_TEST_NATS_URL not set")
	}
	s, err := Connect(url, "test-"+uuid.NewString()[:8], nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStore_CreateListDeleteWatch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	const coll = "participants"

	docs, err := s.List(ctx, coll)
	require.NoError(t, err)
	require.Empty(t, docs)

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

	k1, err := s.Create(ctx, coll, document.Fields{"name": "Anna", "timestamp": document.Timestamp{Seconds: 1}})
	require.NoError(t, err)
	_, err = s.Create(ctx, coll, document.Fields{"name": "Ben"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return last() == 2 }, 5*time.Second, 20*time.Millisecond)

	docs, err = s.List(ctx, coll)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, k1, docs[0].Key)
	require.Equal(t, document.Timestamp{Seconds: 1}, docs[0].Fields["timestamp"])

	require.NoError(t, s.Delete(ctx, coll, k1))
	require.Eventually(t, func() bool { return last() == 1 }, 5*time.Second, 20*time.Millisecond)
}

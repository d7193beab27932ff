// Package natskv stores collections in NATS JetStream key-value buckets, one
// bucket per collection.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"lerngruppe/internal/ports/output"
	"lerngruppe/pkg/document"
)

var _ output.DocumentStore = (*Store)(nil)

// ErrWatchClosed is reported when the server side ends a watch.
var ErrWatchClosed = errors.New("natskv: watch closed")

// Store implements output.DocumentStore on JetStream KV.
type Store struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
	logger *slog.Logger

	mu      sync.RWMutex
	buckets map[string]jetstream.KeyValue
}

// Connect dials url and prepares a Store whose buckets are named
// <prefix>_<collection>.
func Connect(url, prefix string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("lerngruppe"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natskv: connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskv: jetstream: %w", err)
	}
	logger.Info("✅ NATS JetStream connecté.", "url", nc.ConnectedUrl())
	return &Store{
		nc:      nc,
		js:      js,
		prefix:  prefix,
		logger:  logger,
		buckets: make(map[string]jetstream.KeyValue),
	}, nil
}

// Close drops the connection. Active watches end with ErrWatchClosed.
func (s *Store) Close() {
	s.nc.Close()
}

// BucketName maps a collection to a valid bucket name.
func BucketName(prefix, collection string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, collection)
	if prefix == "" {
		return clean
	}
	return prefix + "_" + clean
}

func (s *Store) bucket(ctx context.Context, collection string) (jetstream.KeyValue, error) {
	s.mu.RLock()
	kv := s.buckets[collection]
	s.mu.RUnlock()
	if kv != nil {
		return kv, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if kv := s.buckets[collection]; kv != nil {
		return kv, nil
	}
	kv, err := s.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      BucketName(s.prefix, collection),
		Description: "collection " + collection,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("natskv: bucket %s: %w", collection, err)
	}
	s.buckets[collection] = kv
	return kv, nil
}

func (s *Store) Create(ctx context.Context, collection string, fields document.Fields) (string, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return "", err
	}
	raw, err := document.Encode(fields)
	if err != nil {
		return "", err
	}
	key := uuid.NewString()
	if _, err := kv.Create(ctx, key, raw); err != nil {
		return "", fmt.Errorf("natskv: create: %w", err)
	}
	return key, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]document.Document, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}
	keys, err := kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []document.Document{}, nil
		}
		return nil, fmt.Errorf("natskv: keys: %w", err)
	}

	entries := make([]jetstream.KeyValueEntry, 0, len(keys))
	for _, key := range keys {
		entry, err := kv.Get(ctx, key)
		if err != nil {
			// Deleted between Keys and Get.
			if errors.Is(err, jetstream.ErrKeyDeleted) || errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("natskv: get %s: %w", key, err)
		}
		entries = append(entries, entry)
	}
	return entriesToDocuments(entries)
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}
	if err := kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("natskv: delete: %w", err)
	}
	return nil
}

// Watch replays the bucket, emits the first snapshot on the end-of-replay
// marker, then one snapshot per change.
func (s *Store) Watch(ctx context.Context, collection string, fn func([]document.Document, error)) (func(), error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	watcher, err := kv.WatchAll(wctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("natskv: watch: %w", err)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = watcher.Stop()
		})
	}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				stop()
			case <-wctx.Done():
			}
		}()
	}

	go func() {
		live := make(map[string]jetstream.KeyValueEntry)
		replayed := false
		for entry := range watcher.Updates() {
			if wctx.Err() != nil {
				return
			}
			if entry == nil {
				replayed = true
			} else {
				switch entry.Operation() {
				case jetstream.KeyValuePut:
					live[entry.Key()] = entry
				default:
					delete(live, entry.Key())
				}
				if !replayed {
					continue
				}
			}
			docs, err := entriesToDocuments(mapValues(live))
			if err != nil {
				s.logger.Error("document watch decode", "collection", collection, "error", err)
				fn(nil, err)
				stop()
				return
			}
			fn(docs, nil)
		}
		if wctx.Err() == nil {
			s.logger.Error("document watch lost", "collection", collection)
			fn(nil, ErrWatchClosed)
			stop()
		}
	}()
	return stop, nil
}

func mapValues(m map[string]jetstream.KeyValueEntry) []jetstream.KeyValueEntry {
	out := make([]jetstream.KeyValueEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	return out
}

// entriesToDocuments orders entries by revision, which is creation order since
// documents are never rewritten.
func entriesToDocuments(entries []jetstream.KeyValueEntry) ([]document.Document, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Revision() < entries[j].Revision() })
	out := make([]document.Document, len(entries))
	for i, e := range entries {
		fields, err := document.Decode(e.Value())
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", e.Key(), err)
		}
		out[i] = document.Document{Key: e.Key(), Fields: fields}
	}
	return out, nil
}

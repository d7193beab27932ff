package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"lerngruppe/internal/ports/output"
	"lerngruppe/pkg/document"
)

// notifyChannel is the channel the documents trigger notifies with the
// collection name as payload.
const notifyChannel = "document_changes"

var _ output.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements output.DocumentStore on the documents table.
type DocumentStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDocumentStore creates a DocumentStore. The pool is owned by the caller.
func NewDocumentStore(pool *pgxpool.Pool, logger *slog.Logger) *DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentStore{pool: pool, logger: logger}
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields document.Fields) (string, error) {
	raw, err := document.Encode(fields)
	if err != nil {
		return "", err
	}
	key := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, row_key, fields) VALUES ($1, $2, $3::jsonb)`,
		collection, key, string(raw))
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return key, nil
}

func (s *DocumentStore) List(ctx context.Context, collection string) ([]document.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT row_key, fields FROM documents WHERE collection = $1 ORDER BY created_at, row_key`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return rowsToDocuments(rows)
}

func (s *DocumentStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND row_key = $2`, collection, key)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Watch holds one pooled connection in LISTEN and re-lists the collection on
// each notification for it.
func (s *DocumentStore) Watch(ctx context.Context, collection string, fn func([]document.Document, error)) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch acquire: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("watch listen: %w", err)
	}
	// LISTEN before the first read, so no change between the two is lost.
	initial, err := s.List(ctx, collection)
	if err != nil {
		s.release(conn)
		return nil, err
	}

	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var once sync.Once
	stop := func() { once.Do(cancel) }
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
		defer s.release(conn)
		fn(initial, nil)
		for {
			n, err := conn.Conn().WaitForNotification(wctx)
			if err != nil {
				if wctx.Err() == nil {
					s.logger.Error("document watch lost", "collection", collection, "error", err)
					fn(nil, fmt.Errorf("watch: %w", err))
				}
				return
			}
			if n.Payload != collection {
				continue
			}
			docs, err := s.List(wctx, collection)
			if err != nil {
				if wctx.Err() == nil {
					fn(nil, err)
				}
				return
			}
			if wctx.Err() != nil {
				return
			}
			fn(docs, nil)
		}
	}()
	return stop, nil
}

func (s *DocumentStore) release(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		// A connection left listening must not go back to the pool.
		_ = conn.Conn().Close(ctx)
	}
	conn.Release()
}

// Package memstore is an in-process DocumentStore. Row keys are r1, r2, ...
// in creation order.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lerngruppe/internal/ports/output"
	"lerngruppe/pkg/document"
)

var _ output.DocumentStore = (*Store)(nil)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memstore: closed")

type collection struct {
	order    []string
	docs     map[string]document.Fields
	watchers map[*watcher]struct{}
}

// Store keeps collections in memory and notifies watchers after each change.
type Store struct {
	mu          sync.Mutex
	seq         int
	closed      bool
	collections map[string]*collection
}

// New creates an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) collection(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{
			docs:     make(map[string]document.Fields),
			watchers: make(map[*watcher]struct{}),
		}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Create(ctx context.Context, name string, fields document.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	s.seq++
	key := fmt.Sprintf("r%d", s.seq)
	c := s.collection(name)
	c.order = append(c.order, key)
	c.docs[key] = fields.Clone()
	c.notify()
	return key, nil
}

func (s *Store) List(ctx context.Context, name string) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.collection(name).snapshot(), nil
}

func (s *Store) Delete(ctx context.Context, name, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	c := s.collection(name)
	if _, ok := c.docs[key]; !ok {
		return nil
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.notify()
	return nil
}

func (s *Store) Watch(ctx context.Context, name string, fn func([]document.Document, error)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	c := s.collection(name)
	w := newWatcher(fn)
	c.watchers[w] = struct{}{}
	w.push(c.snapshot())

	stop := func() {
		s.mu.Lock()
		delete(c.watchers, w)
		s.mu.Unlock()
		w.stop()
	}
	go w.run()
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-w.done:
		}
	}()
	return stop, nil
}

// Close ends every watch with ErrClosed; later operations fail with
// ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, c := range s.collections {
		for w := range c.watchers {
			w.fail(ErrClosed)
		}
		c.watchers = make(map[*watcher]struct{})
	}
}

// Break ends every watch on a collection with err, as a lost connection
// would. The store itself stays usable.
func (s *Store) Break(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return
	}
	for w := range c.watchers {
		w.fail(err)
	}
	c.watchers = make(map[*watcher]struct{})
}

// WatcherCount returns the number of active watches on a collection.
func (s *Store) WatcherCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return len(c.watchers)
	}
	return 0
}

func (c *collection) snapshot() []document.Document {
	out := make([]document.Document, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, document.Document{Key: k, Fields: c.docs[k].Clone()})
	}
	return out
}

// notify must be called with the store lock held.
func (c *collection) notify() {
	if len(c.watchers) == 0 {
		return
	}
	snap := c.snapshot()
	for w := range c.watchers {
		w.push(snap)
	}
}

// watcher delivers the newest pending snapshot; intermediate ones a slow
// callback has not consumed yet are replaced.
type watcher struct {
	fn      func([]document.Document, error)
	mu      sync.Mutex
	pending []document.Document
	has     bool
	err     error
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newWatcher(fn func([]document.Document, error)) *watcher {
	return &watcher{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (w *watcher) push(docs []document.Document) {
	w.mu.Lock()
	w.pending = docs
	w.has = true
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) fail(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}
		w.mu.Lock()
		docs, ok, err := w.pending, w.has, w.err
		w.pending, w.has = nil, false
		w.mu.Unlock()
		if err != nil {
			w.stop()
			w.fn(nil, err)
			return
		}
		if !ok {
			continue
		}
		select {
		case <-w.done:
			return
		default:
		}
		w.fn(docs, nil)
	}
}

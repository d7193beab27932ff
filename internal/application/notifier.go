package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"lerngruppe/internal/domain/entities"
	"lerngruppe/internal/ports/output"
)

// participantFeed is the part of the repository the notifier needs.
type participantFeed interface {
	Subscribe(ctx context.Context, fn func([]entities.Participant, error)) (func(), error)
}

type observer struct {
	fn     func(entities.Snapshot)
	active atomic.Bool
}

// ChangeNotifier shares one upstream participant feed between any number of
// observers. Every observer receives full snapshots, never deltas.
//
// Deliveries are serialized by deliverMu and run on the feed goroutine, so an
// observer callback must not call Subscribe. It may call its own unsubscribe.
type ChangeNotifier struct {
	feed    participantFeed
	logger  *slog.Logger
	metrics output.Metrics

	deliverMu sync.Mutex

	mu         sync.Mutex
	observers  map[*observer]struct{}
	stopFeed   func()
	generation uint64
	latest     []entities.Participant
	hasLatest  bool
}

// NewChangeNotifier creates a notifier over feed. metrics may be nil.
func NewChangeNotifier(feed participantFeed, logger *slog.Logger, metrics output.Metrics) *ChangeNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeNotifier{
		feed:      feed,
		logger:    logger,
		metrics:   metrics,
		observers: make(map[*observer]struct{}),
	}
}

// Subscribe registers fn. The first observer opens the upstream feed; later
// ones receive the latest known snapshot right away. unsubscribe is
// idempotent.
func (n *ChangeNotifier) Subscribe(ctx context.Context, fn func(entities.Snapshot)) (func(), error) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	n.mu.Lock()
	if n.stopFeed == nil {
		n.generation++
		gen := n.generation
		// The feed outlives the caller's ctx; it ends with the last observer.
		stop, err := n.feed.Subscribe(context.WithoutCancel(ctx), func(ps []entities.Participant, err error) {
			n.deliver(gen, ps, err)
		})
		if err != nil {
			n.mu.Unlock()
			return nil, err
		}
		n.stopFeed = stop
		n.logger.Debug("participant feed opened", "generation", gen)
	}
	o := &observer{fn: fn}
	o.active.Store(true)
	n.observers[o] = struct{}{}
	count := len(n.observers)
	latest, hasLatest := n.latest, n.hasLatest
	n.mu.Unlock()

	n.setObservers(count)
	if hasLatest {
		fn(entities.Snapshot{Participants: entities.CloneParticipants(latest)})
		n.snapshotDelivered()
	}

	var once sync.Once
	remove := func() { once.Do(func() { n.remove(o) }) }
	stopAfter := context.AfterFunc(ctx, remove)
	unsubscribe := func() {
		stopAfter()
		remove()
	}
	return unsubscribe, nil
}

// Watch is the channel form of Subscribe. The channel holds at most one
// pending snapshot: a newer one replaces an unread older one. It is closed
// when ctx is done or after an error snapshot.
func (n *ChangeNotifier) Watch(ctx context.Context) (<-chan entities.Snapshot, error) {
	ch := make(chan entities.Snapshot, 1)
	failed := make(chan struct{})
	var failOnce sync.Once

	unsubscribe, err := n.Subscribe(context.WithoutCancel(ctx), func(s entities.Snapshot) {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
		if s.Err != nil {
			failOnce.Do(func() { close(failed) })
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-failed:
		}
		unsubscribe()
		// Wait out an in-flight delivery before closing.
		n.deliverMu.Lock()
		close(ch)
		n.deliverMu.Unlock()
	}()
	return ch, nil
}

// ObserverCount returns the number of registered observers.
func (n *ChangeNotifier) ObserverCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.observers)
}

// Close releases the upstream feed and drops every observer.
func (n *ChangeNotifier) Close() {
	n.mu.Lock()
	for o := range n.observers {
		o.active.Store(false)
	}
	n.observers = make(map[*observer]struct{})
	stop := n.releaseLocked()
	n.mu.Unlock()

	if stop != nil {
		stop()
	}
	n.setObservers(0)
}

func (n *ChangeNotifier) deliver(gen uint64, ps []entities.Participant, err error) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	n.mu.Lock()
	if gen != n.generation || n.stopFeed == nil {
		n.mu.Unlock()
		return
	}
	targets := make([]*observer, 0, len(n.observers))
	for o := range n.observers {
		targets = append(targets, o)
	}
	var stop func()
	if err != nil {
		// No reconnect: observers re-subscribe if they want more.
		n.observers = make(map[*observer]struct{})
		stop = n.releaseLocked()
	} else {
		n.latest, n.hasLatest = ps, true
	}
	n.mu.Unlock()

	if err != nil {
		n.logger.Error("participant feed failed", "error", err, "observers", len(targets))
		if stop != nil {
			stop()
		}
		n.setObservers(0)
	}

	for _, o := range targets {
		if !o.active.Load() {
			continue
		}
		if err != nil {
			o.active.Store(false)
			o.fn(entities.Snapshot{Err: err})
			continue
		}
		o.fn(entities.Snapshot{Participants: entities.CloneParticipants(ps)})
		n.snapshotDelivered()
	}
}

func (n *ChangeNotifier) remove(o *observer) {
	o.active.Store(false)

	n.mu.Lock()
	if _, ok := n.observers[o]; !ok {
		n.mu.Unlock()
		return
	}
	delete(n.observers, o)
	count := len(n.observers)
	var stop func()
	if count == 0 {
		stop = n.releaseLocked()
	}
	n.mu.Unlock()

	if stop != nil {
		stop()
		n.logger.Debug("participant feed released")
	}
	n.setObservers(count)
}

// releaseLocked detaches the upstream feed and returns its stop function.
func (n *ChangeNotifier) releaseLocked() func() {
	stop := n.stopFeed
	n.stopFeed = nil
	n.latest, n.hasLatest = nil, false
	return stop
}

func (n *ChangeNotifier) setObservers(count int) {
	if n.metrics != nil {
		n.metrics.SetObservers(count)
	}
}

func (n *ChangeNotifier) snapshotDelivered() {
	if n.metrics != nil {
		n.metrics.SnapshotDelivered()
	}
}

package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/plansocial/plans/internal/services/plans/storage"
)

// Query tags one subscribable read shape. The closed set of shapes keeps
// change-to-query matching explicit instead of inspecting callback
// signatures.
type Query interface {
	queryKey() string
}

// RecentEvents is the shared recent-events feed.
type RecentEvents struct{}

// UnreadNotifications is one profile's unread notification feed.
type UnreadNotifications struct{ ProfileID string }

// EventByID is one event record, membership sets included.
type EventByID struct{ ID string }

// ProfileByID is one profile record.
type ProfileByID struct{ ID string }

func (RecentEvents) queryKey() string          { return "events:recent" }
func (q UnreadNotifications) queryKey() string { return "notifications:unread:" + q.ProfileID }
func (q EventByID) queryKey() string           { return "event:" + q.ID }
func (q ProfileByID) queryKey() string         { return "profile:" + q.ID }

// Update is one snapshot delivered to subscribers. Exactly one of Data and
// Err is meaningful; an Err update is terminal for the fetch that produced
// it but the subscription stays registered and re-arms on reconnect.
type Update struct {
	Query Query
	Data  any
	Err   error
}

// FetchFunc resolves a query to its current snapshot.
type FetchFunc func(ctx context.Context, query Query) (any, error)

// Broker fans committed store changes out to live subscriptions. Each
// distinct query shape gets one worker that refetches on relevant changes
// and broadcasts snapshots to every subscriber in order. Late subscribers
// immediately receive the latest snapshot. The worker is torn down when the
// last subscriber leaves.
type Broker struct {
	fetch        FetchFunc
	watcher      storage.Watcher
	connectivity *Connectivity
	logger       *slog.Logger

	mu    sync.Mutex
	feeds map[string]*feed

	cancelWatch   func()
	cancelConnect func()
}

type feed struct {
	query       Query
	subscribers map[int]chan Update
	nextSub     int
	latest      *Update
	dirty       chan struct{}
	done        chan struct{}
}

// NewBroker constructs the broker. Call Start before subscribing.
func NewBroker(fetch FetchFunc, watcher storage.Watcher, connectivity *Connectivity, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		fetch:        fetch,
		watcher:      watcher,
		connectivity: connectivity,
		logger:       logger,
		feeds:        make(map[string]*feed),
	}
}

// Start wires the broker to the store change feed and to connectivity
// transitions. Reconnects mark every feed dirty so subscriptions that
// surfaced a terminal error recover without resubscribing.
func (b *Broker) Start() {
	if b == nil || b.watcher == nil {
		return
	}
	b.cancelWatch = b.watcher.Watch(func(change storage.Change) {
		for _, key := range queryKeysFor(change) {
			b.markDirty(key)
		}
	})
	if b.connectivity != nil {
		b.cancelConnect = b.connectivity.Subscribe(func(online bool) {
			if online {
				b.markAllDirty()
			}
		})
	}
}

// Stop detaches the broker from its sources and closes every feed.
func (b *Broker) Stop() {
	if b == nil {
		return
	}
	if b.cancelWatch != nil {
		b.cancelWatch()
	}
	if b.cancelConnect != nil {
		b.cancelConnect()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, f := range b.feeds {
		close(f.done)
		for _, ch := range f.subscribers {
			close(ch)
		}
		delete(b.feeds, key)
	}
}

// queryKeysFor maps one committed change to the query shapes it can affect.
func queryKeysFor(change storage.Change) []string {
	switch change.Kind {
	case storage.KindEvent:
		return []string{RecentEvents{}.queryKey(), EventByID{ID: change.ID}.queryKey()}
	case storage.KindNotification:
		return []string{UnreadNotifications{ProfileID: change.RecipientID}.queryKey()}
	case storage.KindProfile:
		return []string{ProfileByID{ID: change.ID}.queryKey()}
	default:
		return nil
	}
}

// Subscribe registers for snapshots of query. The first snapshot arrives
// immediately: the cached latest when the feed is already live, or a fresh
// fetch otherwise. The returned cancel must be called; the feed's worker
// stops when its last subscriber cancels.
func (b *Broker) Subscribe(ctx context.Context, query Query) (<-chan Update, func()) {
	key := query.queryKey()

	b.mu.Lock()
	f, ok := b.feeds[key]
	if !ok {
		f = &feed{
			query:       query,
			subscribers: make(map[int]chan Update),
			dirty:       make(chan struct{}, 1),
			done:        make(chan struct{}),
		}
		b.feeds[key] = f
		go b.run(ctx, f)
	}
	f.nextSub++
	subID := f.nextSub
	ch := make(chan Update, 8)
	f.subscribers[subID] = ch
	// Deliver the cached snapshot before releasing the lock so a concurrent
	// refresh cannot broadcast a newer one ahead of it. The channel is fresh
	// and buffered, so this never blocks.
	if f.latest != nil {
		ch <- *f.latest
	}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		sub, ok := f.subscribers[subID]
		if !ok {
			return
		}
		delete(f.subscribers, subID)
		close(sub)
		if len(f.subscribers) == 0 && b.feeds[key] == f {
			close(f.done)
			delete(b.feeds, key)
		}
	}
	return ch, cancel
}

// run is one feed's worker: fetch once up front, then refetch whenever the
// feed is marked dirty, broadcasting each snapshot in order.
func (b *Broker) run(ctx context.Context, f *feed) {
	b.refresh(ctx, f)
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case <-f.dirty:
			b.refresh(ctx, f)
		}
	}
}

func (b *Broker) refresh(ctx context.Context, f *feed) {
	data, err := b.fetch(ctx, f.query)
	update := Update{Query: f.query, Data: data, Err: err}
	if err != nil {
		b.logger.Warn("subscription fetch failed", "query", f.query.queryKey(), "error", err)
	}

	// Broadcast under the lock so a concurrent cancel cannot close a
	// channel mid-send. Sends never block: a slow consumer loses its oldest
	// snapshot to make room for the newest.
	b.mu.Lock()
	defer b.mu.Unlock()
	f.latest = &update
	for _, ch := range f.subscribers {
		select {
		case ch <- update:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}

func (b *Broker) markDirty(key string) {
	b.mu.Lock()
	f, ok := b.feeds[key]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case f.dirty <- struct{}{}:
	default:
	}
}

func (b *Broker) markAllDirty() {
	b.mu.Lock()
	feeds := make([]*feed, 0, len(b.feeds))
	for _, f := range b.feeds {
		feeds = append(feeds, f)
	}
	b.mu.Unlock()
	for _, f := range feeds {
		select {
		case f.dirty <- struct{}{}:
		default:
		}
	}
}

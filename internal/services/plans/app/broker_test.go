package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/plansocial/plans/internal/services/plans/storage"
)

type fakeWatcher struct {
	mu  sync.Mutex
	seq int
	fns map[int]func(storage.Change)
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{fns: make(map[int]func(storage.Change))}
}

func (w *fakeWatcher) Watch(fn func(storage.Change)) (cancel func()) {
	w.mu.Lock()
	w.seq++
	key := w.seq
	w.fns[key] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.fns, key)
		w.mu.Unlock()
	}
}

func (w *fakeWatcher) emit(change storage.Change) {
	w.mu.Lock()
	fns := make([]func(storage.Change), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}

// fakeSource serves per-key values and injectable errors to the broker's
// fetch function.
type fakeSource struct {
	mu     sync.Mutex
	values map[string]any
	errs   map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{values: make(map[string]any), errs: make(map[string]error)}
}

func (s *fakeSource) set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	delete(s.errs, key)
}

func (s *fakeSource) fail(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[key] = err
}

func (s *fakeSource) fetch(_ context.Context, query Query) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := query.queryKey()
	if err := s.errs[key]; err != nil {
		return nil, err
	}
	return s.values[key], nil
}

func waitUpdate(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case update, ok := <-ch:
		if !ok {
			t.Fatal("update channel closed")
		}
		return update
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

// waitFor polls ch until an update satisfies ok, tolerating intermediate
// snapshots from coalesced refreshes.
func waitFor(t *testing.T, ch <-chan Update, ok func(Update) bool) Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case update, open := <-ch:
			if !open {
				t.Fatal("update channel closed")
			}
			if ok(update) {
				return update
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching update")
		}
	}
}

func newBrokerFixture(t *testing.T) (*Broker, *fakeWatcher, *fakeSource, *Connectivity) {
	t.Helper()
	watcher := newFakeWatcher()
	source := newFakeSource()
	connectivity := NewConnectivity()
	broker := NewBroker(source.fetch, watcher, connectivity, nil)
	broker.Start()
	t.Cleanup(broker.Stop)
	return broker, watcher, source, connectivity
}

func TestBrokerInitialSnapshot(t *testing.T) {
	t.Parallel()

	broker, _, source, _ := newBrokerFixture(t)
	source.set(RecentEvents{}.queryKey(), "snapshot-1")

	ch, cancel := broker.Subscribe(context.Background(), RecentEvents{})
	defer cancel()

	update := waitUpdate(t, ch)
	if update.Err != nil {
		t.Fatalf("initial update error = %v", update.Err)
	}
	if update.Data != "snapshot-1" {
		t.Errorf("data = %v, want snapshot-1", update.Data)
	}
}

func TestBrokerChangeTriggersRefetch(t *testing.T) {
	t.Parallel()

	broker, watcher, source, _ := newBrokerFixture(t)
	source.set(RecentEvents{}.queryKey(), "before")

	ch, cancel := broker.Subscribe(context.Background(), RecentEvents{})
	defer cancel()
	waitFor(t, ch, func(u Update) bool { return u.Data == "before" })

	source.set(RecentEvents{}.queryKey(), "after")
	watcher.emit(storage.Change{Kind: storage.KindEvent, ID: "evt-1"})

	update := waitFor(t, ch, func(u Update) bool { return u.Data == "after" })
	if update.Err != nil {
		t.Errorf("update error = %v", update.Err)
	}
}

func TestBrokerRoutesNotificationChangesByRecipient(t *testing.T) {
	t.Parallel()

	broker, watcher, source, _ := newBrokerFixture(t)
	key := UnreadNotifications{ProfileID: "prof-1"}.queryKey()
	source.set(key, "unread-0")

	ch, cancel := broker.Subscribe(context.Background(), UnreadNotifications{ProfileID: "prof-1"})
	defer cancel()
	waitFor(t, ch, func(u Update) bool { return u.Data == "unread-0" })

	// A change for a different recipient must not reach this feed; the
	// following change for prof-1 must.
	source.set(key, "unread-1")
	watcher.emit(storage.Change{Kind: storage.KindNotification, ID: "n-1", RecipientID: "prof-2"})
	watcher.emit(storage.Change{Kind: storage.KindNotification, ID: "n-2", RecipientID: "prof-1"})

	waitFor(t, ch, func(u Update) bool { return u.Data == "unread-1" })
}

func TestBrokerLateSubscriberGetsLatest(t *testing.T) {
	t.Parallel()

	broker, _, source, _ := newBrokerFixture(t)
	source.set(EventByID{ID: "evt-1"}.queryKey(), "snapshot")

	first, cancelFirst := broker.Subscribe(context.Background(), EventByID{ID: "evt-1"})
	defer cancelFirst()
	waitFor(t, first, func(u Update) bool { return u.Data == "snapshot" })

	late, cancelLate := broker.Subscribe(context.Background(), EventByID{ID: "evt-1"})
	defer cancelLate()
	update := waitUpdate(t, late)
	if update.Data != "snapshot" {
		t.Errorf("late subscriber data = %v, want cached snapshot", update.Data)
	}
}

func TestBrokerErrorThenReconnectRecovers(t *testing.T) {
	t.Parallel()

	broker, _, source, connectivity := newBrokerFixture(t)
	key := RecentEvents{}.queryKey()
	fetchErr := errors.New("store unreachable")
	source.fail(key, fetchErr)

	ch, cancel := broker.Subscribe(context.Background(), RecentEvents{})
	defer cancel()

	update := waitUpdate(t, ch)
	if !errors.Is(update.Err, fetchErr) {
		t.Fatalf("update error = %v, want %v", update.Err, fetchErr)
	}

	// Recovery: the store comes back and connectivity flips offline->online,
	// which re-arms the feed without resubscribing.
	source.set(key, "recovered")
	connectivity.SetOnline(false)
	connectivity.SetOnline(true)

	update = waitFor(t, ch, func(u Update) bool { return u.Err == nil })
	if update.Data != "recovered" {
		t.Errorf("data after recovery = %v, want recovered", update.Data)
	}
}

func TestBrokerTearsDownIdleFeeds(t *testing.T) {
	t.Parallel()

	broker, _, source, _ := newBrokerFixture(t)
	source.set(RecentEvents{}.queryKey(), "snapshot")

	ch, cancel := broker.Subscribe(context.Background(), RecentEvents{})
	waitUpdate(t, ch)
	cancel()

	broker.mu.Lock()
	feeds := len(broker.feeds)
	broker.mu.Unlock()
	if feeds != 0 {
		t.Errorf("feeds after last unsubscribe = %d, want 0", feeds)
	}
}

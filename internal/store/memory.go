package store

import (
	"sync"

	"github.com/jpalmerr/extupdate/status"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore keeps a pointer to the current [status.Snapshot]. Dispatch
// swaps it for the reducer's result under a mutex; readers get the pointer
// and then read the immutable snapshot without holding any lock.
//
// Subscribers receive changes via buffered channels (buffer size 100).
// Changes are sent non-blocking; if a subscriber's buffer is full, the change
// is dropped for that subscriber to prevent blocking dispatch.
type MemoryStore struct {
	mu          sync.RWMutex
	snapshot    *status.Snapshot
	subscribers map[chan Change]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] starting from the empty
// snapshot.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[chan Change]struct{}),
	}
}

// Dispatch applies ev with [status.Apply] and, if the snapshot changed,
// stores the new one and notifies subscribers.
//
// Change notification happens after the mutex is released, so subscribers
// that call back into the store do not deadlock. Ordering between changes
// published by concurrent Dispatch calls is therefore not guaranteed;
// [MemoryStore.Current] is always authoritative.
func (m *MemoryStore) Dispatch(ev status.Event) (Change, bool) {
	m.mu.Lock()
	prev := m.snapshot
	next := status.Apply(prev, ev)
	if next == prev {
		m.mu.Unlock()
		return Change{}, false
	}
	m.snapshot = next
	m.mu.Unlock()

	name := eventName(ev)
	st, _ := next.Get(name)
	change := Change{Name: name, State: st.State, Acknowledged: st.Acknowledged}

	m.notifySubscribers(change)
	return change, true
}

// Current returns the latest snapshot. May be nil, which is the empty
// snapshot.
func (m *MemoryStore) Current() *status.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Forget removes name from the current snapshot and publishes a removal.
func (m *MemoryStore) Forget(name string) bool {
	m.mu.Lock()
	prev := m.snapshot
	next := prev.Without(name)
	if next == prev {
		m.mu.Unlock()
		return false
	}
	m.snapshot = next
	m.mu.Unlock()

	m.notifySubscribers(Change{Name: name, Removed: true})
	return true
}

// Subscribe creates a new subscription and returns a channel for receiving changes.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new changes are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Change {
	ch := make(chan Change, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// changes will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Change) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the change to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(change Change) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- change:
		default:
			// subscriber is slow, drop the message
		}
	}
}

// eventName returns the extension name an event refers to.
func eventName(ev status.Event) string {
	switch ev := ev.(type) {
	case status.SetState:
		return ev.Name
	case status.SetAcknowledged:
		return ev.Name
	default:
		return ""
	}
}

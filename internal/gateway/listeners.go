package gateway

import "sync"

// listenerKey scopes a registration to an event category and, optionally,
// a single device. An empty deviceID matches events from every device.
type listenerKey struct {
	event    EventType
	deviceID string
}

// listenerEntry is one registered callback. The monotonic id preserves
// registration order and makes unregistration O(n) on a short slice.
type listenerEntry struct {
	id uint64
	fn Handler
}

// listenerTable maps (event type, optional device ID) to an ordered list of
// callbacks. Registrations happen from entity setup goroutines while
// notifications happen on the dispatch loop, so the table carries its own
// lock; the handlers themselves still only run on the loop.
type listenerTable struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[listenerKey][]listenerEntry
}

func newListenerTable() *listenerTable {
	return &listenerTable{
		entries: make(map[listenerKey][]listenerEntry),
	}
}

// add registers fn for the given event category, optionally scoped to a
// device, and returns an unregister function. Unregistering twice is a no-op.
func (t *listenerTable) add(event EventType, deviceID string, fn Handler) func() {
	key := listenerKey{event: event, deviceID: deviceID}

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.entries[key] = append(t.entries[key], listenerEntry{id: id, fn: fn})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		list := t.entries[key]
		for i, entry := range list {
			if entry.id == id {
				t.entries[key] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(t.entries[key]) == 0 {
			delete(t.entries, key)
		}
	}
}

// handlersFor returns the callbacks interested in an event, in registration
// order: device-scoped registrations first, then unscoped ones.
func (t *listenerTable) handlersFor(event EventType, deviceID string) []Handler {
	t.mu.Lock()
	defer t.mu.Unlock()

	var handlers []Handler
	if deviceID != "" {
		for _, entry := range t.entries[listenerKey{event: event, deviceID: deviceID}] {
			handlers = append(handlers, entry.fn)
		}
	}
	for _, entry := range t.entries[listenerKey{event: event}] {
		handlers = append(handlers, entry.fn)
	}
	return handlers
}

// count returns the number of registered callbacks across all keys.
func (t *listenerTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, list := range t.entries {
		n += len(list)
	}
	return n
}

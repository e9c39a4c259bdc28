// Package dedup bounds duplicate suppression for the poller. Event ids
// are remembered in insertion order so capacity pressure always evicts
// the oldest observations first.
package dedup

type Window struct {
	capacity int
	ids      []string
	seen     map[string]struct{}
}

const DefaultCapacity = 10000

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		capacity: capacity,
		ids:      make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// IsNew reports whether id has not been seen before, recording it when new.
func (w *Window) IsNew(id string) bool {
	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = struct{}{}
	w.ids = append(w.ids, id)
	if len(w.ids) > w.capacity {
		w.evictOldest()
	}
	return true
}

func (w *Window) Size() int {
	return len(w.ids)
}

// evictOldest drops the oldest entries until only the most recent half of
// the capacity remains.
func (w *Window) evictOldest() {
	keep := w.capacity / 2
	drop := len(w.ids) - keep
	for _, id := range w.ids[:drop] {
		delete(w.seen, id)
	}
	remaining := make([]string, keep, w.capacity)
	copy(remaining, w.ids[drop:])
	w.ids = remaining
}

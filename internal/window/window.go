package window

import (
	"sync"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
)

const DefaultCapacity = 60

// SlidingWindow is a bounded, arrival-ordered history of one node's recent
// readings. A single producer pushes readings in arrival order; any number of
// readers may take snapshots concurrently. Out-of-order timestamps are kept
// as they arrive, never re-sorted.
type SlidingWindow struct {
	mu       sync.RWMutex
	readings []*protocol.Reading
	capacity int
}

func newSlidingWindow(capacity int) *SlidingWindow {
	return &SlidingWindow{
		readings: make([]*protocol.Reading, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a reading, evicting the oldest entry when at capacity. The
// append and eviction happen under the same lock so readers never observe a
// window above capacity.
func (w *SlidingWindow) Push(reading *protocol.Reading) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.readings = append(w.readings, reading)
	if len(w.readings) > w.capacity {
		w.readings = w.readings[1:]
	}
}

// Snapshot returns a copy of the current window contents, oldest first.
// Readers own the returned slice; the readings themselves are shared and
// treated as immutable after creation.
func (w *SlidingWindow) Snapshot() []*protocol.Reading {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snapshot := make([]*protocol.Reading, len(w.readings))
	copy(snapshot, w.readings)
	return snapshot
}

// Len returns the number of readings currently held.
func (w *SlidingWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.readings)
}

// Capacity returns the maximum number of readings the window holds.
func (w *SlidingWindow) Capacity() int {
	return w.capacity
}

// Latest returns the most recent reading, or nil when the window is empty.
func (w *SlidingWindow) Latest() *protocol.Reading {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.readings) == 0 {
		return nil
	}
	return w.readings[len(w.readings)-1]
}

// Previous returns the second most recent reading, or nil when the window
// holds fewer than two entries.
func (w *SlidingWindow) Previous() *protocol.Reading {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.readings) < 2 {
		return nil
	}
	return w.readings[len(w.readings)-2]
}

// Registry holds one sliding window per node. Windows are created lazily on
// first use and live for the process lifetime; node cardinality is bounded by
// the physical deployment, so idle windows are never evicted. The registry is
// an explicit object owned by whoever composes the pipeline, so tests get
// fresh state.
type Registry struct {
	mu       sync.RWMutex
	windows  map[string]*SlidingWindow
	capacity int
}

// NewRegistry creates a registry whose windows hold capacity readings each.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		windows:  make(map[string]*SlidingWindow),
		capacity: capacity,
	}
}

// Window returns the window for nodeID, creating it on first use.
func (r *Registry) Window(nodeID string) *SlidingWindow {
	r.mu.RLock()
	w, exists := r.windows[nodeID]
	r.mu.RUnlock()
	if exists {
		return w
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w, exists := r.windows[nodeID]; exists {
		return w
	}
	w = newSlidingWindow(r.capacity)
	r.windows[nodeID] = w
	return w
}

// Get returns the window for nodeID without creating one.
func (r *Registry) Get(nodeID string) (*SlidingWindow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, exists := r.windows[nodeID]
	return w, exists
}

// NodeIDs returns the ids of all nodes with a window.
func (r *Registry) NodeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.windows))
	for id := range r.windows {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of tracked nodes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.windows)
}

// Stats returns statistics about the registry
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RegistryStats{
		NodesTracked:   len(r.windows),
		WindowCapacity: r.capacity,
	}
}

// RegistryStats contains statistics about the window registry
type RegistryStats struct {
	NodesTracked   int
	WindowCapacity int
}

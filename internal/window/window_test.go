package window

import (
	"fmt"
	"sync"
	"testing"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
)

func makeReading(nodeID string, ts int64, temp float64) *protocol.Reading {
	return &protocol.Reading{
		NodeID:      nodeID,
		Timestamp:   ts,
		Temperature: protocol.Float(temp),
	}
}

func TestWindow_PushEvictsOldest(t *testing.T) {
	r := NewRegistry(5)
	w := r.Window("node-001")

	for i := 0; i < 8; i++ {
		w.Push(makeReading("node-001", int64(1000+i), float64(i)))
	}

	if w.Len() != 5 {
		t.Fatalf("Expected window length 5, got %d", w.Len())
	}

	snapshot := w.Snapshot()
	for i, reading := range snapshot {
		expected := int64(1003 + i)
		if reading.Timestamp != expected {
			t.Errorf("Position %d: expected timestamp %d, got %d", i, expected, reading.Timestamp)
		}
	}
}

func TestWindow_ArrivalOrderPreserved(t *testing.T) {
	r := NewRegistry(10)
	w := r.Window("node-001")

	// Out-of-order timestamps are accepted but never re-sorted
	w.Push(makeReading("node-001", 2000, 20))
	w.Push(makeReading("node-001", 1500, 21))
	w.Push(makeReading("node-001", 2500, 22))

	snapshot := w.Snapshot()
	want := []int64{2000, 1500, 2500}
	for i, ts := range want {
		if snapshot[i].Timestamp != ts {
			t.Errorf("Position %d: expected timestamp %d, got %d", i, ts, snapshot[i].Timestamp)
		}
	}
}

func TestWindow_LatestAndPrevious(t *testing.T) {
	r := NewRegistry(10)
	w := r.Window("node-001")

	if w.Latest() != nil {
		t.Error("Expected nil latest on empty window")
	}
	if w.Previous() != nil {
		t.Error("Expected nil previous on empty window")
	}

	w.Push(makeReading("node-001", 1000, 20))
	if w.Latest().Timestamp != 1000 {
		t.Errorf("Expected latest 1000, got %d", w.Latest().Timestamp)
	}
	if w.Previous() != nil {
		t.Error("Expected nil previous with one reading")
	}

	w.Push(makeReading("node-001", 1060, 21))
	if w.Latest().Timestamp != 1060 {
		t.Errorf("Expected latest 1060, got %d", w.Latest().Timestamp)
	}
	if w.Previous().Timestamp != 1000 {
		t.Errorf("Expected previous 1000, got %d", w.Previous().Timestamp)
	}
}

func TestWindow_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry(10)
	w := r.Window("node-001")
	w.Push(makeReading("node-001", 1000, 20))

	snapshot := w.Snapshot()
	w.Push(makeReading("node-001", 1060, 21))

	if len(snapshot) != 1 {
		t.Errorf("Snapshot mutated by later push: length %d", len(snapshot))
	}
}

func TestRegistry_LazyCreation(t *testing.T) {
	r := NewRegistry(10)

	if _, exists := r.Get("node-001"); exists {
		t.Error("Expected no window before first use")
	}

	w1 := r.Window("node-001")
	w2 := r.Window("node-001")
	if w1 != w2 {
		t.Error("Expected the same window on repeated lookup")
	}

	if r.Count() != 1 {
		t.Errorf("Expected 1 tracked node, got %d", r.Count())
	}
}

func TestRegistry_DefaultCapacity(t *testing.T) {
	r := NewRegistry(0)
	w := r.Window("node-001")

	if w.Capacity() != DefaultCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultCapacity, w.Capacity())
	}
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry(30)
	r.Window("node-001")
	r.Window("node-002")

	stats := r.Stats()
	if stats.NodesTracked != 2 {
		t.Errorf("Expected 2 nodes tracked, got %d", stats.NodesTracked)
	}
	if stats.WindowCapacity != 30 {
		t.Errorf("Expected capacity 30, got %d", stats.WindowCapacity)
	}
}

func TestWindow_ConcurrentReadersSingleWriter(t *testing.T) {
	r := NewRegistry(20)
	w := r.Window("node-001")

	var wg sync.WaitGroup
	done := make(chan struct{})

	// Concurrent readers must never observe a window above capacity
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					if n := len(w.Snapshot()); n > 20 {
						t.Errorf("Snapshot above capacity: %d", n)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		w.Push(makeReading("node-001", int64(i), float64(i)))
	}
	close(done)
	wg.Wait()

	if w.Len() != 20 {
		t.Errorf("Expected final length 20, got %d", w.Len())
	}
}

func TestRegistry_ConcurrentWindowCreation(t *testing.T) {
	r := NewRegistry(10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				nodeID := fmt.Sprintf("node-%03d", j%5)
				r.Window(nodeID).Push(makeReading(nodeID, int64(j), float64(n)))
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 5 {
		t.Errorf("Expected 5 tracked nodes, got %d", r.Count())
	}
}

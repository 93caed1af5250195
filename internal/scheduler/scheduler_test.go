package scheduler

import (
	"sync"
	"testing"
	"time"
)

func TestScheduler_ScheduleAt(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	executed := false
	var mu sync.Mutex

	err := s.ScheduleAt("test1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		executed = true
		mu.Unlock()
	})

	if err != nil {
		t.Fatalf("ScheduleAt failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if !executed {
		t.Error("Task was not executed")
	}
	mu.Unlock()
}

func TestScheduler_Cancel(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	executed := false
	var mu sync.Mutex

	err := s.ScheduleAt("test1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		executed = true
		mu.Unlock()
	})

	if err != nil {
		t.Fatalf("ScheduleAt failed: %v", err)
	}

	if !s.Cancel("test1") {
		t.Error("Cancel returned false")
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	if executed {
		t.Error("Task was executed despite being cancelled")
	}
	mu.Unlock()
}

func TestScheduler_MultipleTasksOrdering(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	var results []int
	var mu sync.Mutex

	// Schedule tasks in reverse order
	s.ScheduleAt("task3", time.Now().Add(150*time.Millisecond), func() {
		mu.Lock()
		results = append(results, 3)
		mu.Unlock()
	})

	s.ScheduleAt("task1", time.Now().Add(50*time.Millisecond), func() {
		mu.Lock()
		results = append(results, 1)
		mu.Unlock()
	})

	s.ScheduleAt("task2", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		results = append(results, 2)
		mu.Unlock()
	})

	time.Sleep(250 * time.Millisecond)

	mu.Lock()
	if len(results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(results))
	}
	if len(results) == 3 && (results[0] != 1 || results[1] != 2 || results[2] != 3) {
		t.Errorf("Tasks executed in wrong order: %v", results)
	}
	mu.Unlock()
}

func TestScheduler_ScheduleEvery(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	count := 0
	var mu sync.Mutex

	err := s.ScheduleEvery("tick", 50*time.Millisecond, func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("ScheduleEvery failed: %v", err)
	}

	time.Sleep(280 * time.Millisecond)
	s.Cancel("tick")

	mu.Lock()
	fired := count
	mu.Unlock()

	if fired < 3 {
		t.Errorf("Expected recurring task to fire at least 3 times, got %d", fired)
	}

	// A cancelled recurring task stops firing
	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	if count > fired+1 {
		t.Errorf("Task kept firing after cancel: %d -> %d", fired, count)
	}
	mu.Unlock()
}

func TestScheduler_RescheduleExisting(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	count := 0
	var mu sync.Mutex

	s.ScheduleAt("test1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	// Same id replaces the pending task
	s.ScheduleAt("test1", time.Now().Add(50*time.Millisecond), func() {
		mu.Lock()
		count += 10
		mu.Unlock()
	})

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	if count != 10 {
		t.Errorf("Expected count=10 (only second task), got %d", count)
	}
	mu.Unlock()
}

func TestScheduler_ScheduleAfterStop(t *testing.T) {
	s := New()
	s.Start()
	s.Stop()

	err := s.ScheduleAt("late", time.Now(), func() {})
	if err != ErrSchedulerStopped {
		t.Errorf("Expected ErrSchedulerStopped, got %v", err)
	}
}

func TestScheduler_Stats(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	s.ScheduleAt("task1", time.Now().Add(1*time.Hour), func() {})
	s.ScheduleAt("task2", time.Now().Add(2*time.Hour), func() {})
	s.ScheduleEvery("task3", 3*time.Hour, func() {})

	stats := s.Stats()
	if stats.PendingTasks != 3 {
		t.Errorf("Expected 3 pending tasks, got %d", stats.PendingTasks)
	}
}

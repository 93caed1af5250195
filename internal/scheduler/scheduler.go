package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// task is a unit of scheduled work. A zero interval means one-shot; a
// positive interval reschedules the task after each run.
type task struct {
	id       string
	runAt    time.Time
	interval time.Duration
	fn       func()
	index    int // position in the heap
}

// taskHeap is a min-heap of tasks ordered by runAt
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].runAt.Before(h[j].runAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	n := len(*h)
	t := x.(*task)
	t.index = n
	*h = append(*h, t)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil // avoid memory leak
	t.index = -1
	*h = old[0 : n-1]
	return t
}

// Scheduler drives the periodic work of the pipeline: simulator ticks,
// forecast refresh cycles and aggregation runs. Tasks run in their own
// goroutines; a slow task never delays the next due task.
type Scheduler struct {
	mu      sync.Mutex
	heap    taskHeap
	tasks   map[string]*task
	wakeup  chan struct{}
	stopCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// New creates a scheduler; call Start before scheduling work.
func New() *Scheduler {
	s := &Scheduler{
		heap:   make(taskHeap, 0),
		tasks:  make(map[string]*task),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	heap.Init(&s.heap)
	return s
}

// Start starts the scheduler loop
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop stops the scheduler. Tasks already launched keep running; nothing new
// is dispatched.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// ScheduleAt registers a one-shot task. Scheduling an id that already exists
// replaces the pending task.
func (s *Scheduler) ScheduleAt(id string, runAt time.Time, fn func()) error {
	return s.schedule(id, runAt, 0, fn)
}

// ScheduleEvery registers a recurring task whose first run is one interval
// from now.
func (s *Scheduler) ScheduleEvery(id string, interval time.Duration, fn func()) error {
	return s.schedule(id, time.Now().Add(interval), interval, fn)
}

func (s *Scheduler) schedule(id string, runAt time.Time, interval time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if existing, ok := s.tasks[id]; ok {
		heap.Remove(&s.heap, existing.index)
		delete(s.tasks, id)
	}

	t := &task{
		id:       id,
		runAt:    runAt,
		interval: interval,
		fn:       fn,
	}

	heap.Push(&s.heap, t)
	s.tasks[id] = t

	// Wake the loop if this became the earliest task
	if s.heap[0] == t {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// Cancel removes a pending task; a recurring task stops recurring.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}

	heap.Remove(&s.heap, t.index)
	delete(s.tasks, id)
	return true
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		s.mu.Lock()

		if s.stopped {
			s.mu.Unlock()
			return
		}

		var waitDuration time.Duration
		if s.heap.Len() == 0 {
			waitDuration = 24 * time.Hour
		} else {
			next := s.heap[0]
			waitDuration = time.Until(next.runAt)

			if waitDuration <= 0 {
				t := heap.Pop(&s.heap).(*task)

				if t.interval > 0 {
					// Reschedule before dispatch so Cancel still finds it
					t.runAt = time.Now().Add(t.interval)
					heap.Push(&s.heap, t)
				} else {
					delete(s.tasks, t.id)
				}

				go t.fn()

				s.mu.Unlock()
				continue
			}
		}

		s.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// Stats returns statistics about the scheduler
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{PendingTasks: len(s.tasks)}
}

// Stats contains statistics about the scheduler
type Stats struct {
	PendingTasks int
}

var ErrSchedulerStopped = &Error{"scheduler is stopped"}

// Error represents a scheduler error
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// entry is one scheduled callback
type entry struct {
	runAt time.Time
	fn    func()
	id    int
	index int
}

// entryHeap упорядочивает записи по времени срабатывания
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler fires callbacks at their scheduled time. The engine uses it
// to wake snoozed tasks and to run periodic drift checks without every
// caller managing its own timer.
type Scheduler struct {
	now func() time.Time

	mu      sync.Mutex
	queue   entryHeap
	byID    map[int]*entry
	nextID  int
	wakeup  chan struct{}
	running bool
}

// Option настраивает планировщик
type Option func(*Scheduler)

// WithClock подменяет источник времени. Используется в тестах.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		now:    time.Now,
		byID:   make(map[int]*entry),
		wakeup: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Schedule registers fn to run at runAt and returns a cancellation id.
// Times in the past fire on the next loop iteration.
func (s *Scheduler) Schedule(runAt time.Time, fn func()) int {
	s.mu.Lock()
	id := s.nextID
	s.nextID++

	e := &entry{runAt: runAt, fn: fn, id: id}
	heap.Push(&s.queue, e)
	s.byID[id] = e
	s.mu.Unlock()

	s.poke()

	return id
}

// Cancel removes a scheduled callback; unknown ids are ignored
func (s *Scheduler) Cancel(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return
	}

	heap.Remove(&s.queue, e.index)
	delete(s.byID, id)
}

// Pending возвращает число запланированных срабатываний
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

// Run выполняет срабатывания до отмены контекста
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		s.RunDue()

		s.mu.Lock()
		var wait time.Duration
		if len(s.queue) > 0 {
			wait = s.queue[0].runAt.Sub(s.now())
		} else {
			// Нечего ждать: спим до нового Schedule
			wait = time.Hour
		}
		s.mu.Unlock()

		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wakeup:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// RunDue fires every callback whose time has come. Exposed so tests can
// drive the scheduler with an injected clock instead of sleeping.
func (s *Scheduler) RunDue() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].runAt.After(s.now()) {
			s.mu.Unlock()
			return
		}

		e := heap.Pop(&s.queue).(*entry)
		delete(s.byID, e.id)
		s.mu.Unlock()

		e.fn()
	}
}

func (s *Scheduler) poke() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

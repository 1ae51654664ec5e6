// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/ManuGH/qod/internal/metrics"
)

// Scheduler runs one-shot actions at their due time. Pending actions are kept
// in a min-heap served by a single timer goroutine, one action per id.
// Actions that have not fired when the scheduler stops are dropped; a later
// sweep re-claims their sessions.
type Scheduler struct {
	mu      sync.Mutex
	queue   actionHeap
	byID    map[string]*action
	wake    chan struct{}
	now     func() time.Time
	running sync.WaitGroup

	cancel context.CancelFunc
	done   chan struct{}
}

type action struct {
	id    string
	at    time.Time
	fn    func(context.Context)
	index int
}

type actionHeap []*action

func (h actionHeap) Len() int           { return len(h) }
func (h actionHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h actionHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *actionHeap) Push(x any) {
	a := x.(*action)
	a.index = len(*h)
	*h = append(*h, a)
}

func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.index = -1
	*h = old[:n-1]
	return a
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		byID: make(map[string]*action),
		wake: make(chan struct{}, 1),
		now:  time.Now,
	}
}

// Schedule arms fn to run at the given time. It reports false when an action
// for id is already pending.
func (s *Scheduler) Schedule(id string, at time.Time, fn func(context.Context)) bool {
	s.mu.Lock()
	if _, dup := s.byID[id]; dup {
		s.mu.Unlock()
		return false
	}
	a := &action{id: id, at: at, fn: fn}
	heap.Push(&s.queue, a)
	s.byID[id] = a
	n := len(s.queue)
	s.mu.Unlock()

	metrics.SetScheduledDeletions(n)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending reports whether an action for id is armed.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of armed actions.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Start launches the timer goroutine. Actions run in their own goroutines with
// a context that is not cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop halts the timer goroutine and waits for running actions.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	s.running.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	fireCtx := context.WithoutCancel(ctx)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		due, wait := s.next()
		for _, a := range due {
			s.running.Add(1)
			go func(a *action) {
				defer s.running.Done()
				a.fn(fireCtx)
			}(a)
		}

		var timerC <-chan time.Time
		if wait > 0 {
			timer.Reset(wait)
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timerC:
		}
		if !timer.Stop() && timerC != nil {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// next pops every due action and returns the wait until the following one,
// or 0 when the queue is empty.
func (s *Scheduler) next() ([]*action, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var due []*action
	for len(s.queue) > 0 && !s.queue[0].at.After(now) {
		a := heap.Pop(&s.queue).(*action)
		delete(s.byID, a.id)
		due = append(due, a)
	}
	if len(due) > 0 {
		metrics.SetScheduledDeletions(len(s.queue))
	}
	if len(s.queue) == 0 {
		return due, 0
	}
	return due, s.queue[0].at.Sub(now)
}

// Copyright 2024-2026 Aiku AI

package store

import (
	"slices"
	"sync"
)

// committer is a store with writes staged by the open batch.
type committer interface {
	detach() func()
}

type pendingKey struct {
	owner any
	id    string
}

const resetKey = "\x00reset"

// Scheduler groups the writes of several stores so that a logical update
// touching many entities becomes visible at once, and is observed by
// listeners once, after it has been fully applied.
type Scheduler struct {
	// view is shared by the stores of the scheduler.
	view sync.RWMutex

	mu      sync.Mutex
	depth   int
	order   []pendingKey
	pending map[pendingKey]func()
	staged  []committer
}

// NewScheduler creates a scheduler with no open batch.
func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[pendingKey]func())}
}

// Batch runs fn with writes staged and notifications deferred. Nested batches
// commit when the outermost one returns. Repeated writes to the same id
// within a batch are delivered once, with the last value, at the position of
// the first write. Batches of one scheduler must not run concurrently.
func (s *Scheduler) Batch(fn func()) {
	s.mu.Lock()
	s.depth++
	s.mu.Unlock()

	defer s.close()
	fn()
}

// Pending returns the number of queued notifications.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Scheduler) close() {
	s.mu.Lock()
	s.depth--
	if s.depth > 0 {
		s.mu.Unlock()
		return
	}
	order, pending, staged := s.order, s.pending, s.staged
	s.order = nil
	s.pending = make(map[pendingKey]func())
	s.staged = nil
	s.mu.Unlock()

	s.commit(staged)
	for _, key := range order {
		pending[key]()
	}
}

func (s *Scheduler) commit(stores []committer) {
	if len(stores) == 0 {
		return
	}
	applies := make([]func(), 0, len(stores))
	for _, st := range stores {
		applies = append(applies, st.detach())
	}
	s.view.Lock()
	defer s.view.Unlock()
	for _, apply := range applies {
		apply()
	}
}

// stage registers st for commit if a batch is open and reports whether it
// did.
func (s *Scheduler) stage(st committer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth == 0 {
		return false
	}
	if !slices.Contains(s.staged, st) {
		s.staged = append(s.staged, st)
	}
	return true
}

// enqueue queues fn if a batch is open and reports whether it did.
func (s *Scheduler) enqueue(owner any, id string, reset bool, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth == 0 {
		return false
	}

	if reset {
		// Everything queued for this store before the reset is superseded.
		kept := s.order[:0]
		for _, key := range s.order {
			if key.owner == owner {
				delete(s.pending, key)
				continue
			}
			kept = append(kept, key)
		}
		s.order = kept
		id = resetKey
	}

	key := pendingKey{owner: owner, id: id}
	if _, ok := s.pending[key]; !ok {
		s.order = append(s.order, key)
	}
	s.pending[key] = fn
	return true
}

// Copyright 2024-2026 Aiku AI

// Package store implements the keyed entity container every domain
// collection is built on.
//
// A Store owns its values. Writes bump a version counter and notify the
// registered listeners exactly once per write, or once per id when the write
// happens inside a Scheduler batch. A batch is all-or-nothing for readers:
// they see the stores either before it or after it.
package store

import (
	"sync"
)

// ChangeKind describes what happened to an entry.
type ChangeKind int

const (
	ChangeSet ChangeKind = iota
	ChangeDelete
	ChangeReset
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	case ChangeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Change is delivered to listeners after a write. For ChangeDelete, Value holds
// the removed value. For ChangeReset, ID and Value are empty.
type Change[V any] struct {
	Kind    ChangeKind
	ID      string
	Value   V
	Version uint64
}

type listener[V any] struct {
	id int
	fn func(Change[V])
}

type staged[V any] struct {
	v       V
	deleted bool
}

// Store is a concurrency-safe map from entity id to value with change
// notification.
//
// Writes made while a Scheduler batch is open are staged and become visible
// to Get, Has, Len, Keys, ForEach and Version together with every other write
// of the batch when the outermost batch closes. Peek and PeekKeys include the
// staged writes and are meant for the code running the batch.
type Store[V any] struct {
	// view guards items and version. Stores of one scheduler share it so a
	// batch is committed to all of them at once.
	view    *sync.RWMutex
	items   map[string]V
	version uint64

	// mu guards the staged writes of the open batch.
	mu      sync.Mutex
	stage   map[string]staged[V]
	cleared bool
	next    uint64

	listenerMu sync.Mutex
	listeners  []listener[V]
	nextID     int

	sched *Scheduler
}

// New creates an empty store. If sched is non-nil, writes made while one of
// its batches is open are committed, and their notifications delivered, when
// the batch closes.
func New[V any](sched *Scheduler) *Store[V] {
	s := &Store[V]{
		items: make(map[string]V),
		sched: sched,
	}
	if sched != nil {
		s.view = &sched.view
	} else {
		s.view = new(sync.RWMutex)
	}
	return s
}

// Get returns the committed value stored under id.
func (s *Store[V]) Get(id string) (V, bool) {
	s.view.RLock()
	defer s.view.RUnlock()
	v, ok := s.items[id]
	return v, ok
}

// Has reports whether id is present.
func (s *Store[V]) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Len returns the number of entries.
func (s *Store[V]) Len() int {
	s.view.RLock()
	defer s.view.RUnlock()
	return len(s.items)
}

// Version returns a counter that increases on every committed write.
func (s *Store[V]) Version() uint64 {
	s.view.RLock()
	defer s.view.RUnlock()
	return s.version
}

// Peek is Get including the writes staged by the open batch.
func (s *Store[V]) Peek(id string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peekLocked(id)
}

func (s *Store[V]) peekLocked(id string) (V, bool) {
	if e, ok := s.stage[id]; ok {
		if e.deleted {
			var zero V
			return zero, false
		}
		return e.v, true
	}
	if s.cleared {
		var zero V
		return zero, false
	}
	return s.Get(id)
}

// PeekKeys is Keys including the writes staged by the open batch.
func (s *Store[V]) PeekKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	if !s.cleared {
		for _, id := range s.Keys() {
			if _, ok := s.stage[id]; !ok {
				keys = append(keys, id)
			}
		}
	}
	for id, e := range s.stage {
		if !e.deleted {
			keys = append(keys, id)
		}
	}
	return keys
}

// Set inserts or replaces the value under id.
func (s *Store[V]) Set(id string, v V) {
	s.write(Change[V]{Kind: ChangeSet, ID: id, Value: v})
}

// Delete removes id and returns the removed value.
func (s *Store[V]) Delete(id string) (V, bool) {
	c, ok := s.write(Change[V]{Kind: ChangeDelete, ID: id})
	return c.Value, ok
}

// Reset removes every entry at once.
func (s *Store[V]) Reset() {
	s.write(Change[V]{Kind: ChangeReset})
}

// write applies c, or stages it if a batch is open, and notifies. A delete of
// a missing id does nothing and reports false.
func (s *Store[V]) write(c Change[V]) (Change[V], bool) {
	s.mu.Lock()
	if c.Kind == ChangeDelete {
		v, ok := s.peekLocked(c.ID)
		if !ok {
			s.mu.Unlock()
			return c, false
		}
		c.Value = v
	}
	s.next++
	c.Version = s.next
	if s.sched != nil && s.sched.stage(s) {
		if c.Kind == ChangeReset {
			s.stage = nil
			s.cleared = true
		} else {
			if s.stage == nil {
				s.stage = make(map[string]staged[V])
			}
			s.stage[c.ID] = staged[V]{v: c.Value, deleted: c.Kind == ChangeDelete}
		}
	} else {
		s.view.Lock()
		switch c.Kind {
		case ChangeSet:
			s.items[c.ID] = c.Value
		case ChangeDelete:
			delete(s.items, c.ID)
		case ChangeReset:
			s.items = make(map[string]V)
		}
		s.version = c.Version
		s.view.Unlock()
	}
	s.mu.Unlock()

	s.notify(c)
	return c, true
}

// detach takes the staged writes of the closing batch. The returned function
// applies them and must be called with the view lock held.
func (s *Store[V]) detach() func() {
	s.mu.Lock()
	stage, cleared, version := s.stage, s.cleared, s.next
	s.stage, s.cleared = nil, false
	s.mu.Unlock()

	return func() {
		if cleared {
			s.items = make(map[string]V, len(stage))
		}
		for id, e := range stage {
			if e.deleted {
				delete(s.items, id)
			} else {
				s.items[id] = e.v
			}
		}
		s.version = version
	}
}

// Keys returns the committed ids, in no particular order.
func (s *Store[V]) Keys() []string {
	s.view.RLock()
	defer s.view.RUnlock()
	keys := make([]string, 0, len(s.items))
	for id := range s.items {
		keys = append(keys, id)
	}
	return keys
}

// ForEach calls fn for every entry of a snapshot taken before the first call.
// fn may mutate the store.
func (s *Store[V]) ForEach(fn func(id string, v V)) {
	type entry struct {
		id string
		v  V
	}
	s.view.RLock()
	snapshot := make([]entry, 0, len(s.items))
	for id, v := range s.items {
		snapshot = append(snapshot, entry{id, v})
	}
	s.view.RUnlock()

	for _, e := range snapshot {
		fn(e.id, e.v)
	}
}

// Subscribe registers fn for change notifications. The returned function
// removes the registration.
func (s *Store[V]) Subscribe(fn func(Change[V])) (unsubscribe func()) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.nextID++
	id := s.nextID
	next := make([]listener[V], len(s.listeners), len(s.listeners)+1)
	copy(next, s.listeners)
	s.listeners = append(next, listener[V]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			defer s.listenerMu.Unlock()
			next := make([]listener[V], 0, len(s.listeners))
			for _, l := range s.listeners {
				if l.id != id {
					next = append(next, l)
				}
			}
			s.listeners = next
		})
	}
}

func (s *Store[V]) notify(c Change[V]) {
	if s.sched != nil && s.sched.enqueue(s, c.ID, c.Kind == ChangeReset, func() { s.deliver(c) }) {
		return
	}
	s.deliver(c)
}

func (s *Store[V]) deliver(c Change[V]) {
	s.listenerMu.Lock()
	listeners := s.listeners
	s.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(c)
	}
}

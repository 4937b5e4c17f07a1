// Copyright 2024-2026 Aiku AI

package events

import (
	"sync"
)

// Handler receives everything the manager observes, in order, from a single
// goroutine. Handlers may call back into the manager.
type Handler interface {
	HandleState(State)
	HandleEvent(Event)
	HandleError(error)
}

type delivery struct {
	state *State
	event *Event
	err   error
}

// deliveryQueue is an unbounded FIFO drained by one goroutine, so producers
// holding the manager lock never block on a slow handler.
type deliveryQueue struct {
	mu     sync.Mutex
	items  []delivery
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newDeliveryQueue(handler Handler) *deliveryQueue {
	q := &deliveryQueue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run(handler)
	return q
}

func (q *deliveryQueue) push(d delivery) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, d)
	q.mu.Unlock()
	q.wake()
}

func (q *deliveryQueue) pushState(s State) {
	q.push(delivery{state: &s})
}

func (q *deliveryQueue) pushEvent(evt Event) {
	q.push(delivery{event: &evt})
}

func (q *deliveryQueue) pushError(err error) {
	q.push(delivery{err: err})
}

func (q *deliveryQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// close stops accepting items. Items already queued are still delivered.
func (q *deliveryQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *deliveryQueue) run(handler Handler) {
	defer close(q.done)
	for {
		q.mu.Lock()
		items := q.items
		q.items = nil
		closed := q.closed
		q.mu.Unlock()

		if len(items) == 0 {
			if closed {
				return
			}
			<-q.signal
			continue
		}
		for _, d := range items {
			switch {
			case d.state != nil:
				handler.HandleState(*d.state)
			case d.event != nil:
				handler.HandleEvent(*d.event)
			case d.err != nil:
				handler.HandleError(d.err)
			}
		}
	}
}

// Copyright 2024-2026 Aiku AI

package client

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/aiku/upryzing-go/pkg/hydration"
	"github.com/aiku/upryzing-go/pkg/store"
)

// Collection is the store of one entity kind. Stored values are replaced on
// every change, so a value obtained from Get is never modified afterwards.
type Collection[T any] struct {
	client  *Client
	spec    *hydration.Spec[T]
	store   *store.Store[*T]
	fetches singleflight.Group
}

func newCollection[T any](c *Client, spec *hydration.Spec[T]) *Collection[T] {
	return &Collection[T]{
		client: c,
		spec:   spec,
		store:  store.New[*T](c.sched),
	}
}

func (c *Collection[T]) Get(id string) (T, bool) {
	v, ok := c.store.Get(id)
	if !ok {
		var zero T
		return zero, false
	}
	return *v, true
}

// lookup is Get returning ErrNotFound for a missing entity.
func (c *Collection[T]) lookup(id string) (T, error) {
	v, ok := c.Get(id)
	if !ok {
		return v, fmt.Errorf("%s %s: %w", c.spec.Kind(), id, ErrNotFound)
	}
	return v, nil
}

func (c *Collection[T]) Has(id string) bool {
	return c.store.Has(id)
}

func (c *Collection[T]) Len() int {
	return c.store.Len()
}

// Version increases on every change of the collection.
func (c *Collection[T]) Version() uint64 {
	return c.store.Version()
}

// ForEach iterates over a snapshot of the collection.
func (c *Collection[T]) ForEach(fn func(id string, v T)) {
	c.store.ForEach(func(id string, v *T) {
		fn(id, *v)
	})
}

// Subscribe registers fn for change notifications. Notifications for one
// event are delivered together after the event is applied. fn must not
// mutate the client.
func (c *Collection[T]) Subscribe(fn func(store.Change[*T])) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// GetOrCreate returns the entity under id, hydrating it from raw if it does
// not exist yet.
func (c *Collection[T]) GetOrCreate(id string, raw gjson.Result) (T, error) {
	var out T
	var err error
	c.client.apply(func(func(Event)) {
		var v *T
		v, _, err = c.getOrCreate(id, raw)
		if err == nil {
			out = *v
		}
	})
	return out, err
}

// Reset removes every entity. Later creations hydrate from scratch.
func (c *Collection[T]) Reset() {
	c.client.apply(func(func(Event)) {
		c.store.Reset()
	})
}

// The lowercase accessors below run inside apply and see the writes of the
// event being applied.

func (c *Collection[T]) getOrCreate(id string, raw gjson.Result) (*T, bool, error) {
	if v, ok := c.store.Peek(id); ok {
		return v, false, nil
	}
	v, err := c.spec.Create(raw, c.client)
	if err != nil {
		return nil, false, err
	}
	c.store.Set(id, v)
	return v, true, nil
}

// patch applies raw and the clear list to a copy of the stored entity and
// stores the copy if anything changed.
func (c *Collection[T]) patch(id string, raw gjson.Result, clear []string) (prev, next *T, changed bool) {
	cur, ok := c.store.Peek(id)
	if !ok {
		return nil, nil, false
	}
	cp := *cur
	fields := c.spec.Clear(&cp, clear)
	fields = append(fields, c.spec.Patch(&cp, raw, c.client)...)
	if len(fields) == 0 {
		return cur, cur, false
	}
	c.store.Set(id, &cp)
	return cur, &cp, true
}

// update stores fn applied to a copy of the entity.
func (c *Collection[T]) update(id string, fn func(v *T)) (prev, next *T, ok bool) {
	cur, ok := c.store.Peek(id)
	if !ok {
		return nil, nil, false
	}
	cp := *cur
	fn(&cp)
	c.store.Set(id, &cp)
	return cur, &cp, true
}

func (c *Collection[T]) get(id string) (*T, bool) {
	return c.store.Peek(id)
}

func (c *Collection[T]) has(id string) bool {
	_, ok := c.store.Peek(id)
	return ok
}

// each calls fn for every entity, staged writes included.
func (c *Collection[T]) each(fn func(id string, v *T)) {
	for _, id := range c.store.PeekKeys() {
		if v, ok := c.store.Peek(id); ok {
			fn(id, v)
		}
	}
}

func (c *Collection[T]) set(id string, v *T) {
	c.store.Set(id, v)
}

func (c *Collection[T]) remove(id string) (*T, bool) {
	return c.store.Delete(id)
}

// fetch returns the entity under id, loading it from path if missing.
// Concurrent fetches of one id share a request.
func (c *Collection[T]) fetch(ctx context.Context, id, path string) (T, error) {
	if v, ok := c.Get(id); ok {
		return v, nil
	}
	res, err, _ := c.fetches.Do(id, func() (any, error) {
		raw, err := c.client.request(ctx, "GET", path, nil)
		if err != nil {
			return nil, err
		}
		v, err := c.GetOrCreate(id, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to hydrate %s %s: %w", c.spec.Kind(), id, err)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Copyright 2024-2026 Aiku AI

// Package hydration converts wire payloads into local entity shapes.
//
// Every entity kind is described by a Spec: a static table of entries that
// map a wire field to a local field through a compute function. The table is
// built once at package initialization with a small builder and then used for
// both full construction (Create) and partial updates (Patch).
//
// Payloads are accessed through gjson so that field presence can be tested
// without decoding into intermediate structs; a field missing from a partial
// payload is never touched.
package hydration

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"go.mau.fi/util/exsync"
)

// ErrInvariant is matched by errors raised when a payload violates the
// contract of its entity kind, e.g. a creation payload without an id.
var ErrInvariant = errors.New("hydration invariant violated")

// MissingFieldError reports a required wire field absent from a creation
// payload.
type MissingFieldError struct {
	Kind  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s payload is missing required field %q", e.Kind, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrInvariant
}

// Context is the owning client as seen by compute functions. It is passed on
// every call and never stored in a hydrated value.
type Context interface {
	SelfID() string
	// Logger receives field problems that do not stop hydration. It may
	// return nil.
	Logger() *zerolog.Logger
}

// ComputeFunc derives a local field from a wire value and writes it to dst.
// For mapped fields value is the wire field; for derived fields it is the
// whole payload.
type ComputeFunc[T any] func(value gjson.Result, ctx Context, dst *T)

type entry[T any] struct {
	wire    string
	local   string
	compute ComputeFunc[T]
}

type clearEntry[T any] struct {
	local string
	fn    func(*T)
}

// Spec is the hydration table of one entity kind.
type Spec[T any] struct {
	kind     string
	initial  func() T
	entries  []entry[T]
	required []string
	clears   map[string]clearEntry[T]
}

// New starts a spec for kind. initial seeds fields a creation payload may not
// carry, such as empty sets.
func New[T any](kind string, initial func() T) *Spec[T] {
	if initial == nil {
		initial = func() T {
			var zero T
			return zero
		}
	}
	return &Spec[T]{
		kind:    kind,
		initial: initial,
		clears:  make(map[string]clearEntry[T]),
	}
}

// Map adds an entry computing local from the wire field.
func (s *Spec[T]) Map(wire, local string, fn ComputeFunc[T]) *Spec[T] {
	s.entries = append(s.entries, entry[T]{wire: wire, local: local, compute: fn})
	return s
}

// Derive adds an entry computed from the whole payload. Derived entries only
// run on Create.
func (s *Spec[T]) Derive(local string, fn ComputeFunc[T]) *Spec[T] {
	s.entries = append(s.entries, entry[T]{local: local, compute: fn})
	return s
}

// Require marks wire fields that must be present on Create.
func (s *Spec[T]) Require(wire ...string) *Spec[T] {
	s.required = append(s.required, wire...)
	return s
}

// Clearable registers a named clear request (as sent in the "clear" list of
// update events) resetting local.
func (s *Spec[T]) Clearable(name, local string, fn func(*T)) *Spec[T] {
	s.clears[name] = clearEntry[T]{local: local, fn: fn}
	return s
}

// Kind returns the entity kind name.
func (s *Spec[T]) Kind() string {
	return s.kind
}

// KeyMapping returns the local fields fed by each wire field.
func (s *Spec[T]) KeyMapping() map[string][]string {
	mapping := make(map[string][]string)
	for _, e := range s.entries {
		if e.wire == "" {
			continue
		}
		if !slices.Contains(mapping[e.wire], e.local) {
			mapping[e.wire] = append(mapping[e.wire], e.local)
		}
	}
	return mapping
}

// Create builds a fully populated value from a complete payload.
func (s *Spec[T]) Create(raw gjson.Result, ctx Context) (*T, error) {
	if !raw.IsObject() {
		return nil, &MissingFieldError{Kind: s.kind, Field: "<object>"}
	}
	for _, wire := range s.required {
		if !raw.Get(wire).Exists() {
			return nil, &MissingFieldError{Kind: s.kind, Field: wire}
		}
	}

	v := s.initial()
	for _, e := range s.entries {
		if e.wire == "" {
			e.compute(raw, ctx, &v)
		} else {
			e.compute(raw.Get(e.wire), ctx, &v)
		}
	}
	return &v, nil
}

// Patch applies the entries whose wire field is present in raw and returns the
// local fields whose value changed. Fields absent from raw keep their value.
func (s *Spec[T]) Patch(dst *T, raw gjson.Result, ctx Context) []string {
	var changed []string
	for _, e := range s.entries {
		if e.wire == "" {
			continue
		}
		value := raw.Get(e.wire)
		if !value.Exists() {
			continue
		}
		before := fieldValue(dst, e.local)
		e.compute(value, ctx, dst)
		if !sameValue(before, fieldValue(dst, e.local)) && !slices.Contains(changed, e.local) {
			changed = append(changed, e.local)
		}
	}
	return changed
}

// Clear applies named clear requests and returns the local fields that
// changed. Unknown names are ignored.
func (s *Spec[T]) Clear(dst *T, names []string) []string {
	var changed []string
	for _, name := range names {
		c, ok := s.clears[name]
		if !ok {
			continue
		}
		before := fieldValue(dst, c.local)
		c.fn(dst)
		if !sameValue(before, fieldValue(dst, c.local)) && !slices.Contains(changed, c.local) {
			changed = append(changed, c.local)
		}
	}
	return changed
}

// ClearNames converts the "clear" array of an update event into names.
func ClearNames(v gjson.Result) []string {
	var names []string
	for _, item := range v.Array() {
		names = append(names, item.String())
	}
	return names
}

func fieldValue[T any](dst *T, local string) any {
	f := reflect.ValueOf(dst).Elem().FieldByName(local)
	if !f.IsValid() {
		return nil
	}
	if f.Kind() != reflect.Pointer || f.IsNil() {
		return f.Interface()
	}
	// Compare contents so a recomputed but equal pointer is not reported as a
	// change.
	if set, ok := f.Interface().(*exsync.Set[string]); ok {
		items := set.AsList()
		slices.Sort(items)
		return items
	}
	return f.Elem().Interface()
}

func sameValue(a, b any) bool {
	if a == nil && b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

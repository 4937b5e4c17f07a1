// Copyright 2024-2026 Aiku AI

package client

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/aiku/upryzing-go/pkg/hydration"
)

// SessionCollection lists the sessions of the current account.
type SessionCollection struct {
	*Collection[hydration.Session]
}

// Fetch replaces the collection with every session of the account. Sessions
// that cannot be hydrated are left out and reported in the returned error.
func (s *SessionCollection) Fetch(ctx context.Context) ([]hydration.Session, error) {
	raw, err := s.client.request(ctx, "GET", "/auth/session/all", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}
	var out []hydration.Session
	var errs *multierror.Error
	s.client.apply(func(func(Event)) {
		s.store.Reset()
		for _, item := range raw.Array() {
			session, _, err := s.getOrCreate(item.Get("_id").String(), item)
			if err != nil {
				errs = multierror.Append(errs, s.client.hydrationError("session", err))
				continue
			}
			out = append(out, *session)
		}
	})
	return out, errs.ErrorOrNil()
}

// Delete revokes a session.
func (s *SessionCollection) Delete(ctx context.Context, id string) error {
	if _, err := s.client.request(ctx, "DELETE", "/auth/session/"+id, nil); err != nil {
		return fmt.Errorf("failed to revoke session %s: %w", id, err)
	}
	s.client.apply(func(func(Event)) {
		s.remove(id)
	})
	return nil
}

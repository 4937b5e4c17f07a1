// Copyright 2024-2026 Aiku AI

package client

import (
	"context"

	"github.com/aiku/upryzing-go/pkg/hydration"
)

type UserCollection struct {
	*Collection[hydration.User]
}

func (u *UserCollection) Fetch(ctx context.Context, id string) (hydration.User, error) {
	return u.fetch(ctx, id, "/users/"+id)
}

// Self returns the current user once the Ready event has been applied.
func (u *UserCollection) Self() (hydration.User, bool) {
	id := u.client.SelfID()
	if id == "" {
		return hydration.User{}, false
	}
	return u.Get(id)
}

// Copyright 2024-2026 Aiku AI

package client

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/aiku/upryzing-go/pkg/hydration"
)

// MemberCollection stores server members under "server:user" keys.
type MemberCollection struct {
	*Collection[hydration.Member]
}

func memberPath(id hydration.MemberID) string {
	return "/servers/" + id.Server + "/members/" + id.User
}

func (m *MemberCollection) Fetch(ctx context.Context, serverID, userID string) (hydration.Member, error) {
	id := hydration.MemberID{Server: serverID, User: userID}
	return m.fetch(ctx, id.Key(), memberPath(id))
}

// Edit changes a member. remove lists the fields to clear.
func (m *MemberCollection) Edit(ctx context.Context, serverID, userID string, changes map[string]any, remove ...string) (hydration.Member, error) {
	id := hydration.MemberID{Server: serverID, User: userID}
	raw, err := m.client.request(ctx, "PATCH", memberPath(id), editBody(changes, remove))
	if err != nil {
		return hydration.Member{}, fmt.Errorf("failed to edit member %s: %w", id.Key(), err)
	}
	m.client.apply(func(emit func(Event)) {
		if m.has(id.Key()) {
			m.client.applyMemberPatch(id, raw, remove, emit)
		} else if _, _, err = m.getOrCreate(id.Key(), raw); err != nil {
			err = m.client.hydrationError("member", err)
		}
	})
	if err != nil {
		return hydration.Member{}, err
	}
	return m.lookup(id.Key())
}

// Kick removes a user from a server.
func (m *MemberCollection) Kick(ctx context.Context, serverID, userID string) error {
	id := hydration.MemberID{Server: serverID, User: userID}
	if _, err := m.client.request(ctx, "DELETE", memberPath(id), nil); err != nil {
		return fmt.Errorf("failed to kick %s: %w", id.Key(), err)
	}
	m.client.apply(func(emit func(Event)) {
		// Removing the current user drops the whole server.
		kind, key, present := "member", id.Key(), m.has(id.Key())
		if id.User == m.client.SelfID() {
			kind, key, present = "server", id.Server, m.client.Servers.has(id.Server)
		}
		if present {
			m.client.applyMemberLeave(id, emit)
			m.client.awaitEcho(kind, key)
		}
	})
	return nil
}

// InServer returns the loaded members of a server sorted by user id.
func (m *MemberCollection) InServer(serverID string) []hydration.Member {
	var out []hydration.Member
	m.ForEach(func(_ string, member hydration.Member) {
		if member.ID.Server == serverID {
			out = append(out, member)
		}
	})
	slices.SortFunc(out, func(a, b hydration.Member) int {
		return cmp.Compare(a.ID.User, b.ID.User)
	})
	return out
}

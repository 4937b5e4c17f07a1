// Copyright 2024-2026 Aiku AI

package client

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
	"go.mau.fi/util/exsync"

	"github.com/aiku/upryzing-go/pkg/hydration"
)

type ServerCollection struct {
	*Collection[hydration.Server]

	syncMu sync.Mutex
	// synced holds the servers whose member list was loaded on the current
	// connection.
	synced *exsync.Set[string]
}

func newServerCollection(c *Client) *ServerCollection {
	return &ServerCollection{
		Collection: newCollection(c, hydration.ServerSpec),
		synced:     exsync.NewSet[string](),
	}
}

func (s *ServerCollection) Fetch(ctx context.Context, id string) (hydration.Server, error) {
	return s.fetch(ctx, id, "/servers/"+id)
}

// Create creates a server owned by the current user. Channels that cannot be
// hydrated are reported in the error alongside the server.
func (s *ServerCollection) Create(ctx context.Context, name, description string) (hydration.Server, error) {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	raw, err := s.client.request(ctx, "POST", "/servers/create", body)
	if err != nil {
		return hydration.Server{}, fmt.Errorf("failed to create server: %w", err)
	}
	var server *hydration.Server
	s.client.apply(func(emit func(Event)) {
		server, err = s.client.applyServerCreate(raw.Get("server"), raw.Get("channels"), gjson.Result{}, emit)
	})
	if server == nil {
		return hydration.Server{}, err
	}
	return *server, err
}

// Edit changes a server. remove lists the fields to clear.
func (s *ServerCollection) Edit(ctx context.Context, id string, changes map[string]any, remove ...string) (hydration.Server, error) {
	raw, err := s.client.request(ctx, "PATCH", "/servers/"+id, editBody(changes, remove))
	if err != nil {
		return hydration.Server{}, fmt.Errorf("failed to edit server %s: %w", id, err)
	}
	s.client.apply(func(emit func(Event)) {
		err = s.upsert(id, raw, remove, emit)
	})
	if err != nil {
		return hydration.Server{}, err
	}
	return s.lookup(id)
}

// Delete deletes a server owned by the current user, or leaves it otherwise.
func (s *ServerCollection) Delete(ctx context.Context, id string, leaveSilently bool) error {
	path := "/servers/" + id
	if leaveSilently {
		path += "?leave_silently=true"
	}
	if _, err := s.client.request(ctx, "DELETE", path, nil); err != nil {
		return fmt.Errorf("failed to delete server %s: %w", id, err)
	}
	typ := EventServerLeave
	if server, ok := s.Get(id); ok && server.OwnerID == s.client.SelfID() {
		typ = EventServerDelete
	}
	s.client.apply(func(emit func(Event)) {
		if s.has(id) {
			s.client.applyServerDelete(id, typ, emit)
			s.client.awaitEcho("server", id)
		}
	})
	return nil
}

// CreateChannel creates a text or voice channel in a server.
func (s *ServerCollection) CreateChannel(ctx context.Context, serverID string, channelType hydration.ChannelType, name string) (hydration.Channel, error) {
	body := map[string]any{"type": string(channelType), "name": name}
	raw, err := s.client.request(ctx, "POST", "/servers/"+serverID+"/channels", body)
	if err != nil {
		return hydration.Channel{}, fmt.Errorf("failed to create channel in %s: %w", serverID, err)
	}
	var channel *hydration.Channel
	s.client.apply(func(emit func(Event)) {
		channel, err = s.client.applyChannelCreate(raw, emit)
	})
	if err != nil {
		return hydration.Channel{}, err
	}
	return *channel, nil
}

func (s *ServerCollection) CreateRole(ctx context.Context, serverID, name string) (hydration.Role, error) {
	raw, err := s.client.request(ctx, "POST", "/servers/"+serverID+"/roles", map[string]any{"name": name})
	if err != nil {
		return hydration.Role{}, fmt.Errorf("failed to create role in %s: %w", serverID, err)
	}
	return s.applyRole(serverID, raw.Get("id").String(), raw.Get("role"), nil)
}

// EditRole changes a role. remove lists the fields to clear.
func (s *ServerCollection) EditRole(ctx context.Context, serverID, roleID string, changes map[string]any, remove ...string) (hydration.Role, error) {
	raw, err := s.client.request(ctx, "PATCH", "/servers/"+serverID+"/roles/"+roleID, editBody(changes, remove))
	if err != nil {
		return hydration.Role{}, fmt.Errorf("failed to edit role %s: %w", roleID, err)
	}
	return s.applyRole(serverID, roleID, raw, remove)
}

func (s *ServerCollection) applyRole(serverID, roleID string, data gjson.Result, remove []string) (hydration.Role, error) {
	var role *hydration.Role
	var err error
	s.client.apply(func(emit func(Event)) {
		role, err = s.client.applyRoleUpdate(serverID, roleID, data, remove, emit)
	})
	if err != nil {
		return hydration.Role{}, err
	}
	return *role, nil
}

func (s *ServerCollection) DeleteRole(ctx context.Context, serverID, roleID string) error {
	if _, err := s.client.request(ctx, "DELETE", "/servers/"+serverID+"/roles/"+roleID, nil); err != nil {
		return fmt.Errorf("failed to delete role %s: %w", roleID, err)
	}
	s.client.apply(func(emit func(Event)) {
		s.client.applyRoleDelete(serverID, roleID, emit)
	})
	return nil
}

// SetDefaultPermissions replaces the permissions granted to every member.
func (s *ServerCollection) SetDefaultPermissions(ctx context.Context, serverID string, permissions uint64) (hydration.Server, error) {
	raw, err := s.client.request(ctx, "PUT", "/servers/"+serverID+"/permissions/default", map[string]any{"permissions": permissions})
	if err != nil {
		return hydration.Server{}, fmt.Errorf("failed to set default permissions of %s: %w", serverID, err)
	}
	s.client.apply(func(emit func(Event)) {
		err = s.upsert(serverID, raw, nil, emit)
	})
	if err != nil {
		return hydration.Server{}, err
	}
	return s.lookup(serverID)
}

// SyncMembers loads the member list of a server and the users in it. A list
// already loaded on the current connection is not requested again unless
// force is set. Entities that cannot be hydrated are reported in the error,
// and the list is then requested again on the next call.
func (s *ServerCollection) SyncMembers(ctx context.Context, serverID string, force bool) error {
	if !force && s.isSynced(serverID) {
		return nil
	}
	_, err, _ := s.fetches.Do("members:"+serverID, func() (any, error) {
		raw, err := s.client.request(ctx, "GET", "/servers/"+serverID+"/members", nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch members of %s: %w", serverID, err)
		}
		var errs *multierror.Error
		s.client.apply(func(emit func(Event)) {
			for _, user := range raw.Get("users").Array() {
				id := user.Get("_id").String()
				if s.client.Users.has(id) {
					s.client.applyUserPatch(id, user, nil, emit)
				} else if _, _, err := s.client.Users.getOrCreate(id, user); err != nil {
					errs = multierror.Append(errs, s.client.hydrationError("user", err))
				}
			}
			for _, member := range raw.Get("members").Array() {
				id := hydration.ParseMemberID(member.Get("_id"))
				if s.client.ServerMembers.has(id.Key()) {
					s.client.applyMemberPatch(id, member, nil, emit)
				} else if _, _, err := s.client.ServerMembers.getOrCreate(id.Key(), member); err != nil {
					errs = multierror.Append(errs, s.client.hydrationError("member", err))
				}
			}
		})
		if errs != nil {
			return nil, fmt.Errorf("failed to load members of %s: %w", serverID, errs)
		}
		s.syncMu.Lock()
		s.synced.Add(serverID)
		s.syncMu.Unlock()
		return nil, nil
	})
	return err
}

// SyncAllMembers syncs the member list of every loaded server and returns
// every failure.
func (s *ServerCollection) SyncAllMembers(ctx context.Context, force bool) error {
	var errs *multierror.Error
	for _, id := range s.store.Keys() {
		if err := s.SyncMembers(ctx, id, force); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// ResetSyncStatus marks every member list as stale.
func (s *ServerCollection) ResetSyncStatus() {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.synced = exsync.NewSet[string]()
}

func (s *ServerCollection) markUnsynced(serverID string) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.synced.Remove(serverID)
}

func (s *ServerCollection) isSynced(serverID string) bool {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	return s.synced.Has(serverID)
}

// Roles returns the roles of a server from highest to lowest authority.
func (s *ServerCollection) Roles(serverID string) []hydration.Role {
	server, ok := s.Get(serverID)
	if !ok {
		return nil
	}
	roles := make([]hydration.Role, 0, len(server.Roles))
	for _, role := range server.Roles {
		roles = append(roles, role)
	}
	slices.SortFunc(roles, func(a, b hydration.Role) int {
		return cmp.Or(cmp.Compare(a.Rank, b.Rank), cmp.Compare(a.ID, b.ID))
	})
	return roles
}

// Channels returns the loaded channels of a server in server order.
func (s *ServerCollection) Channels(serverID string) []hydration.Channel {
	server, ok := s.Get(serverID)
	if !ok {
		return nil
	}
	channels := make([]hydration.Channel, 0, len(server.ChannelIDs))
	for _, id := range server.ChannelIDs {
		if channel, ok := s.client.Channels.Get(id); ok {
			channels = append(channels, channel)
		}
	}
	return channels
}

// upsert applies a full server returned by the API.
func (s *ServerCollection) upsert(id string, raw gjson.Result, remove []string, emit func(Event)) error {
	if s.has(id) {
		s.client.applyServerPatch(id, raw, remove, emit)
		return nil
	}
	if _, _, err := s.getOrCreate(id, raw); err != nil {
		return s.client.hydrationError("server", err)
	}
	return nil
}

// editBody builds a PATCH body from changes and the fields to clear.
func editBody(changes map[string]any, remove []string) map[string]any {
	body := make(map[string]any, len(changes)+1)
	for k, v := range changes {
		body[k] = v
	}
	if len(remove) > 0 {
		body["remove"] = remove
	}
	return body
}

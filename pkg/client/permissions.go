// Copyright 2024-2026 Aiku AI

package client

import (
	"time"

	"github.com/aiku/upryzing-go/pkg/hydration"
	"github.com/aiku/upryzing-go/pkg/permissions"
)

// ServerPermissions returns the permission mask of the current user in a
// server, or zero if the server or the membership is not loaded.
func (c *Client) ServerPermissions(serverID string) uint64 {
	server, ok := c.Servers.Get(serverID)
	if !ok {
		return 0
	}
	self := c.SelfID()
	if server.OwnerID == self {
		return permissions.GrantAllSafe
	}
	member, ok := c.ServerMembers.Get(hydration.MemberID{Server: serverID, User: self}.Key())
	if !ok {
		return 0
	}
	mask := permissions.Resolve(
		permissions.Subject{RoleIDs: member.RoleIDs},
		permissions.Target{Default: permissions.Override{Allow: server.DefaultPermissions}},
		server.ResolverRoles(),
	)
	if member.TimedOut(time.Now()) {
		mask &= permissions.AllowInTimeout
	}
	return mask
}

// ChannelPermissions returns the permission mask of the current user in a
// channel, or zero if the channel is not loaded.
func (c *Client) ChannelPermissions(channelID string) uint64 {
	channel, ok := c.Channels.Get(channelID)
	if !ok {
		return 0
	}
	self := c.SelfID()
	switch channel.ChannelType {
	case hydration.ChannelTypeSavedMessages:
		return permissions.DefaultPermissionSavedMessages
	case hydration.ChannelTypeDirectMessage:
		return permissions.DefaultPermissionDirectMessage
	case hydration.ChannelTypeGroup:
		if channel.OwnerID == self {
			return permissions.GrantAllSafe
		}
		granted := permissions.DefaultPermissionDirectMessage
		if channel.Permissions != nil {
			granted = *channel.Permissions
		}
		return permissions.Resolve(permissions.Subject{}, permissions.Target{
			Direct: &permissions.Override{Allow: granted, Deny: ^granted & permissions.GrantAllSafe},
		}, nil)
	}

	server, ok := c.Servers.Get(channel.ServerID)
	if !ok {
		return 0
	}
	if server.OwnerID == self {
		return permissions.GrantAllSafe
	}
	member, ok := c.ServerMembers.Get(hydration.MemberID{Server: server.ID, User: self}.Key())
	if !ok {
		return 0
	}
	base := permissions.Override{Allow: server.DefaultPermissions}
	if channel.DefaultPermissions != nil {
		base.Allow = channel.DefaultPermissions.Apply(server.DefaultPermissions)
	}
	mask := permissions.Resolve(
		permissions.Subject{RoleIDs: member.RoleIDs},
		permissions.Target{Default: base, RoleOverrides: channel.RolePermissions},
		server.ResolverRoles(),
	)
	if member.TimedOut(time.Now()) {
		mask &= permissions.AllowInTimeout
	}
	return mask
}

// HasChannelPermission reports whether the current user holds every bit of
// want in a channel.
func (c *Client) HasChannelPermission(channelID string, want uint64) bool {
	return permissions.Has(c.ChannelPermissions(channelID), want)
}

func (c *Client) HasServerPermission(serverID string, want uint64) bool {
	return permissions.Has(c.ServerPermissions(serverID), want)
}

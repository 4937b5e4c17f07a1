// Copyright 2024-2026 Aiku AI

package client

import (
	"testing"

	"github.com/aiku/upryzing-go/pkg/permissions"
)

func TestChannelPermissions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		frames  []string
		channel string
		want    uint64
	}{
		{
			name:    "server default and role",
			channel: "chan1",
			want:    permissions.ViewChannel | permissions.ManageMessages,
		},
		{
			name:    "channel override replaces role",
			channel: "chan2",
			want:    permissions.ViewChannel | permissions.SendMessage,
		},
		{
			name:    "channel default",
			frames:  []string{`{"type":"ChannelUpdate","id":"chan1","data":{"default_permissions":{"a":4194304,"d":0}}}`},
			channel: "chan1",
			want:    permissions.ViewChannel | permissions.SendMessage | permissions.ManageMessages,
		},
		{
			name:    "server owner",
			frames:  []string{`{"type":"ServerUpdate","id":"srv1","data":{"owner":"01SELF"}}`},
			channel: "chan2",
			want:    permissions.GrantAllSafe,
		},
		{
			name:    "member in timeout",
			frames:  []string{`{"type":"ServerMemberUpdate","id":{"server":"srv1","user":"01SELF"},"data":{"timeout":"2999-01-01T00:00:00Z"}}`},
			channel: "chan1",
			want:    permissions.ViewChannel,
		},
		{
			name:    "expired timeout",
			frames:  []string{`{"type":"ServerMemberUpdate","id":{"server":"srv1","user":"01SELF"},"data":{"timeout":"2001-01-01T00:00:00Z"}}`},
			channel: "chan1",
			want:    permissions.ViewChannel | permissions.ManageMessages,
		},
		{
			name:    "saved messages",
			channel: "saved",
			want:    permissions.DefaultPermissionSavedMessages,
		},
		{
			name:    "direct message",
			channel: "dm1",
			want:    permissions.DefaultPermissionDirectMessage,
		},
		{
			name:    "group with member permissions",
			frames:  []string{`{"type":"ChannelCreate","_id":"grp1","channel_type":"Group","name":"g","owner":"01OWNER","recipients":["01SELF","01OWNER"],"permissions":1048576}`},
			channel: "grp1",
			want:    permissions.ViewChannel,
		},
		{
			name:    "group without member permissions",
			frames:  []string{`{"type":"ChannelCreate","_id":"grp1","channel_type":"Group","name":"g","owner":"01OWNER","recipients":["01SELF","01OWNER"]}`},
			channel: "grp1",
			want:    permissions.DefaultPermissionDirectMessage,
		},
		{
			name:    "group owner",
			frames:  []string{`{"type":"ChannelCreate","_id":"grp1","channel_type":"Group","name":"g","owner":"01SELF","recipients":["01SELF"],"permissions":0}`},
			channel: "grp1",
			want:    permissions.GrantAllSafe,
		},
		{
			name:    "unknown channel",
			channel: "nope",
			want:    0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _, _ := newReadyClient(t)
			for _, frame := range tc.frames {
				dispatch(t, c, frame)
			}
			if got := c.ChannelPermissions(tc.channel); got != tc.want {
				t.Errorf("got %#x (%v), want %#x (%v)", got, permissions.Names(got), tc.want, permissions.Names(tc.want))
			}
		})
	}
}

func TestChannelPermissionsWithoutMembership(t *testing.T) {
	t.Parallel()
	c, _, _ := newReadyClient(t)
	// Removing the membership alone keeps the server loaded.
	c.apply(func(func(Event)) {
		c.ServerMembers.remove("srv1:" + selfID)
	})
	if got := c.ChannelPermissions("chan1"); got != 0 {
		t.Errorf("got %#x, want 0", got)
	}
	if got := c.ServerPermissions("srv1"); got != 0 {
		t.Errorf("got %#x, want 0", got)
	}
}

func TestServerPermissions(t *testing.T) {
	t.Parallel()
	c, _, _ := newReadyClient(t)

	if got, want := c.ServerPermissions("srv1"), permissions.ViewChannel|permissions.ManageMessages; got != want {
		t.Errorf("got %#x, want %#x", got, want)
	}
	if !c.HasServerPermission("srv1", permissions.ManageMessages) {
		t.Error("HasServerPermission(ManageMessages) = false")
	}
	if c.HasServerPermission("srv1", permissions.ManageServer) {
		t.Error("HasServerPermission(ManageServer) = true")
	}
	if !c.HasChannelPermission("chan2", permissions.SendMessage) {
		t.Error("HasChannelPermission(chan2, SendMessage) = false")
	}
	if c.HasChannelPermission("chan1", permissions.SendMessage) {
		t.Error("HasChannelPermission(chan1, SendMessage) = true")
	}
	if got := c.ServerPermissions("nope"); got != 0 {
		t.Errorf("got %#x for an unknown server, want 0", got)
	}
}

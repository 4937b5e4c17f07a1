// Copyright 2024-2026 Aiku AI

package permissions

import (
	"slices"
	"testing"
)

func TestOverrideApply(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		mask     uint64
		override Override
		want     uint64
	}{
		{"allow adds", 0b001, Override{Allow: 0b010}, 0b011},
		{"deny clears", 0b011, Override{Deny: 0b010}, 0b001},
		{"deny wins in same pair", 0, Override{Allow: 0b100, Deny: 0b100}, 0},
		{"empty pair", 0b101, Override{}, 0b101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.override.Apply(tt.mask); got != tt.want {
				t.Errorf("got %b, want %b", got, tt.want)
			}
		})
	}
}

func TestResolveRankOrder(t *testing.T) {
	t.Parallel()
	roles := map[string]Role{
		"r1": {ID: "r1", Rank: 1, Permissions: Override{Allow: 0b010}},
		"r2": {ID: "r2", Rank: 2, Permissions: Override{Deny: 0b010}},
	}
	target := Target{Default: Override{Allow: 0b001}}

	// Assignment order must not matter.
	for _, assigned := range [][]string{{"r1", "r2"}, {"r2", "r1"}} {
		got := Resolve(Subject{RoleIDs: assigned}, target, roles)
		if got != 0b001 {
			t.Errorf("roles %v: got %b, want %b", assigned, got, 0b001)
		}
	}

	got := Resolve(Subject{RoleIDs: []string{"r1"}}, target, roles)
	if got != 0b011 {
		t.Errorf("after r1 only: got %b, want %b", got, 0b011)
	}
}

func TestResolveTiesBrokenByID(t *testing.T) {
	t.Parallel()
	roles := map[string]Role{
		"b": {Rank: 0, Permissions: Override{Allow: 0b100}},
		"a": {Rank: 0, Permissions: Override{Deny: 0b100}},
	}
	got := Resolve(Subject{RoleIDs: []string{"b", "a"}}, Target{}, roles)
	if got != 0b100 {
		t.Errorf("got %b, want %b", got, 0b100)
	}
}

func TestResolveChannelOverrideReplacesRolePair(t *testing.T) {
	t.Parallel()
	roles := map[string]Role{
		"mod": {ID: "mod", Rank: 1, Permissions: Override{Allow: ManageMessages}},
	}
	target := Target{
		Default:       Override{Allow: ViewChannel | SendMessage},
		RoleOverrides: map[string]Override{"mod": {Deny: SendMessage}},
	}
	got := Resolve(Subject{RoleIDs: []string{"mod"}}, target, roles)
	if Has(got, ManageMessages) {
		t.Error("server-wide role pair should be replaced by the channel override")
	}
	if Has(got, SendMessage) {
		t.Error("channel override should deny SendMessage")
	}
	if !Has(got, ViewChannel) {
		t.Error("ViewChannel should survive")
	}
}

func TestResolveDirectOverrideLast(t *testing.T) {
	t.Parallel()
	roles := map[string]Role{
		"r": {ID: "r", Permissions: Override{Allow: React}},
	}
	target := Target{
		Default: Override{Allow: DefaultPermission},
		Direct:  &Override{Deny: React | SendMessage},
	}
	got := Resolve(Subject{RoleIDs: []string{"r"}}, target, roles)
	if Has(got, React) || Has(got, SendMessage) {
		t.Errorf("direct override must take final precedence, got %v", Names(got))
	}
}

func TestResolveNoRoles(t *testing.T) {
	t.Parallel()
	roles := map[string]Role{"r": {Permissions: Override{Allow: ManageServer}}}
	target := Target{Default: Override{Allow: DefaultPermissionServer, Deny: Video}}
	got := Resolve(Subject{}, target, roles)
	want := DefaultPermissionServer &^ Video
	if got != want {
		t.Errorf("got %b, want %b", got, want)
	}
}

func TestDefaultMasks(t *testing.T) {
	t.Parallel()
	if !Has(DefaultPermissionDirectMessage, React|ManageChannel|SendMessage) {
		t.Error("direct message default is missing bits")
	}
	if Has(DefaultPermission, React) {
		t.Error("base default should not include React")
	}
	if GrantAllSafe&MentionRoles == 0 {
		t.Error("GrantAllSafe should cover MentionRoles")
	}
	if got := Names(ViewChannel | MentionRoles); !slices.Equal(got, []string{"ViewChannel", "MentionRoles"}) {
		t.Errorf("Names: got %v", got)
	}
}

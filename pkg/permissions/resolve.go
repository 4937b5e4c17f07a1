// Copyright 2024-2026 Aiku AI

package permissions

import (
	"cmp"
	"slices"
)

// Override is an allow/deny pair. Deny wins over allow within one pair.
type Override struct {
	Allow uint64
	Deny  uint64
}

// Apply overlays the pair on mask.
func (o Override) Apply(mask uint64) uint64 {
	return (mask | o.Allow) &^ o.Deny
}

// Role is the resolver's view of a server role.
type Role struct {
	ID          string
	Rank        int64
	Permissions Override
}

// Subject is whoever permissions are being resolved for.
type Subject struct {
	RoleIDs []string
}

// Target is the server or channel permissions are being resolved against.
type Target struct {
	// Default is the target's base pair.
	Default Override
	// RoleOverrides holds channel-specific overrides keyed by role id. When a
	// role has an entry here it replaces the role's server-wide pair.
	RoleOverrides map[string]Override
	// Direct is the subject's own override on the target, if the target
	// supports one. It is applied last.
	Direct *Override
}

// Resolve computes the effective permission mask of subject on target.
// Assigned roles unknown to roles are skipped. Roles are overlaid from the
// lowest rank value upwards, ties ordered by id.
func Resolve(subject Subject, target Target, roles map[string]Role) uint64 {
	mask := target.Default.Apply(0)

	assigned := make([]Role, 0, len(subject.RoleIDs))
	for _, id := range subject.RoleIDs {
		if role, ok := roles[id]; ok {
			if role.ID == "" {
				role.ID = id
			}
			assigned = append(assigned, role)
		}
	}
	slices.SortFunc(assigned, func(a, b Role) int {
		return cmp.Or(cmp.Compare(a.Rank, b.Rank), cmp.Compare(a.ID, b.ID))
	})

	for _, role := range assigned {
		if override, ok := target.RoleOverrides[role.ID]; ok {
			mask = override.Apply(mask)
		} else {
			mask = role.Permissions.Apply(mask)
		}
	}

	if target.Direct != nil {
		mask = target.Direct.Apply(mask)
	}
	return mask
}

// Has reports whether every bit of want is set in mask.
func Has(mask, want uint64) bool {
	return mask&want == want
}

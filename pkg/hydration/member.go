// Copyright 2024-2026 Aiku AI

package hydration

import (
	"time"

	"github.com/tidwall/gjson"
)

// MemberID identifies a user within a server.
type MemberID struct {
	Server string
	User   string
}

// Key is the collection key of the member.
func (id MemberID) Key() string {
	return id.Server + ":" + id.User
}

// ParseMemberID reads a {"server": ..., "user": ...} compound id.
func ParseMemberID(v gjson.Result) MemberID {
	return MemberID{Server: v.Get("server").String(), User: v.Get("user").String()}
}

// Member is a hydrated server member.
type Member struct {
	ID       MemberID
	JoinedAt time.Time
	Nickname string
	Avatar   *File
	RoleIDs  []string
	Timeout  *time.Time
}

// TimedOut reports whether the member is in timeout at now.
func (m *Member) TimedOut(now time.Time) bool {
	return m.Timeout != nil && m.Timeout.After(now)
}

var MemberSpec = New[Member]("member", nil).
	Require("_id").
	Map("_id", "ID", func(v gjson.Result, _ Context, m *Member) { m.ID = ParseMemberID(v) }).
	Map("joined_at", "JoinedAt", func(v gjson.Result, _ Context, m *Member) {
		if t := optTime(v); t != nil {
			m.JoinedAt = *t
		}
	}).
	Map("nickname", "Nickname", func(v gjson.Result, _ Context, m *Member) { m.Nickname = v.String() }).
	Map("avatar", "Avatar", func(v gjson.Result, ctx Context, m *Member) { m.Avatar = optFile(v, ctx) }).
	Map("roles", "RoleIDs", func(v gjson.Result, _ Context, m *Member) { m.RoleIDs = stringList(v) }).
	Map("timeout", "Timeout", func(v gjson.Result, _ Context, m *Member) { m.Timeout = optTime(v) }).
	Clearable("Nickname", "Nickname", func(m *Member) { m.Nickname = "" }).
	Clearable("Avatar", "Avatar", func(m *Member) { m.Avatar = nil }).
	Clearable("Roles", "RoleIDs", func(m *Member) { m.RoleIDs = nil }).
	Clearable("Timeout", "Timeout", func(m *Member) { m.Timeout = nil })

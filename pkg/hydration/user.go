// Copyright 2024-2026 Aiku AI

package hydration

import (
	"github.com/tidwall/gjson"
)

type Presence string

const (
	PresenceOnline    Presence = "Online"
	PresenceIdle      Presence = "Idle"
	PresenceFocus     Presence = "Focus"
	PresenceBusy      Presence = "Busy"
	PresenceInvisible Presence = "Invisible"
)

type Relationship string

const (
	RelationshipNone         Relationship = "None"
	RelationshipUser         Relationship = "User"
	RelationshipFriend       Relationship = "Friend"
	RelationshipOutgoing     Relationship = "Outgoing"
	RelationshipIncoming     Relationship = "Incoming"
	RelationshipBlocked      Relationship = "Blocked"
	RelationshipBlockedOther Relationship = "BlockedOther"
)

type UserStatus struct {
	Text     string
	Presence Presence
}

// User is a hydrated user.
type User struct {
	ID            string
	Username      string
	Discriminator string
	DisplayName   string
	Avatar        *File
	Badges        uint64
	Status        *UserStatus
	Relationship  Relationship
	Online        bool
	Privileged    bool
	Flags         uint64
	// BotOwnerID is set for bot accounts.
	BotOwnerID string
}

// Bot reports whether the user is a bot account.
func (u *User) Bot() bool {
	return u.BotOwnerID != ""
}

var UserSpec = New("user", func() User {
	return User{Relationship: RelationshipNone}
}).
	Require("_id").
	Map("_id", "ID", func(v gjson.Result, _ Context, u *User) { u.ID = v.String() }).
	Map("username", "Username", func(v gjson.Result, _ Context, u *User) { u.Username = v.String() }).
	Map("discriminator", "Discriminator", func(v gjson.Result, _ Context, u *User) { u.Discriminator = v.String() }).
	Map("display_name", "DisplayName", func(v gjson.Result, _ Context, u *User) { u.DisplayName = v.String() }).
	Map("avatar", "Avatar", func(v gjson.Result, ctx Context, u *User) { u.Avatar = optFile(v, ctx) }).
	Map("badges", "Badges", func(v gjson.Result, ctx Context, u *User) { u.Badges = bits(v, ctx) }).
	Map("status", "Status", func(v gjson.Result, _ Context, u *User) {
		if !v.IsObject() {
			u.Status = nil
			return
		}
		u.Status = &UserStatus{Text: v.Get("text").String(), Presence: Presence(v.Get("presence").String())}
	}).
	Map("relationship", "Relationship", func(v gjson.Result, _ Context, u *User) {
		if v.Type != gjson.String {
			return
		}
		u.Relationship = Relationship(v.Str)
	}).
	Map("online", "Online", func(v gjson.Result, _ Context, u *User) { u.Online = v.Bool() }).
	Map("privileged", "Privileged", func(v gjson.Result, _ Context, u *User) { u.Privileged = v.Bool() }).
	Map("flags", "Flags", func(v gjson.Result, ctx Context, u *User) { u.Flags = bits(v, ctx) }).
	Map("bot", "BotOwnerID", func(v gjson.Result, _ Context, u *User) { u.BotOwnerID = v.Get("owner").String() }).
	Derive("Relationship", func(_ gjson.Result, ctx Context, u *User) {
		if ctx != nil && u.ID == ctx.SelfID() {
			u.Relationship = RelationshipUser
		}
	}).
	Clearable("Avatar", "Avatar", func(u *User) { u.Avatar = nil }).
	Clearable("StatusText", "Status", func(u *User) {
		if u.Status != nil {
			u.Status = &UserStatus{Presence: u.Status.Presence}
		}
	}).
	Clearable("StatusPresence", "Status", func(u *User) {
		if u.Status != nil {
			u.Status = &UserStatus{Text: u.Status.Text}
		}
	}).
	Clearable("DisplayName", "DisplayName", func(u *User) { u.DisplayName = "" })

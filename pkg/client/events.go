// Copyright 2024-2026 Aiku AI

package client

import (
	"github.com/aiku/upryzing-go/pkg/hydration"
)

type EventType string

const (
	EventError        EventType = "error"
	EventConnecting   EventType = "connecting"
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventReady        EventType = "ready"
	EventLogout       EventType = "logout"

	EventMessageCreate              EventType = "messageCreate"
	EventMessageUpdate              EventType = "messageUpdate"
	EventMessageDelete              EventType = "messageDelete"
	EventMessageDeleteBulk          EventType = "messageDeleteBulk"
	EventMessageReactionAdd         EventType = "messageReactionAdd"
	EventMessageReactionRemove      EventType = "messageReactionRemove"
	EventMessageReactionRemoveEmoji EventType = "messageReactionRemoveEmoji"

	EventChannelCreate       EventType = "channelCreate"
	EventChannelUpdate       EventType = "channelUpdate"
	EventChannelDelete       EventType = "channelDelete"
	EventChannelGroupJoin    EventType = "channelGroupJoin"
	EventChannelGroupLeave   EventType = "channelGroupLeave"
	EventChannelStartTyping  EventType = "channelStartTyping"
	EventChannelStopTyping   EventType = "channelStopTyping"
	EventChannelAcknowledged EventType = "channelAcknowledged"

	EventServerCreate     EventType = "serverCreate"
	EventServerUpdate     EventType = "serverUpdate"
	EventServerDelete     EventType = "serverDelete"
	EventServerLeave      EventType = "serverLeave"
	EventServerRoleUpdate EventType = "serverRoleUpdate"
	EventServerRoleDelete EventType = "serverRoleDelete"

	EventServerMemberJoin   EventType = "serverMemberJoin"
	EventServerMemberUpdate EventType = "serverMemberUpdate"
	EventServerMemberLeave  EventType = "serverMemberLeave"

	EventUserUpdate         EventType = "userUpdate"
	EventUserSettingsUpdate EventType = "userSettingsUpdate"

	EventEmojiCreate EventType = "emojiCreate"
	EventEmojiDelete EventType = "emojiDelete"
)

// Event is a domain event emitted to handlers registered with Client.On.
// Entity values are snapshots and must not be modified.
type Event interface {
	EventType() EventType
}

type ErrorEvent struct {
	Err error
}

// LifecycleEvent reports connecting, connected, disconnected, ready and
// logout.
type LifecycleEvent struct {
	Type EventType
}

type MessageCreate struct {
	Message hydration.Message
	// Notify is set when the message mentions the current user in a channel
	// that is not muted.
	Notify bool
}

type MessageUpdate struct {
	Message  hydration.Message
	Previous hydration.Message
}

type MessageDelete struct {
	Message hydration.Message
}

// MessageDeleteBulk reports every message removed by one bulk deletion.
type MessageDeleteBulk struct {
	Messages  []hydration.Message
	ChannelID string
	// Channel is nil when the channel is not loaded.
	Channel *hydration.Channel
}

// MessageReaction covers reaction add, reaction remove and removal of every
// reaction with one emoji, in which case UserID is empty.
type MessageReaction struct {
	Type    EventType
	Message hydration.Message
	UserID  string
	Emoji   string
}

type ChannelCreate struct {
	Channel hydration.Channel
}

type ChannelUpdate struct {
	Channel  hydration.Channel
	Previous hydration.Channel
}

type ChannelDelete struct {
	Channel hydration.Channel
}

// ChannelMembership reports a user joining or leaving a group.
type ChannelMembership struct {
	Type    EventType
	Channel hydration.Channel
	UserID  string
}

type ChannelTyping struct {
	Type    EventType
	Channel hydration.Channel
	UserID  string
}

type ChannelAcknowledged struct {
	Channel   hydration.Channel
	MessageID string
}

type ServerCreate struct {
	Server hydration.Server
}

type ServerUpdate struct {
	Server   hydration.Server
	Previous hydration.Server
}

// ServerDelete reports a server being deleted, or left by the current user
// when Type is EventServerLeave.
type ServerDelete struct {
	Type   EventType
	Server hydration.Server
}

type ServerRoleUpdate struct {
	Server hydration.Server
	RoleID string
	// Previous is nil for a new role.
	Previous *hydration.Role
}

type ServerRoleDelete struct {
	Server hydration.Server
	RoleID string
	Role   hydration.Role
}

type MemberJoin struct {
	Member hydration.Member
}

type MemberUpdate struct {
	Member   hydration.Member
	Previous hydration.Member
}

type MemberLeave struct {
	Member hydration.Member
}

type UserUpdate struct {
	User     hydration.User
	Previous hydration.User
}

// SettingValue is one synced user setting.
type SettingValue struct {
	UpdatedAt int64
	Value     string
}

type UserSettingsUpdate struct {
	UserID string
	Update map[string]SettingValue
}

type EmojiCreate struct {
	Emoji hydration.Emoji
}

type EmojiDelete struct {
	Emoji hydration.Emoji
}

func (ErrorEvent) EventType() EventType          { return EventError }
func (e LifecycleEvent) EventType() EventType    { return e.Type }
func (MessageCreate) EventType() EventType       { return EventMessageCreate }
func (MessageUpdate) EventType() EventType       { return EventMessageUpdate }
func (MessageDelete) EventType() EventType       { return EventMessageDelete }
func (MessageDeleteBulk) EventType() EventType   { return EventMessageDeleteBulk }
func (e MessageReaction) EventType() EventType   { return e.Type }
func (ChannelCreate) EventType() EventType       { return EventChannelCreate }
func (ChannelUpdate) EventType() EventType       { return EventChannelUpdate }
func (ChannelDelete) EventType() EventType       { return EventChannelDelete }
func (e ChannelMembership) EventType() EventType { return e.Type }
func (e ChannelTyping) EventType() EventType     { return e.Type }
func (ChannelAcknowledged) EventType() EventType { return EventChannelAcknowledged }
func (ServerCreate) EventType() EventType        { return EventServerCreate }
func (ServerUpdate) EventType() EventType        { return EventServerUpdate }
func (e ServerDelete) EventType() EventType      { return e.Type }
func (ServerRoleUpdate) EventType() EventType    { return EventServerRoleUpdate }
func (ServerRoleDelete) EventType() EventType    { return EventServerRoleDelete }
func (MemberJoin) EventType() EventType          { return EventServerMemberJoin }
func (MemberUpdate) EventType() EventType        { return EventServerMemberUpdate }
func (MemberLeave) EventType() EventType         { return EventServerMemberLeave }
func (UserUpdate) EventType() EventType          { return EventUserUpdate }
func (UserSettingsUpdate) EventType() EventType  { return EventUserSettingsUpdate }
func (EmojiCreate) EventType() EventType         { return EventEmojiCreate }
func (EmojiDelete) EventType() EventType         { return EventEmojiDelete }

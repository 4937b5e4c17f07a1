// Copyright 2024-2026 Aiku AI

package hydration

import (
	"github.com/tidwall/gjson"
	"go.mau.fi/util/exsync"

	"github.com/aiku/upryzing-go/pkg/permissions"
)

type ChannelType string

const (
	ChannelTypeSavedMessages ChannelType = "SavedMessages"
	ChannelTypeDirectMessage ChannelType = "DirectMessage"
	ChannelTypeGroup         ChannelType = "Group"
	ChannelTypeText          ChannelType = "TextChannel"
	ChannelTypeVoice         ChannelType = "VoiceChannel"
)

// VoiceInfo is present on channels that support voice calls.
type VoiceInfo struct {
	// MaxUsers is zero when the channel has no participant limit.
	MaxUsers int
}

// Channel is a hydrated channel. Set-valued fields are replaced, never
// mutated, once the channel is stored.
type Channel struct {
	ID          string
	ChannelType ChannelType

	Name        string
	Description string
	Icon        *File

	Active       bool
	TypingIDs    *exsync.Set[string]
	RecipientIDs *exsync.Set[string]

	UserID   string
	OwnerID  string
	ServerID string

	// Permissions is the member permission mask of a group.
	Permissions        *uint64
	DefaultPermissions *permissions.Override
	RolePermissions    map[string]permissions.Override
	NSFW               bool

	LastMessageID string

	Voice *VoiceInfo
}

var ChannelSpec = New("channel", func() Channel {
	return Channel{
		TypingIDs:    exsync.NewSet[string](),
		RecipientIDs: exsync.NewSet[string](),
	}
}).
	Require("_id", "channel_type").
	Map("_id", "ID", func(v gjson.Result, _ Context, c *Channel) { c.ID = v.String() }).
	Map("channel_type", "ChannelType", func(v gjson.Result, _ Context, c *Channel) { c.ChannelType = ChannelType(v.String()) }).
	Map("name", "Name", func(v gjson.Result, _ Context, c *Channel) { c.Name = v.String() }).
	Map("description", "Description", func(v gjson.Result, _ Context, c *Channel) { c.Description = v.String() }).
	Map("icon", "Icon", func(v gjson.Result, ctx Context, c *Channel) { c.Icon = optFile(v, ctx) }).
	Map("active", "Active", func(v gjson.Result, _ Context, c *Channel) { c.Active = v.Bool() }).
	Map("recipients", "RecipientIDs", func(v gjson.Result, _ Context, c *Channel) { c.RecipientIDs = stringSet(v) }).
	Map("user", "UserID", func(v gjson.Result, _ Context, c *Channel) { c.UserID = v.String() }).
	Map("owner", "OwnerID", func(v gjson.Result, _ Context, c *Channel) { c.OwnerID = v.String() }).
	Map("server", "ServerID", func(v gjson.Result, _ Context, c *Channel) { c.ServerID = v.String() }).
	Map("permissions", "Permissions", func(v gjson.Result, ctx Context, c *Channel) {
		if !v.Exists() || v.Type == gjson.Null {
			c.Permissions = nil
			return
		}
		n := bits(v, ctx)
		c.Permissions = &n
	}).
	Map("default_permissions", "DefaultPermissions", func(v gjson.Result, ctx Context, c *Channel) {
		if !v.IsObject() {
			c.DefaultPermissions = nil
			return
		}
		o := ParseOverride(v, ctx)
		c.DefaultPermissions = &o
	}).
	Map("role_permissions", "RolePermissions", func(v gjson.Result, ctx Context, c *Channel) {
		overrides := make(map[string]permissions.Override)
		v.ForEach(func(key, value gjson.Result) bool {
			overrides[key.String()] = ParseOverride(value, ctx)
			return true
		})
		c.RolePermissions = overrides
	}).
	Map("nsfw", "NSFW", func(v gjson.Result, _ Context, c *Channel) { c.NSFW = v.Bool() }).
	Map("last_message_id", "LastMessageID", func(v gjson.Result, _ Context, c *Channel) { c.LastMessageID = v.String() }).
	Map("voice", "Voice", func(v gjson.Result, _ Context, c *Channel) { c.Voice = voiceInfo(v, c.ChannelType) }).
	Clearable("Icon", "Icon", func(c *Channel) { c.Icon = nil }).
	Clearable("Description", "Description", func(c *Channel) { c.Description = "" })

// voiceInfo reads the voice capability of a channel. Direct messages, groups
// and legacy voice channels support calls without carrying a voice object.
func voiceInfo(v gjson.Result, channelType ChannelType) *VoiceInfo {
	if v.IsObject() {
		return &VoiceInfo{MaxUsers: int(v.Get("max_users").Int())}
	}
	switch channelType {
	case ChannelTypeDirectMessage, ChannelTypeGroup, ChannelTypeVoice:
		return &VoiceInfo{}
	default:
		return nil
	}
}

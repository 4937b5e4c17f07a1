// Copyright 2024-2026 Aiku AI

package hydration

import (
	"github.com/tidwall/gjson"
	"go.mau.fi/util/exsync"
)

// ChannelUnread tracks the read marker of the current user in one channel.
type ChannelUnread struct {
	ChannelID     string
	UserID        string
	LastMessageID string
	MentionIDs    *exsync.Set[string]
}

var ChannelUnreadSpec = New("channel unread", func() ChannelUnread {
	return ChannelUnread{MentionIDs: exsync.NewSet[string]()}
}).
	Require("_id").
	Map("_id", "ChannelID", func(v gjson.Result, _ Context, u *ChannelUnread) { u.ChannelID = v.Get("channel").String() }).
	Map("_id", "UserID", func(v gjson.Result, ctx Context, u *ChannelUnread) {
		u.UserID = v.Get("user").String()
		if u.UserID == "" && ctx != nil {
			u.UserID = ctx.SelfID()
		}
	}).
	Map("last_id", "LastMessageID", func(v gjson.Result, _ Context, u *ChannelUnread) { u.LastMessageID = v.String() }).
	Map("mentions", "MentionIDs", func(v gjson.Result, _ Context, u *ChannelUnread) { u.MentionIDs = stringSet(v) })

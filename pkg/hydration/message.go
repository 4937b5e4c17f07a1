// Copyright 2024-2026 Aiku AI

package hydration

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/tidwall/gjson"
	"go.mau.fi/util/exsync"
)

// Masquerade overrides the displayed author of a message.
type Masquerade struct {
	Name   string
	Avatar string
	Colour string
}

// Webhook identifies the webhook a message was sent through.
type Webhook struct {
	Name   string
	Avatar string
}

// SystemMessage is the payload of a message generated by the server. Only
// the fields relevant to its Type are set.
type SystemMessage struct {
	Type    string
	Content string
	ID      string
	By      string
	Name    string
	From    string
	To      string
}

// Message is a hydrated message.
type Message struct {
	ID        string
	Nonce     string
	ChannelID string
	AuthorID  string
	Webhook   *Webhook

	Content     string
	System      *SystemMessage
	Attachments []File
	EditedAt    *time.Time
	Embeds      []json.RawMessage

	MentionIDs []string
	ReplyIDs   []string
	// Reactions maps an emoji to the set of users that reacted with it. The
	// map is replaced on every reaction change.
	Reactions  map[string]*exsync.Set[string]
	Masquerade *Masquerade
	Pinned     bool
	Flags      uint64
}

// MentionsUser reports whether userID is mentioned by the message.
func (m *Message) MentionsUser(userID string) bool {
	return userID != "" && slices.Contains(m.MentionIDs, userID)
}

// WithReaction returns a copy of the reaction map with userID added to or
// removed from emoji. Empty sets are dropped.
func (m *Message) WithReaction(emoji, userID string, add bool) map[string]*exsync.Set[string] {
	next := maps.Clone(m.Reactions)
	if next == nil {
		next = make(map[string]*exsync.Set[string])
	}
	var users []string
	if cur, ok := next[emoji]; ok {
		users = cur.AsList()
	}
	if add {
		if !slices.Contains(users, userID) {
			users = append(users, userID)
		}
	} else {
		users = slices.DeleteFunc(users, func(u string) bool { return u == userID })
	}
	if len(users) == 0 {
		delete(next, emoji)
	} else {
		next[emoji] = exsync.NewSetWithItems(users)
	}
	return next
}

var MessageSpec = New("message", func() Message {
	return Message{Reactions: map[string]*exsync.Set[string]{}}
}).
	Require("_id", "channel").
	Map("_id", "ID", func(v gjson.Result, _ Context, m *Message) { m.ID = v.String() }).
	Map("nonce", "Nonce", func(v gjson.Result, _ Context, m *Message) { m.Nonce = v.String() }).
	Map("channel", "ChannelID", func(v gjson.Result, _ Context, m *Message) { m.ChannelID = v.String() }).
	Map("author", "AuthorID", func(v gjson.Result, _ Context, m *Message) { m.AuthorID = v.String() }).
	Map("webhook", "Webhook", func(v gjson.Result, _ Context, m *Message) {
		if !v.IsObject() {
			m.Webhook = nil
			return
		}
		m.Webhook = &Webhook{Name: v.Get("name").String(), Avatar: v.Get("avatar").String()}
	}).
	Map("content", "Content", func(v gjson.Result, _ Context, m *Message) { m.Content = v.String() }).
	Map("system", "System", func(v gjson.Result, _ Context, m *Message) {
		if !v.IsObject() {
			m.System = nil
			return
		}
		m.System = &SystemMessage{
			Type:    v.Get("type").String(),
			Content: v.Get("content").String(),
			ID:      v.Get("id").String(),
			By:      v.Get("by").String(),
			Name:    v.Get("name").String(),
			From:    v.Get("from").String(),
			To:      v.Get("to").String(),
		}
	}).
	Map("attachments", "Attachments", func(v gjson.Result, ctx Context, m *Message) { m.Attachments = fileList(v, ctx) }).
	Map("edited", "EditedAt", func(v gjson.Result, _ Context, m *Message) { m.EditedAt = optTime(v) }).
	Map("embeds", "Embeds", func(v gjson.Result, _ Context, m *Message) {
		var embeds []json.RawMessage
		for _, item := range v.Array() {
			embeds = append(embeds, json.RawMessage(item.Raw))
		}
		m.Embeds = embeds
	}).
	Map("mentions", "MentionIDs", func(v gjson.Result, _ Context, m *Message) { m.MentionIDs = stringList(v) }).
	Map("replies", "ReplyIDs", func(v gjson.Result, _ Context, m *Message) { m.ReplyIDs = stringList(v) }).
	Map("reactions", "Reactions", func(v gjson.Result, _ Context, m *Message) {
		reactions := make(map[string]*exsync.Set[string])
		v.ForEach(func(key, value gjson.Result) bool {
			reactions[key.String()] = stringSet(value)
			return true
		})
		m.Reactions = reactions
	}).
	Map("masquerade", "Masquerade", func(v gjson.Result, _ Context, m *Message) {
		if !v.IsObject() {
			m.Masquerade = nil
			return
		}
		m.Masquerade = &Masquerade{
			Name:   v.Get("name").String(),
			Avatar: v.Get("avatar").String(),
			Colour: v.Get("colour").String(),
		}
	}).
	Map("pinned", "Pinned", func(v gjson.Result, _ Context, m *Message) { m.Pinned = v.Bool() }).
	Map("flags", "Flags", func(v gjson.Result, ctx Context, m *Message) { m.Flags = bits(v, ctx) }).
	Clearable("Pinned", "Pinned", func(m *Message) { m.Pinned = false })

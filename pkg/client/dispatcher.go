// Copyright 2024-2026 Aiku AI

package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.mau.fi/util/exsync"

	"github.com/aiku/upryzing-go/pkg/events"
	"github.com/aiku/upryzing-go/pkg/hydration"
)

const unreadSyncTimeout = 30 * time.Second

// HandleState implements events.Handler.
func (c *Client) HandleState(state events.State) {
	switch state {
	case events.StateConnecting:
		c.setReady(false)
		c.emit(LifecycleEvent{Type: EventConnecting})
	case events.StateConnected:
		// Member lists may have drifted while disconnected.
		c.Servers.ResetSyncStatus()
		c.emit(LifecycleEvent{Type: EventConnected})
	case events.StateDisconnected:
		c.setReady(false)
		c.emit(LifecycleEvent{Type: EventDisconnected})
	}
}

// HandleError implements events.Handler.
func (c *Client) HandleError(err error) {
	c.emit(ErrorEvent{Err: err})
}

// HandleEvent implements events.Handler.
func (c *Client) HandleEvent(evt events.Event) {
	c.handleEvent(evt.Type, evt.Raw)
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

func (c *Client) handleEvent(typ string, raw gjson.Result) {
	switch typ {
	case "Bulk":
		for _, item := range raw.Get("v").Array() {
			c.handleEvent(item.Get("type").String(), item)
		}
	case "Ready":
		c.handleReady(raw)
	case "Logout":
		c.logoutLocal()
	default:
		c.apply(func(emit func(Event)) {
			c.dispatch(typ, raw, emit)
		})
	}
}

// dispatch applies one event. It runs under the apply lock.
func (c *Client) dispatch(typ string, raw gjson.Result, emit func(Event)) {
	switch typ {
	case "Authenticated":
		c.log.Debug().Msg("Event connection authenticated")
	case "Error":
		c.handleServerError(raw, emit)
	case "Message":
		_, err := c.applyMessageCreate(raw, emit)
		c.report(err, emit)
	case "MessageUpdate":
		c.applyMessagePatch(raw.Get("id").String(), raw.Get("channel").String(), raw.Get("data"), hydration.ClearNames(raw.Get("clear")), emit)
	case "MessageAppend":
		c.handleMessageAppend(raw, emit)
	case "MessageDelete":
		c.applyMessageDelete(raw.Get("id").String(), raw.Get("channel").String(), emit)
	case "BulkMessageDelete":
		c.handleBulkMessageDelete(raw, emit)
	case "MessageReact":
		c.applyReaction(raw.Get("id").String(), raw.Get("channel_id").String(), raw.Get("emoji_id").String(), raw.Get("user_id").String(), true, emit)
	case "MessageUnreact":
		c.applyReaction(raw.Get("id").String(), raw.Get("channel_id").String(), raw.Get("emoji_id").String(), raw.Get("user_id").String(), false, emit)
	case "MessageRemoveReaction":
		c.handleRemoveReaction(raw, emit)
	case "ChannelCreate":
		_, err := c.applyChannelCreate(raw, emit)
		c.report(err, emit)
	case "ChannelUpdate":
		c.applyChannelPatch(raw.Get("id").String(), raw.Get("data"), hydration.ClearNames(raw.Get("clear")), emit)
	case "ChannelDelete":
		c.applyChannelDelete(raw.Get("id").String(), emit)
	case "ChannelGroupJoin":
		c.handleGroupMembership(raw, true, emit)
	case "ChannelGroupLeave":
		c.handleGroupMembership(raw, false, emit)
	case "ChannelStartTyping":
		c.handleTyping(raw, true, emit)
	case "ChannelStopTyping":
		c.handleTyping(raw, false, emit)
	case "ChannelAck":
		c.report(c.applyAck(raw.Get("id").String(), raw.Get("message_id").String(), emit), emit)
	case "ServerCreate":
		_, err := c.applyServerCreate(raw.Get("server"), raw.Get("channels"), raw.Get("emojis"), emit)
		c.report(err, emit)
	case "ServerUpdate":
		c.applyServerPatch(raw.Get("id").String(), raw.Get("data"), hydration.ClearNames(raw.Get("clear")), emit)
	case "ServerDelete":
		c.applyServerDelete(raw.Get("id").String(), EventServerDelete, emit)
	case "ServerMemberJoin":
		c.handleMemberJoin(raw, emit)
	case "ServerMemberUpdate":
		c.applyMemberPatch(hydration.ParseMemberID(raw.Get("id")), raw.Get("data"), hydration.ClearNames(raw.Get("clear")), emit)
	case "ServerMemberLeave":
		c.applyMemberLeave(hydration.MemberID{Server: raw.Get("id").String(), User: raw.Get("user").String()}, emit)
	case "ServerRoleUpdate":
		_, err := c.applyRoleUpdate(raw.Get("id").String(), raw.Get("role_id").String(), raw.Get("data"), hydration.ClearNames(raw.Get("clear")), emit)
		if !errors.Is(err, ErrNotFound) {
			c.report(err, emit)
		}
	case "ServerRoleDelete":
		c.applyRoleDelete(raw.Get("id").String(), raw.Get("role_id").String(), emit)
	case "UserUpdate":
		c.applyUserPatch(raw.Get("id").String(), raw.Get("data"), hydration.ClearNames(raw.Get("clear")), emit)
	case "UserRelationship":
		c.handleRelationship(raw, emit)
	case "UserSettingsUpdate":
		c.handleSettingsUpdate(raw, emit)
	case "EmojiCreate":
		c.report(c.applyEmojiCreate(raw, emit), emit)
	case "EmojiDelete":
		c.applyEmojiDelete(raw.Get("id").String(), emit)
	default:
		c.log.Trace().Str("event_type", typ).Msg("Unhandled event type")
	}
}

// hydrationError logs and wraps an entity that could not be hydrated.
func (c *Client) hydrationError(kind string, err error) error {
	c.log.Warn().Err(err).Str("kind", kind).Msg("Failed to hydrate entity")
	return fmt.Errorf("failed to hydrate %s: %w", kind, err)
}

func (c *Client) hydrationFailed(kind string, err error, emit func(Event)) {
	emit(ErrorEvent{Err: c.hydrationError(kind, err)})
}

// report emits one ErrorEvent per error collected in err.
func (c *Client) report(err error, emit func(Event)) {
	if err == nil {
		return
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			emit(ErrorEvent{Err: e})
		}
		return
	}
	emit(ErrorEvent{Err: err})
}

func (c *Client) handleReady(raw gjson.Result) {
	if c.Ready() {
		c.log.Debug().Msg("Ignoring repeated Ready event")
		return
	}
	c.apply(func(emit func(Event)) {
		c.loadSnapshot(raw, emit)
	})
	if c.cfg.SyncUnreads {
		ctx, cancel := context.WithTimeout(context.Background(), unreadSyncTimeout)
		err := c.ChannelUnreads.Sync(ctx)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to sync unreads")
			c.emit(ErrorEvent{Err: err})
		}
	}
	c.setReady(true)
	c.emit(LifecycleEvent{Type: EventReady})
}

// loadSnapshot replaces the state carried by a Ready event.
func (c *Client) loadSnapshot(raw gjson.Result, emit func(Event)) {
	c.Users.store.Reset()
	c.Servers.store.Reset()
	c.Channels.store.Reset()
	c.ServerMembers.store.Reset()
	c.Emojis.store.Reset()
	// Deletions made on the previous connection are never echoed.
	clear(c.echoes)

	users := raw.Get("users").Array()
	// The current user must be known before users are hydrated.
	for _, user := range users {
		if user.Get("relationship").String() == string(hydration.RelationshipUser) {
			c.setSelfID(user.Get("_id").String())
			break
		}
	}
	for _, user := range users {
		if _, _, err := c.Users.getOrCreate(user.Get("_id").String(), user); err != nil {
			c.hydrationFailed("user", err, emit)
		}
	}
	for _, server := range raw.Get("servers").Array() {
		if _, _, err := c.Servers.getOrCreate(server.Get("_id").String(), server); err != nil {
			c.hydrationFailed("server", err, emit)
		}
	}
	for _, channel := range raw.Get("channels").Array() {
		if _, _, err := c.Channels.getOrCreate(channel.Get("_id").String(), channel); err != nil {
			c.hydrationFailed("channel", err, emit)
		}
	}
	for _, member := range raw.Get("members").Array() {
		key := hydration.ParseMemberID(member.Get("_id")).Key()
		if _, _, err := c.ServerMembers.getOrCreate(key, member); err != nil {
			c.hydrationFailed("member", err, emit)
		}
	}
	for _, emoji := range raw.Get("emojis").Array() {
		if _, _, err := c.Emojis.getOrCreate(emoji.Get("_id").String(), emoji); err != nil {
			c.hydrationFailed("emoji", err, emit)
		}
	}
	c.log.Debug().
		Int("users", len(users)).
		Int("servers", len(raw.Get("servers").Array())).
		Int("channels", len(raw.Get("channels").Array())).
		Msg("Loaded Ready snapshot")
}

func (c *Client) handleServerError(raw gjson.Result, emit func(Event)) {
	code := raw.Get("error").String()
	// Rejected sessions are already reported by the connection manager.
	if events.IsAuthFailure(code) {
		return
	}
	emit(ErrorEvent{Err: &ServerError{Code: code}})
}

func (c *Client) applyMessageCreate(raw gjson.Result, emit func(Event)) (*hydration.Message, error) {
	msg, created, err := c.Messages.getOrCreate(raw.Get("_id").String(), raw)
	if err != nil {
		return nil, c.hydrationError("message", err)
	}
	if !created {
		return msg, nil
	}
	_, channel, ok := c.Channels.update(msg.ChannelID, func(ch *hydration.Channel) {
		ch.LastMessageID = msg.ID
		if ch.TypingIDs.Has(msg.AuthorID) {
			ch.TypingIDs = withoutItem(ch.TypingIDs, msg.AuthorID)
		}
	})
	notify := false
	if msg.MentionsUser(c.SelfID()) {
		if c.cfg.SyncUnreads {
			if _, err := c.ChannelUnreads.forChannel(msg.ChannelID); err == nil {
				c.ChannelUnreads.update(msg.ChannelID, func(u *hydration.ChannelUnread) {
					u.MentionIDs = withItem(u.MentionIDs, msg.ID)
				})
			}
		}
		notify = !ok || !c.cfg.channelIsMuted(*channel)
	}
	emit(MessageCreate{Message: *msg, Notify: notify})
	return msg, nil
}

func (c *Client) applyMessagePatch(id, channelID string, data gjson.Result, clear []string, emit func(Event)) {
	prev, next, changed := c.Messages.patch(id, data, clear)
	switch {
	case prev == nil && c.cfg.Partials:
		partial := hydration.Message{ID: id, ChannelID: channelID}
		emit(MessageUpdate{Message: partial, Previous: partial})
	case changed:
		emit(MessageUpdate{Message: *next, Previous: *prev})
	}
}

func (c *Client) handleMessageAppend(raw gjson.Result, emit func(Event)) {
	embeds := raw.Get("append.embeds").Array()
	if len(embeds) == 0 {
		return
	}
	prev, next, ok := c.Messages.update(raw.Get("id").String(), func(m *hydration.Message) {
		m.Embeds = slices.Clone(m.Embeds)
		for _, embed := range embeds {
			m.Embeds = append(m.Embeds, []byte(embed.Raw))
		}
	})
	if ok {
		emit(MessageUpdate{Message: *next, Previous: *prev})
	}
}

func (c *Client) applyMessageDelete(id, channelID string, emit func(Event)) {
	if msg, ok := c.Messages.remove(id); ok {
		emit(MessageDelete{Message: *msg})
	} else if c.cfg.Partials && !c.echoed("message", id) {
		emit(MessageDelete{Message: hydration.Message{ID: id, ChannelID: channelID}})
	}
}

func (c *Client) handleBulkMessageDelete(raw gjson.Result, emit func(Event)) {
	channelID := raw.Get("channel").String()
	evt := MessageDeleteBulk{ChannelID: channelID}
	for _, id := range raw.Get("ids").Array() {
		if msg, ok := c.Messages.remove(id.String()); ok {
			evt.Messages = append(evt.Messages, *msg)
		} else if c.cfg.Partials {
			evt.Messages = append(evt.Messages, hydration.Message{ID: id.String(), ChannelID: channelID})
		}
	}
	if len(evt.Messages) == 0 {
		return
	}
	if channel, ok := c.Channels.get(channelID); ok {
		ch := *channel
		evt.Channel = &ch
	}
	emit(evt)
}

func (c *Client) applyReaction(id, channelID, emoji, userID string, add bool, emit func(Event)) {
	typ := EventMessageReactionAdd
	if !add {
		typ = EventMessageReactionRemove
	}
	cur, ok := c.Messages.get(id)
	if !ok {
		if c.cfg.Partials {
			emit(MessageReaction{Type: typ, Message: hydration.Message{ID: id, ChannelID: channelID}, UserID: userID, Emoji: emoji})
		}
		return
	}
	users, exists := cur.Reactions[emoji]
	if add == (exists && users.Has(userID)) {
		return
	}
	_, next, _ := c.Messages.update(id, func(m *hydration.Message) {
		m.Reactions = m.WithReaction(emoji, userID, add)
	})
	emit(MessageReaction{Type: typ, Message: *next, UserID: userID, Emoji: emoji})
}

func (c *Client) handleRemoveReaction(raw gjson.Result, emit func(Event)) {
	id := raw.Get("id").String()
	emoji := raw.Get("emoji_id").String()
	cur, ok := c.Messages.get(id)
	if !ok {
		if c.cfg.Partials {
			partial := hydration.Message{ID: id, ChannelID: raw.Get("channel_id").String()}
			emit(MessageReaction{Type: EventMessageReactionRemoveEmoji, Message: partial, Emoji: emoji})
		}
		return
	}
	if _, exists := cur.Reactions[emoji]; !exists {
		return
	}
	_, next, _ := c.Messages.update(id, func(m *hydration.Message) {
		m.Reactions = maps.Clone(m.Reactions)
		delete(m.Reactions, emoji)
	})
	emit(MessageReaction{Type: EventMessageReactionRemoveEmoji, Message: *next, Emoji: emoji})
}

func (c *Client) applyChannelCreate(raw gjson.Result, emit func(Event)) (*hydration.Channel, error) {
	channel, created, err := c.Channels.getOrCreate(raw.Get("_id").String(), raw)
	if err != nil {
		return nil, c.hydrationError("channel", err)
	}
	if !created {
		return channel, nil
	}
	if channel.ServerID != "" {
		c.Servers.update(channel.ServerID, func(s *hydration.Server) {
			if !slices.Contains(s.ChannelIDs, channel.ID) {
				s.ChannelIDs = append(slices.Clone(s.ChannelIDs), channel.ID)
			}
		})
	}
	emit(ChannelCreate{Channel: *channel})
	return channel, nil
}

func (c *Client) applyChannelPatch(id string, data gjson.Result, clear []string, emit func(Event)) {
	prev, next, changed := c.Channels.patch(id, data, clear)
	switch {
	case prev == nil && c.cfg.Partials:
		partial := hydration.Channel{ID: id}
		emit(ChannelUpdate{Channel: partial, Previous: partial})
	case changed:
		emit(ChannelUpdate{Channel: *next, Previous: *prev})
	}
}

func (c *Client) applyChannelDelete(id string, emit func(Event)) {
	channel, ok := c.Channels.remove(id)
	if !ok {
		if c.cfg.Partials && !c.echoed("channel", id) {
			emit(ChannelDelete{Channel: hydration.Channel{ID: id}})
		}
		return
	}
	if channel.ServerID != "" {
		c.Servers.update(channel.ServerID, func(s *hydration.Server) {
			s.ChannelIDs = slices.DeleteFunc(slices.Clone(s.ChannelIDs), func(cid string) bool { return cid == id })
		})
	}
	c.ChannelUnreads.remove(id)
	emit(ChannelDelete{Channel: *channel})
}

func (c *Client) handleGroupMembership(raw gjson.Result, join bool, emit func(Event)) {
	id := raw.Get("id").String()
	userID := raw.Get("user").String()
	typ := EventChannelGroupJoin
	if !join {
		typ = EventChannelGroupLeave
	}
	_, next, ok := c.Channels.update(id, func(ch *hydration.Channel) {
		if join {
			ch.RecipientIDs = withItem(ch.RecipientIDs, userID)
		} else {
			ch.RecipientIDs = withoutItem(ch.RecipientIDs, userID)
		}
	})
	if !ok {
		if c.cfg.Partials && (join || userID != c.SelfID() || !c.echoed("channel", id)) {
			emit(ChannelMembership{Type: typ, Channel: hydration.Channel{ID: id}, UserID: userID})
		}
		return
	}
	emit(ChannelMembership{Type: typ, Channel: *next, UserID: userID})
	if !join && userID == c.SelfID() {
		c.applyChannelDelete(id, emit)
	}
}

func (c *Client) handleTyping(raw gjson.Result, start bool, emit func(Event)) {
	id := raw.Get("id").String()
	userID := raw.Get("user").String()
	cur, ok := c.Channels.get(id)
	if !ok || cur.TypingIDs.Has(userID) == start {
		return
	}
	typ := EventChannelStartTyping
	if !start {
		typ = EventChannelStopTyping
	}
	_, next, _ := c.Channels.update(id, func(ch *hydration.Channel) {
		if start {
			ch.TypingIDs = withItem(ch.TypingIDs, userID)
		} else {
			ch.TypingIDs = withoutItem(ch.TypingIDs, userID)
		}
	})
	emit(ChannelTyping{Type: typ, Channel: *next, UserID: userID})
}

// applyAck moves the read marker of a channel to messageID. Mentions of
// later messages stay unread. An ack that changes nothing is ignored.
func (c *Client) applyAck(channelID, messageID string, emit func(Event)) error {
	unread, err := c.ChannelUnreads.forChannel(channelID)
	if err != nil {
		return c.hydrationError("channel unread", err)
	}
	mentions := exsync.NewSet[string]()
	var kept int
	if unread.MentionIDs != nil {
		for _, id := range unread.MentionIDs.AsList() {
			kept++
			if strings.Compare(id, messageID) > 0 {
				mentions.Add(id)
			}
		}
	}
	if unread.LastMessageID == messageID && mentions.Size() == kept {
		return nil
	}
	c.ChannelUnreads.update(channelID, func(u *hydration.ChannelUnread) {
		u.LastMessageID = messageID
		u.MentionIDs = mentions
	})
	if channel, ok := c.Channels.get(channelID); ok {
		emit(ChannelAcknowledged{Channel: *channel, MessageID: messageID})
	} else if c.cfg.Partials {
		emit(ChannelAcknowledged{Channel: hydration.Channel{ID: channelID}, MessageID: messageID})
	}
	return nil
}

func (c *Client) applyServerCreate(serverRaw, channels, emojis gjson.Result, emit func(Event)) (*hydration.Server, error) {
	server, created, err := c.Servers.getOrCreate(serverRaw.Get("_id").String(), serverRaw)
	if err != nil {
		return nil, c.hydrationError("server", err)
	}
	if created {
		emit(ServerCreate{Server: *server})
	}
	var errs *multierror.Error
	for _, channel := range channels.Array() {
		if _, err := c.applyChannelCreate(channel, emit); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, emoji := range emojis.Array() {
		if err := c.applyEmojiCreate(emoji, emit); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	server, _ = c.Servers.get(server.ID)
	return server, errs.ErrorOrNil()
}

func (c *Client) applyServerPatch(id string, data gjson.Result, clear []string, emit func(Event)) {
	prev, next, changed := c.Servers.patch(id, data, clear)
	switch {
	case prev == nil && c.cfg.Partials:
		partial := hydration.Server{ID: id}
		emit(ServerUpdate{Server: partial, Previous: partial})
	case changed:
		emit(ServerUpdate{Server: *next, Previous: *prev})
	}
}

// applyServerDelete removes a server with its channels, members and emojis.
// typ tells a deletion from the current user leaving.
func (c *Client) applyServerDelete(id string, typ EventType, emit func(Event)) {
	server, ok := c.Servers.remove(id)
	if !ok {
		if c.cfg.Partials && !c.echoed("server", id) {
			emit(ServerDelete{Type: typ, Server: hydration.Server{ID: id}})
		}
		return
	}
	for _, channelID := range server.ChannelIDs {
		c.Channels.remove(channelID)
		c.ChannelUnreads.remove(channelID)
	}
	prefix := id + ":"
	for _, key := range c.ServerMembers.store.PeekKeys() {
		if strings.HasPrefix(key, prefix) {
			c.ServerMembers.remove(key)
		}
	}
	c.Emojis.each(func(emojiID string, emoji *hydration.Emoji) {
		if emoji.Parent.ID == id {
			c.Emojis.remove(emojiID)
		}
	})
	c.Servers.markUnsynced(id)
	emit(ServerDelete{Type: typ, Server: *server})
}

func (c *Client) handleMemberJoin(raw gjson.Result, emit func(Event)) {
	id := hydration.MemberID{Server: raw.Get("id").String(), User: raw.Get("user").String()}
	data := raw.Get("member")
	if !data.IsObject() {
		payload, _ := sjson.Set("{}", "_id.server", id.Server)
		payload, _ = sjson.Set(payload, "_id.user", id.User)
		payload, _ = sjson.Set(payload, "joined_at", time.Now().UTC().Format(time.RFC3339Nano))
		data = gjson.Parse(payload)
	}
	member, created, err := c.ServerMembers.getOrCreate(id.Key(), data)
	if err != nil {
		c.hydrationFailed("member", err, emit)
		return
	}
	if created {
		emit(MemberJoin{Member: *member})
	}
}

func (c *Client) applyMemberPatch(id hydration.MemberID, data gjson.Result, clear []string, emit func(Event)) {
	prev, next, changed := c.ServerMembers.patch(id.Key(), data, clear)
	switch {
	case prev == nil && c.cfg.Partials:
		partial := hydration.Member{ID: id}
		emit(MemberUpdate{Member: partial, Previous: partial})
	case changed:
		emit(MemberUpdate{Member: *next, Previous: *prev})
	}
}

func (c *Client) applyMemberLeave(id hydration.MemberID, emit func(Event)) {
	if id.User == c.SelfID() {
		c.applyServerDelete(id.Server, EventServerLeave, emit)
		return
	}
	if member, ok := c.ServerMembers.remove(id.Key()); ok {
		emit(MemberLeave{Member: *member})
	} else if c.cfg.Partials && !c.echoed("member", id.Key()) {
		emit(MemberLeave{Member: hydration.Member{ID: id}})
	}
}

func (c *Client) applyRoleUpdate(serverID, roleID string, data gjson.Result, clear []string, emit func(Event)) (*hydration.Role, error) {
	server, ok := c.Servers.get(serverID)
	if !ok {
		return nil, ErrNotFound
	}
	prev, existed := server.Roles[roleID]
	var role hydration.Role
	if existed {
		role = prev
		changed := hydration.RoleSpec.Clear(&role, clear)
		changed = append(changed, hydration.RoleSpec.Patch(&role, data, c)...)
		if len(changed) == 0 {
			return &role, nil
		}
	} else {
		created, err := hydration.RoleSpec.Create(data, c)
		if err != nil {
			return nil, c.hydrationError("role", err)
		}
		role = *created
		role.ID = roleID
		role.ServerID = serverID
	}
	_, next, _ := c.Servers.update(serverID, func(s *hydration.Server) {
		s.Roles = maps.Clone(s.Roles)
		if s.Roles == nil {
			s.Roles = make(map[string]hydration.Role)
		}
		s.Roles[roleID] = role
	})
	evt := ServerRoleUpdate{Server: *next, RoleID: roleID}
	if existed {
		evt.Previous = &prev
	}
	emit(evt)
	return &role, nil
}

// applyRoleDelete removes a role from its server, from the members holding
// it and from channel overrides.
func (c *Client) applyRoleDelete(serverID, roleID string, emit func(Event)) {
	server, ok := c.Servers.get(serverID)
	if !ok {
		return
	}
	role, ok := server.Roles[roleID]
	if !ok {
		return
	}
	_, next, _ := c.Servers.update(serverID, func(s *hydration.Server) {
		s.Roles = maps.Clone(s.Roles)
		delete(s.Roles, roleID)
	})
	prefix := serverID + ":"
	c.ServerMembers.each(func(key string, m *hydration.Member) {
		if strings.HasPrefix(key, prefix) && slices.Contains(m.RoleIDs, roleID) {
			c.ServerMembers.update(key, func(m *hydration.Member) {
				m.RoleIDs = slices.DeleteFunc(slices.Clone(m.RoleIDs), func(id string) bool { return id == roleID })
			})
		}
	})
	for _, channelID := range server.ChannelIDs {
		if ch, ok := c.Channels.get(channelID); ok {
			if _, has := ch.RolePermissions[roleID]; has {
				c.Channels.update(channelID, func(ch *hydration.Channel) {
					ch.RolePermissions = maps.Clone(ch.RolePermissions)
					delete(ch.RolePermissions, roleID)
				})
			}
		}
	}
	emit(ServerRoleDelete{Server: *next, RoleID: roleID, Role: role})
}

func (c *Client) applyUserPatch(id string, data gjson.Result, clear []string, emit func(Event)) {
	prev, next, changed := c.Users.patch(id, data, clear)
	switch {
	case prev == nil && c.cfg.Partials:
		partial := hydration.User{ID: id}
		emit(UserUpdate{User: partial, Previous: partial})
	case changed:
		emit(UserUpdate{User: *next, Previous: *prev})
	}
}

func (c *Client) handleRelationship(raw gjson.Result, emit func(Event)) {
	user := raw.Get("user")
	id := user.Get("_id").String()
	if status := raw.Get("status"); status.Exists() {
		payload, err := sjson.Set(user.Raw, "relationship", status.String())
		if err == nil {
			user = gjson.Parse(payload)
		}
	}
	if c.Users.has(id) {
		c.applyUserPatch(id, user, nil, emit)
		return
	}
	if _, _, err := c.Users.getOrCreate(id, user); err != nil {
		c.hydrationFailed("user", err, emit)
	}
}

func (c *Client) handleSettingsUpdate(raw gjson.Result, emit func(Event)) {
	evt := UserSettingsUpdate{UserID: raw.Get("id").String(), Update: make(map[string]SettingValue)}
	raw.Get("update").ForEach(func(key, value gjson.Result) bool {
		evt.Update[key.String()] = SettingValue{
			UpdatedAt: value.Get("0").Int(),
			Value:     value.Get("1").String(),
		}
		return true
	})
	emit(evt)
}

func (c *Client) applyEmojiCreate(raw gjson.Result, emit func(Event)) error {
	emoji, created, err := c.Emojis.getOrCreate(raw.Get("_id").String(), raw)
	if err != nil {
		return c.hydrationError("emoji", err)
	}
	if created {
		emit(EmojiCreate{Emoji: *emoji})
	}
	return nil
}

func (c *Client) applyEmojiDelete(id string, emit func(Event)) {
	if emoji, ok := c.Emojis.remove(id); ok {
		emit(EmojiDelete{Emoji: *emoji})
	} else if c.cfg.Partials && !c.echoed("emoji", id) {
		emit(EmojiDelete{Emoji: hydration.Emoji{ID: id}})
	}
}

// withItem returns a copy of set with item added.
func withItem(set *exsync.Set[string], item string) *exsync.Set[string] {
	items := []string{item}
	if set != nil {
		items = append(set.AsList(), item)
	}
	return exsync.NewSetWithItems(items)
}

// withoutItem returns a copy of set without item.
func withoutItem(set *exsync.Set[string], item string) *exsync.Set[string] {
	if set == nil {
		return exsync.NewSet[string]()
	}
	items := slices.DeleteFunc(set.AsList(), func(s string) bool { return s == item })
	return exsync.NewSetWithItems(items)
}

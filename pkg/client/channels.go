// Copyright 2024-2026 Aiku AI

package client

import (
	"context"
	"fmt"
	"slices"

	"github.com/tidwall/sjson"

	"github.com/aiku/upryzing-go/pkg/hydration"
)

type ChannelCollection struct {
	*Collection[hydration.Channel]
}

func (c *ChannelCollection) Fetch(ctx context.Context, id string) (hydration.Channel, error) {
	return c.fetch(ctx, id, "/channels/"+id)
}

// Edit changes a channel. remove lists the fields to clear.
func (c *ChannelCollection) Edit(ctx context.Context, id string, changes map[string]any, remove ...string) (hydration.Channel, error) {
	raw, err := c.client.request(ctx, "PATCH", "/channels/"+id, editBody(changes, remove))
	if err != nil {
		return hydration.Channel{}, fmt.Errorf("failed to edit channel %s: %w", id, err)
	}
	c.client.apply(func(emit func(Event)) {
		if c.has(id) {
			c.client.applyChannelPatch(id, raw, remove, emit)
		} else {
			_, err = c.client.applyChannelCreate(raw, emit)
		}
	})
	if err != nil {
		return hydration.Channel{}, err
	}
	return c.lookup(id)
}

// Delete deletes a server channel, closes a direct message or leaves a group.
func (c *ChannelCollection) Delete(ctx context.Context, id string, leaveSilently bool) error {
	path := "/channels/" + id
	if leaveSilently {
		path += "?leave_silently=true"
	}
	if _, err := c.client.request(ctx, "DELETE", path, nil); err != nil {
		return fmt.Errorf("failed to delete channel %s: %w", id, err)
	}
	c.client.apply(func(emit func(Event)) {
		if c.has(id) {
			c.client.applyChannelDelete(id, emit)
			c.client.awaitEcho("channel", id)
		}
	})
	return nil
}

// Ack marks a channel as read up to messageID, or up to its last message
// when messageID is empty.
func (c *ChannelCollection) Ack(ctx context.Context, id, messageID string) error {
	if messageID == "" {
		channel, err := c.lookup(id)
		if err != nil {
			return err
		}
		if channel.LastMessageID == "" {
			return nil
		}
		messageID = channel.LastMessageID
	}
	if _, err := c.client.request(ctx, "PUT", "/channels/"+id+"/ack/"+messageID, nil); err != nil {
		return fmt.Errorf("failed to acknowledge %s in %s: %w", messageID, id, err)
	}
	var err error
	c.client.apply(func(emit func(Event)) {
		err = c.client.applyAck(id, messageID, emit)
	})
	return err
}

// BeginTyping tells other users that the current user is typing.
func (c *ChannelCollection) BeginTyping(id string) error {
	return c.sendTyping("BeginTyping", id)
}

func (c *ChannelCollection) EndTyping(id string) error {
	return c.sendTyping("EndTyping", id)
}

func (c *ChannelCollection) sendTyping(typ, id string) error {
	frame, err := sjson.SetBytes([]byte(`{}`), "type", typ)
	if err != nil {
		return err
	}
	if frame, err = sjson.SetBytes(frame, "channel", id); err != nil {
		return err
	}
	return c.client.send(frame)
}

// OpenDirectMessage returns the direct message channel with a user, creating
// it on the server if needed.
func (c *ChannelCollection) OpenDirectMessage(ctx context.Context, userID string) (hydration.Channel, error) {
	raw, err := c.client.request(ctx, "GET", "/users/"+userID+"/dm", nil)
	if err != nil {
		return hydration.Channel{}, fmt.Errorf("failed to open direct message with %s: %w", userID, err)
	}
	var channel *hydration.Channel
	c.client.apply(func(emit func(Event)) {
		channel, err = c.client.applyChannelCreate(raw, emit)
	})
	if err != nil {
		return hydration.Channel{}, err
	}
	return *channel, nil
}

// IsUnread reports whether a channel has messages after the read marker of
// the current user. Muted, saved-messages and voice channels are never
// unread.
func (c *ChannelCollection) IsUnread(id string) bool {
	channel, ok := c.Get(id)
	if !ok || channel.LastMessageID == "" {
		return false
	}
	switch channel.ChannelType {
	case hydration.ChannelTypeSavedMessages, hydration.ChannelTypeVoice:
		return false
	}
	if c.client.cfg.channelIsMuted(channel) {
		return false
	}
	lastRead := "0"
	if unread, ok := c.client.ChannelUnreads.Get(id); ok && unread.LastMessageID != "" {
		lastRead = unread.LastMessageID
	}
	return lastRead < channel.LastMessageID
}

// MentionCount returns the number of unread mentions of the current user.
func (c *ChannelCollection) MentionCount(id string) int {
	unread, ok := c.client.ChannelUnreads.Get(id)
	if !ok || unread.MentionIDs == nil {
		return 0
	}
	return unread.MentionIDs.Size()
}

// Recipients returns the loaded users taking part in a direct message or
// group, sorted by id.
func (c *ChannelCollection) Recipients(id string) []hydration.User {
	channel, ok := c.Get(id)
	if !ok {
		return nil
	}
	ids := channel.RecipientIDs.AsList()
	slices.Sort(ids)
	users := make([]hydration.User, 0, len(ids))
	for _, userID := range ids {
		if user, ok := c.client.Users.Get(userID); ok {
			users = append(users, user)
		}
	}
	return users
}

// Copyright 2024-2026 Aiku AI

package client

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/aiku/upryzing-go/pkg/hydration"
)

type MessageCollection struct {
	*Collection[hydration.Message]
}

// OutgoingMessage is a message to send. A random nonce is used when Nonce is
// empty.
type OutgoingMessage struct {
	Content     string
	ReplyIDs    []string
	Attachments []string
	Nonce       string
}

// HistoryOptions selects a page of channel history. The zero value fetches
// the latest messages.
type HistoryOptions struct {
	Limit  int
	Before string
	After  string
	// IncludeUsers also loads the authors and their server members.
	IncludeUsers bool
}

func messagePath(channelID, id string) string {
	return "/channels/" + channelID + "/messages/" + id
}

func (m *MessageCollection) Fetch(ctx context.Context, channelID, id string) (hydration.Message, error) {
	return m.fetch(ctx, id, messagePath(channelID, id))
}

// FetchHistory loads a page of messages, newest first. Entities that cannot
// be hydrated are left out and reported in the returned error.
func (m *MessageCollection) FetchHistory(ctx context.Context, channelID string, opts HistoryOptions) ([]hydration.Message, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Before != "" {
		query.Set("before", opts.Before)
	}
	if opts.After != "" {
		query.Set("after", opts.After)
	}
	if opts.IncludeUsers {
		query.Set("include_users", "true")
	}
	path := "/channels/" + channelID + "/messages"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	raw, err := m.client.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history of %s: %w", channelID, err)
	}

	messages := raw
	if raw.IsObject() {
		messages = raw.Get("messages")
	}
	var out []hydration.Message
	var errs *multierror.Error
	m.client.apply(func(func(Event)) {
		for _, user := range raw.Get("users").Array() {
			if _, _, err := m.client.Users.getOrCreate(user.Get("_id").String(), user); err != nil {
				errs = multierror.Append(errs, m.client.hydrationError("user", err))
			}
		}
		for _, member := range raw.Get("members").Array() {
			key := hydration.ParseMemberID(member.Get("_id")).Key()
			if _, _, err := m.client.ServerMembers.getOrCreate(key, member); err != nil {
				errs = multierror.Append(errs, m.client.hydrationError("member", err))
			}
		}
		for _, item := range messages.Array() {
			msg, _, err := m.getOrCreate(item.Get("_id").String(), item)
			if err != nil {
				errs = multierror.Append(errs, m.client.hydrationError("message", err))
				continue
			}
			out = append(out, *msg)
		}
	})
	return out, errs.ErrorOrNil()
}

// Send sends a message and returns it as stored locally.
func (m *MessageCollection) Send(ctx context.Context, channelID string, msg OutgoingMessage) (hydration.Message, error) {
	if msg.Nonce == "" {
		msg.Nonce = uuid.NewString()
	}
	body := map[string]any{"content": msg.Content, "nonce": msg.Nonce}
	if len(msg.ReplyIDs) > 0 {
		replies := make([]map[string]any, 0, len(msg.ReplyIDs))
		for _, id := range msg.ReplyIDs {
			replies = append(replies, map[string]any{"id": id, "mention": false})
		}
		body["replies"] = replies
	}
	if len(msg.Attachments) > 0 {
		body["attachments"] = msg.Attachments
	}
	raw, err := m.client.request(ctx, "POST", "/channels/"+channelID+"/messages", body)
	if err != nil {
		return hydration.Message{}, fmt.Errorf("failed to send message to %s: %w", channelID, err)
	}
	var sent *hydration.Message
	m.client.apply(func(emit func(Event)) {
		sent, err = m.client.applyMessageCreate(raw, emit)
	})
	if err != nil {
		return hydration.Message{}, err
	}
	return *sent, nil
}

// Edit replaces the content of a message.
func (m *MessageCollection) Edit(ctx context.Context, channelID, id, content string) (hydration.Message, error) {
	raw, err := m.client.request(ctx, "PATCH", messagePath(channelID, id), map[string]any{"content": content})
	if err != nil {
		return hydration.Message{}, fmt.Errorf("failed to edit message %s: %w", id, err)
	}
	m.client.apply(func(emit func(Event)) {
		if m.has(id) {
			m.client.applyMessagePatch(id, channelID, raw, nil, emit)
		} else if _, _, err = m.getOrCreate(id, raw); err != nil {
			err = m.client.hydrationError("message", err)
		}
	})
	if err != nil {
		return hydration.Message{}, err
	}
	return m.lookup(id)
}

func (m *MessageCollection) Delete(ctx context.Context, channelID, id string) error {
	if _, err := m.client.request(ctx, "DELETE", messagePath(channelID, id), nil); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	m.client.apply(func(emit func(Event)) {
		// Absent when the event was applied first.
		if m.has(id) {
			m.client.applyMessageDelete(id, channelID, emit)
			m.client.awaitEcho("message", id)
		}
	})
	return nil
}

// React adds a reaction of the current user.
func (m *MessageCollection) React(ctx context.Context, channelID, id, emoji string) error {
	return m.setReaction(ctx, "PUT", channelID, id, emoji, true)
}

// Unreact removes a reaction of the current user.
func (m *MessageCollection) Unreact(ctx context.Context, channelID, id, emoji string) error {
	return m.setReaction(ctx, "DELETE", channelID, id, emoji, false)
}

func (m *MessageCollection) setReaction(ctx context.Context, method, channelID, id, emoji string, add bool) error {
	path := messagePath(channelID, id) + "/reactions/" + url.PathEscape(emoji)
	if _, err := m.client.request(ctx, method, path, nil); err != nil {
		return fmt.Errorf("failed to update reaction on %s: %w", id, err)
	}
	m.client.apply(func(emit func(Event)) {
		if m.has(id) {
			m.client.applyReaction(id, channelID, emoji, m.client.SelfID(), add, emit)
		}
	})
	return nil
}

// InChannel returns the loaded messages of a channel, oldest first.
func (m *MessageCollection) InChannel(channelID string) []hydration.Message {
	var out []hydration.Message
	m.ForEach(func(_ string, msg hydration.Message) {
		if msg.ChannelID == channelID {
			out = append(out, msg)
		}
	})
	// Ids are ULIDs, so they sort by creation time.
	slices.SortFunc(out, func(a, b hydration.Message) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Copyright 2024-2026 Aiku AI

package client

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/aiku/upryzing-go/pkg/hydration"
)

// ChannelUnreadCollection holds the read markers of the current user, keyed
// by channel id.
type ChannelUnreadCollection struct {
	*Collection[hydration.ChannelUnread]
}

// Sync replaces every read marker with the server's. Markers that cannot be
// hydrated are left out and reported in the returned error.
func (u *ChannelUnreadCollection) Sync(ctx context.Context) error {
	raw, err := u.client.request(ctx, "GET", "/sync/unreads", nil)
	if err != nil {
		return fmt.Errorf("failed to sync unreads: %w", err)
	}
	var errs *multierror.Error
	u.client.apply(func(func(Event)) {
		u.store.Reset()
		for _, item := range raw.Array() {
			if _, _, err := u.getOrCreate(item.Get("_id.channel").String(), item); err != nil {
				errs = multierror.Append(errs, u.client.hydrationError("channel unread", err))
			}
		}
	})
	return errs.ErrorOrNil()
}

// For returns the read marker of a channel, creating an empty one if the
// channel has none.
func (u *ChannelUnreadCollection) For(channelID string) (hydration.ChannelUnread, error) {
	var out hydration.ChannelUnread
	var err error
	u.client.apply(func(func(Event)) {
		var unread *hydration.ChannelUnread
		if unread, err = u.forChannel(channelID); err == nil {
			out = *unread
		}
	})
	return out, err
}

func (u *ChannelUnreadCollection) forChannel(channelID string) (*hydration.ChannelUnread, error) {
	if unread, ok := u.get(channelID); ok {
		return unread, nil
	}
	payload, err := sjson.Set(`{"last_id":null,"mentions":[]}`, "_id.channel", channelID)
	if err != nil {
		return nil, err
	}
	if payload, err = sjson.Set(payload, "_id.user", u.client.SelfID()); err != nil {
		return nil, err
	}
	unread, _, err := u.getOrCreate(channelID, gjson.Parse(payload))
	return unread, err
}

// Copyright 2024-2026 Aiku AI

package client

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/aiku/upryzing-go/pkg/hydration"
)

type EmojiCollection struct {
	*Collection[hydration.Emoji]
}

func (e *EmojiCollection) Fetch(ctx context.Context, id string) (hydration.Emoji, error) {
	return e.fetch(ctx, id, "/custom/emoji/"+id)
}

func (e *EmojiCollection) Delete(ctx context.Context, id string) error {
	if _, err := e.client.request(ctx, "DELETE", "/custom/emoji/"+id, nil); err != nil {
		return fmt.Errorf("failed to delete emoji %s: %w", id, err)
	}
	e.client.apply(func(emit func(Event)) {
		if e.has(id) {
			e.client.applyEmojiDelete(id, emit)
			e.client.awaitEcho("emoji", id)
		}
	})
	return nil
}

// InServer returns the emojis of a server sorted by id.
func (e *EmojiCollection) InServer(serverID string) []hydration.Emoji {
	var out []hydration.Emoji
	e.ForEach(func(_ string, emoji hydration.Emoji) {
		if emoji.Parent.Type == "Server" && emoji.Parent.ID == serverID {
			out = append(out, emoji)
		}
	})
	slices.SortFunc(out, func(a, b hydration.Emoji) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Copyright 2024-2026 Aiku AI

package hydration

import (
	"github.com/tidwall/gjson"
)

// EmojiParent is the owner of a custom emoji: a server, or "Detached" once the
// server is gone.
type EmojiParent struct {
	Type string
	ID   string
}

type Emoji struct {
	ID        string
	Parent    EmojiParent
	CreatorID string
	Name      string
	Animated  bool
	NSFW      bool
}

var EmojiSpec = New[Emoji]("emoji", nil).
	Require("_id").
	Map("_id", "ID", func(v gjson.Result, _ Context, e *Emoji) { e.ID = v.String() }).
	Map("parent", "Parent", func(v gjson.Result, _ Context, e *Emoji) {
		e.Parent = EmojiParent{Type: v.Get("type").String(), ID: v.Get("id").String()}
	}).
	Map("creator_id", "CreatorID", func(v gjson.Result, _ Context, e *Emoji) { e.CreatorID = v.String() }).
	Map("name", "Name", func(v gjson.Result, _ Context, e *Emoji) { e.Name = v.String() }).
	Map("animated", "Animated", func(v gjson.Result, _ Context, e *Emoji) { e.Animated = v.Bool() }).
	Map("nsfw", "NSFW", func(v gjson.Result, _ Context, e *Emoji) { e.NSFW = v.Bool() })

type Session struct {
	ID   string
	Name string
}

var SessionSpec = New[Session]("session", nil).
	Require("_id").
	Map("_id", "ID", func(v gjson.Result, _ Context, s *Session) { s.ID = v.String() }).
	Map("name", "Name", func(v gjson.Result, _ Context, s *Session) { s.Name = v.String() })

// Copyright 2024-2026 Aiku AI

package hydration

import (
	"github.com/tidwall/gjson"

	"github.com/aiku/upryzing-go/pkg/permissions"
)

// Category groups server channels in the channel list.
type Category struct {
	ID         string
	Title      string
	ChannelIDs []string
}

// SystemMessages holds the channel ids receiving automatic notices.
type SystemMessages struct {
	UserJoined string
	UserLeft   string
	UserKicked string
	UserBanned string
}

// Role is a server role. It keeps the id of its server rather than a
// reference to it.
type Role struct {
	ID          string
	ServerID    string
	Name        string
	Permissions permissions.Override
	Colour      string
	Hoist       bool
	Rank        int64
}

// Resolver returns the role as seen by the permission resolver.
func (r Role) Resolver() permissions.Role {
	return permissions.Role{ID: r.ID, Rank: r.Rank, Permissions: r.Permissions}
}

var RoleSpec = New[Role]("role", nil).
	Map("name", "Name", func(v gjson.Result, _ Context, r *Role) { r.Name = v.String() }).
	Map("permissions", "Permissions", func(v gjson.Result, ctx Context, r *Role) { r.Permissions = ParseOverride(v, ctx) }).
	Map("colour", "Colour", func(v gjson.Result, _ Context, r *Role) { r.Colour = v.String() }).
	Map("hoist", "Hoist", func(v gjson.Result, _ Context, r *Role) { r.Hoist = v.Bool() }).
	Map("rank", "Rank", func(v gjson.Result, _ Context, r *Role) { r.Rank = v.Int() }).
	Clearable("Colour", "Colour", func(r *Role) { r.Colour = "" })

// Server is a hydrated server.
type Server struct {
	ID          string
	OwnerID     string
	Name        string
	Description string

	ChannelIDs     []string
	Categories     []Category
	SystemMessages *SystemMessages
	Roles          map[string]Role

	DefaultPermissions uint64
	Icon               *File
	Banner             *File
	Flags              uint64

	Analytics    bool
	Discoverable bool
	NSFW         bool
}

var ServerSpec = New("server", func() Server {
	return Server{Roles: map[string]Role{}}
}).
	Require("_id").
	Map("_id", "ID", func(v gjson.Result, _ Context, s *Server) { s.ID = v.String() }).
	Map("owner", "OwnerID", func(v gjson.Result, _ Context, s *Server) { s.OwnerID = v.String() }).
	Map("name", "Name", func(v gjson.Result, _ Context, s *Server) { s.Name = v.String() }).
	Map("description", "Description", func(v gjson.Result, _ Context, s *Server) { s.Description = v.String() }).
	Map("channels", "ChannelIDs", func(v gjson.Result, _ Context, s *Server) { s.ChannelIDs = stringList(v) }).
	Map("categories", "Categories", func(v gjson.Result, _ Context, s *Server) {
		var categories []Category
		for _, item := range v.Array() {
			categories = append(categories, Category{
				ID:         item.Get("id").String(),
				Title:      item.Get("title").String(),
				ChannelIDs: stringList(item.Get("channels")),
			})
		}
		s.Categories = categories
	}).
	Map("system_messages", "SystemMessages", func(v gjson.Result, _ Context, s *Server) {
		if !v.IsObject() {
			s.SystemMessages = nil
			return
		}
		s.SystemMessages = &SystemMessages{
			UserJoined: v.Get("user_joined").String(),
			UserLeft:   v.Get("user_left").String(),
			UserKicked: v.Get("user_kicked").String(),
			UserBanned: v.Get("user_banned").String(),
		}
	}).
	Map("roles", "Roles", func(v gjson.Result, ctx Context, s *Server) {
		roles := make(map[string]Role)
		v.ForEach(func(key, value gjson.Result) bool {
			role, err := RoleSpec.Create(value, ctx)
			if err != nil {
				return true
			}
			role.ID = key.String()
			role.ServerID = s.ID
			roles[role.ID] = *role
			return true
		})
		s.Roles = roles
	}).
	Map("default_permissions", "DefaultPermissions", func(v gjson.Result, ctx Context, s *Server) { s.DefaultPermissions = bits(v, ctx) }).
	Map("icon", "Icon", func(v gjson.Result, ctx Context, s *Server) { s.Icon = optFile(v, ctx) }).
	Map("banner", "Banner", func(v gjson.Result, ctx Context, s *Server) { s.Banner = optFile(v, ctx) }).
	Map("flags", "Flags", func(v gjson.Result, ctx Context, s *Server) { s.Flags = bits(v, ctx) }).
	Map("analytics", "Analytics", func(v gjson.Result, _ Context, s *Server) { s.Analytics = v.Bool() }).
	Map("discoverable", "Discoverable", func(v gjson.Result, _ Context, s *Server) { s.Discoverable = v.Bool() }).
	Map("nsfw", "NSFW", func(v gjson.Result, _ Context, s *Server) { s.NSFW = v.Bool() }).
	Clearable("Icon", "Icon", func(s *Server) { s.Icon = nil }).
	Clearable("Banner", "Banner", func(s *Server) { s.Banner = nil }).
	Clearable("Description", "Description", func(s *Server) { s.Description = "" }).
	Clearable("Categories", "Categories", func(s *Server) { s.Categories = nil }).
	Clearable("SystemMessages", "SystemMessages", func(s *Server) { s.SystemMessages = nil })

// ResolverRoles returns the roles of s keyed by id for permissions.Resolve.
func (s *Server) ResolverRoles() map[string]permissions.Role {
	out := make(map[string]permissions.Role, len(s.Roles))
	for id, role := range s.Roles {
		out[id] = role.Resolver()
	}
	return out
}

// Copyright 2024-2026 Aiku AI

// Package permissions defines the server and channel permission bits and
// resolves the effective mask of a subject from layered allow/deny overrides.
package permissions

// Permission bits against servers and channels.
const (
	ManageChannel       uint64 = 1 << 0
	ManageServer        uint64 = 1 << 1
	ManagePermissions   uint64 = 1 << 2
	ManageRole          uint64 = 1 << 3
	ManageCustomisation uint64 = 1 << 4

	KickMembers     uint64 = 1 << 6
	BanMembers      uint64 = 1 << 7
	TimeoutMembers  uint64 = 1 << 8
	AssignRoles     uint64 = 1 << 9
	ChangeNickname  uint64 = 1 << 10
	ManageNicknames uint64 = 1 << 11
	ChangeAvatar    uint64 = 1 << 12
	RemoveAvatars   uint64 = 1 << 13

	ViewChannel        uint64 = 1 << 20
	ReadMessageHistory uint64 = 1 << 21
	SendMessage        uint64 = 1 << 22
	ManageMessages     uint64 = 1 << 23
	ManageWebhooks     uint64 = 1 << 24
	InviteOthers       uint64 = 1 << 25
	SendEmbeds         uint64 = 1 << 26
	UploadFiles        uint64 = 1 << 27
	Masquerade         uint64 = 1 << 28
	React              uint64 = 1 << 29

	Connect       uint64 = 1 << 30
	Speak         uint64 = 1 << 31
	Video         uint64 = 1 << 32
	MuteMembers   uint64 = 1 << 33
	DeafenMembers uint64 = 1 << 34
	MoveMembers   uint64 = 1 << 35
	Listen        uint64 = 1 << 36

	MentionEveryone uint64 = 1 << 37
	MentionRoles    uint64 = 1 << 38

	// GrantAllSafe covers every bit below 2^52.
	GrantAllSafe uint64 = 0x000f_ffff_ffff_ffff
)

// Permission bits against users.
const (
	UserAccess uint64 = 1 << iota
	UserViewProfile
	UserSendMessage
	UserInvite
)

// Default masks.
const (
	AllowInTimeout = ViewChannel | ReadMessageHistory

	DefaultPermissionViewOnly = ViewChannel | ReadMessageHistory

	DefaultPermission = DefaultPermissionViewOnly |
		SendMessage | InviteOthers | SendEmbeds | UploadFiles |
		Connect | Speak | Video | Listen

	DefaultPermissionSavedMessages = GrantAllSafe

	// DefaultPermissionDirectMessage also applies to group channels.
	DefaultPermissionDirectMessage = DefaultPermission | React | ManageChannel

	DefaultPermissionServer = DefaultPermission | React | ChangeNickname | ChangeAvatar
)

var names = []struct {
	bit  uint64
	name string
}{
	{ManageChannel, "ManageChannel"},
	{ManageServer, "ManageServer"},
	{ManagePermissions, "ManagePermissions"},
	{ManageRole, "ManageRole"},
	{ManageCustomisation, "ManageCustomisation"},
	{KickMembers, "KickMembers"},
	{BanMembers, "BanMembers"},
	{TimeoutMembers, "TimeoutMembers"},
	{AssignRoles, "AssignRoles"},
	{ChangeNickname, "ChangeNickname"},
	{ManageNicknames, "ManageNicknames"},
	{ChangeAvatar, "ChangeAvatar"},
	{RemoveAvatars, "RemoveAvatars"},
	{ViewChannel, "ViewChannel"},
	{ReadMessageHistory, "ReadMessageHistory"},
	{SendMessage, "SendMessage"},
	{ManageMessages, "ManageMessages"},
	{ManageWebhooks, "ManageWebhooks"},
	{InviteOthers, "InviteOthers"},
	{SendEmbeds, "SendEmbeds"},
	{UploadFiles, "UploadFiles"},
	{Masquerade, "Masquerade"},
	{React, "React"},
	{Connect, "Connect"},
	{Speak, "Speak"},
	{Video, "Video"},
	{MuteMembers, "MuteMembers"},
	{DeafenMembers, "DeafenMembers"},
	{MoveMembers, "MoveMembers"},
	{Listen, "Listen"},
	{MentionEveryone, "MentionEveryone"},
	{MentionRoles, "MentionRoles"},
}

// Names lists the named permissions set in mask, lowest bit first.
func Names(mask uint64) []string {
	var out []string
	for _, n := range names {
		if mask&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

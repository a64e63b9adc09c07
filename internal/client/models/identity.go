// Package models holds the client-side domain types shared by the API
// client, session state and services.
package models

import "strings"

// RoleAdmin is the role name of administrators (compared case-insensitively).
const RoleAdmin = "ADMIN"

// Identity is an authenticated principal. The session core only relies on
// AccountID and RoleName; the remaining fields are carried for display.
type Identity struct {
	AccountID    int64  `json:"accountId" validate:"required"`
	RoleID       int64  `json:"roleId,omitempty"`
	RoleName     string `json:"roleName,omitempty"`
	FullName     string `json:"fullName,omitempty"`
	ReferenceID  int64  `json:"referenceId,omitempty"`
	UMRNo        string `json:"umrNo,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	CreatedDate  string `json:"createdDate,omitempty"`
}

// IsAdmin reports whether the identity has the administrator role.
func (i Identity) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(i.RoleName), RoleAdmin)
}

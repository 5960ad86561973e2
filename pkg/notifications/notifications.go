// Package notifications implements in-app notifications with optional
// email delivery. Admins create notifications for single users, whole
// roles, or everyone; delivery to the inbox table is synchronous and
// email goes out in the background.
package notifications

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a missing notification row
	ErrNotFound = errors.New("notification not found")
	// ErrNotOwner indicates the actor does not own the notification
	ErrNotOwner = errors.New("not the notification owner")
)

// Notification is one inbox entry. Role is set on role-targeted fanout
// so the user-or-role listing can pick it up.
type Notification struct {
	ID          int64     `json:"notificationId"`
	UserID      int64     `json:"userId"`
	Role        string    `json:"role,omitempty"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	ReferenceID int64     `json:"referenceId,omitempty"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NotificationRequest targets a single user.
type NotificationRequest struct {
	UserID      int64  `json:"userId"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	ReferenceID int64  `json:"referenceId,omitempty"`
}

// RoleRequest targets every user holding a role.
type RoleRequest struct {
	Role        string `json:"role"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	ReferenceID int64  `json:"referenceId,omitempty"`
}

// BroadcastRequest targets every registered user.
type BroadcastRequest struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	ReferenceID int64  `json:"referenceId,omitempty"`
}

// Page is one page of a user's notifications.
type Page struct {
	Items []*Notification `json:"items"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
	Total int64           `json:"total"`
}

// FanoutResult reports how many inbox entries a fanout produced.
type FanoutResult struct {
	Recipients int `json:"recipients"`
	Created    int `json:"created"`
}

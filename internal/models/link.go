package models

import (
	"time"
)

// Link is the durable mapping of a short code to its destination URL.
// Code and OwnerID are immutable after creation; ClickCount only grows.
type Link struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	OriginalURL string     `json:"original_url"`
	OwnerID     string     `json:"owner_id"`
	Title       *string    `json:"title,omitempty"`
	IsActive    bool       `json:"is_active"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the link is past its expiry at the given
// instant. A nil ExpiresAt never expires. Expiry is derived state and
// never flips IsActive.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

type CreateLinkInput struct {
	OriginalURL string     `json:"original_url" binding:"required,url"`
	CustomCode  *string    `json:"custom_code,omitempty"`
	Title       *string    `json:"title,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// LinkPatch carries partial field changes for an edit. Nil means
// "leave unchanged".
type LinkPatch struct {
	OriginalURL *string `json:"original_url,omitempty"`
	Title       *string `json:"title,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *LinkPatch) Empty() bool {
	return p.OriginalURL == nil && p.Title == nil && p.IsActive == nil
}

// DeleteState is the outcome of a delete request under the two-step
// deletion policy: the first delete deactivates, the second removes.
type DeleteState string

const (
	DeleteStateInactive DeleteState = "inactive"
	DeleteStateRemoved  DeleteState = "removed"
)

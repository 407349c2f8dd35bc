package storage

import (
	"time"
)

type ShortLink struct {
	ID        int64      `json:"id" db:"id"`
	Slug      string     `json:"slug" db:"slug"`
	TargetURL string     `json:"long_url" db:"target_url"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// IsExpired reports whether the link's expiry lies before now.
func (l *ShortLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// ClickEvent is written once per redirect and never updated.
type ClickEvent struct {
	ID        int64     `json:"id" db:"id"`
	LinkID    int64     `json:"link_id" db:"link_id"`
	Timestamp time.Time `json:"timestamp" db:"clicked_at"`
	Referrer  *string   `json:"referrer,omitempty" db:"referrer"`
	UserAgent *string   `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress *string   `json:"ip_address,omitempty" db:"ip_address"`
	// No geo-IP lookup is wired; these stay empty.
	Country    *string `json:"country,omitempty" db:"country"`
	City       *string `json:"city,omitempty" db:"city"`
	DeviceType *string `json:"device_type,omitempty" db:"device_type"`
	Browser    *string `json:"browser,omitempty" db:"browser"`
	OS         *string `json:"os,omitempty" db:"os"`
}

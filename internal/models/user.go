package models

import "time"

// PlanTier is the user's subscription level. It gates feature access and is
// only changed by the billing webhook.
type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanPremium PlanTier = "premium"
)

type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	DeviceID   string    `gorm:"uniqueIndex;size:128" json:"device_id"`
	Username   string    `gorm:"size:64" json:"username"`
	Email      string    `gorm:"size:128" json:"email,omitempty"`
	Plan       PlanTier  `gorm:"size:16;default:free" json:"plan"`
	Language   Language  `gorm:"size:8;default:en" json:"language"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

func (u *User) IsPremium() bool {
	return u.Plan == PlanPremium
}

// UsageCounters is the per-user-per-day usage snapshot. The intra-day
// authoritative counts live in Redis; this row is the persisted snapshot.
// ResetDate is a UTC calendar date (YYYY-MM-DD); counters from an older date
// count as zero.
type UsageCounters struct {
	UserID            string    `gorm:"primaryKey;size:36" json:"user_id"`
	MessagesSentToday int       `json:"messages_sent_today"`
	ScenesUsedToday   int       `json:"scenes_used_today"`
	CharactersUsed    int       `json:"characters_used"`
	ResetDate         string    `gorm:"size:10" json:"reset_date"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DateLayout is the layout for ResetDate values.
const DateLayout = "2006-01-02"

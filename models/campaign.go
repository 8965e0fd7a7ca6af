package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign represents a running instance of a Sequence applied to a set of
// leads via the user's email accounts
type Campaign struct {
	gorm.Model
	UserID     uint  `gorm:"not null;index" json:"user_id"`
	SequenceID uint  `gorm:"not null;index" json:"sequence_id"`
	LeadListID *uint `gorm:"index" json:"lead_list_id,omitempty"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// Scheduling
	Status      string     `gorm:"default:'draft'" json:"status"` // draft, active, paused, completed
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Statistics (denormalized for performance)
	TotalLeads  int `gorm:"default:0" json:"total_leads"`
	SentCount   int `gorm:"default:0" json:"sent_count"`
	OpenCount   int `gorm:"default:0" json:"open_count"`
	ReplyCount  int `gorm:"default:0" json:"reply_count"`
	BounceCount int `gorm:"default:0" json:"bounce_count"`

	// Relations
	Sequence Sequence        `json:"sequence,omitempty"`
	Emails   []CampaignEmail `gorm:"foreignKey:CampaignID" json:"emails,omitempty"`
}

// CampaignEmail tracks a single scheduled/sent email for one lead within a
// campaign
type CampaignEmail struct {
	gorm.Model
	CampaignID     uint  `gorm:"not null;index" json:"campaign_id"`
	LeadID         uint  `gorm:"not null;index" json:"lead_id"`
	EmailAccountID *uint `gorm:"index" json:"email_account_id,omitempty"` // Assigned at send time
	SequenceStepID uint  `gorm:"not null;index" json:"sequence_step_id"`

	// pending, sent, delivered, opened, replied, bounced, failed
	Status    string `gorm:"default:'pending';index" json:"status"`
	MessageID string `gorm:"index" json:"message_id"`

	// Per-status timestamps
	ScheduledAt *time.Time `gorm:"index" json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	OpenedAt    *time.Time `json:"opened_at"`
	RepliedAt   *time.Time `json:"replied_at"`
	BouncedAt   *time.Time `json:"bounced_at"`
	FailedAt    *time.Time `json:"failed_at"`
	LastError   *string    `json:"last_error,omitempty"`

	// Relations
	Campaign     Campaign      `json:"-"`
	Lead         Lead          `json:"lead,omitempty"`
	EmailAccount *EmailAccount `json:"-"`
	SequenceStep SequenceStep  `json:"-"`
}

// CampaignStats is the recomputed view of a campaign's counters, derived
// from campaign_emails rather than the denormalized columns
type CampaignStats struct {
	CampaignID  uint    `json:"campaign_id"`
	TotalLeads  int64   `json:"total_leads"`
	SentCount   int64   `json:"sent_count"`
	OpenCount   int64   `json:"open_count"`
	ReplyCount  int64   `json:"reply_count"`
	BounceCount int64   `json:"bounce_count"`
	OpenRate    float64 `json:"open_rate"`
	ReplyRate   float64 `json:"reply_rate"`
}

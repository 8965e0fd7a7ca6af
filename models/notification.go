package models

import "gorm.io/gorm"

// Notification is an in-app event surfaced to the user (reply received,
// campaign completed, account error and so on)
type Notification struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Type    string `gorm:"not null" json:"type"` // reply, bounce, campaign_completed, account_error, credit_purchase
	Title   string `gorm:"not null" json:"title"`
	Message string `gorm:"type:text" json:"message"`
	IsRead  bool   `gorm:"default:false;index" json:"is_read"`

	// Optional references
	CampaignID     *uint `json:"campaign_id,omitempty"`
	EmailAccountID *uint `json:"email_account_id,omitempty"`

	User User `json:"-"`
}

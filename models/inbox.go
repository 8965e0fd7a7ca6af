package models

import (
	"time"

	"gorm.io/gorm"
)

// InboxMessage represents an email in the unified inbox
type InboxMessage struct {
	gorm.Model
	UserID         uint `gorm:"not null;index" json:"user_id"`
	EmailAccountID uint `gorm:"not null;index" json:"email_account_id"`

	MessageID string    `gorm:"not null;index" json:"message_id"`
	FromEmail string    `gorm:"not null" json:"from_email"`
	ToEmail   string    `json:"to_email"`
	Subject   string    `json:"subject"`
	Body      string    `gorm:"type:text" json:"body"`
	Date      time.Time `gorm:"not null" json:"date"`

	IsRead    bool   `gorm:"default:false" json:"is_read"`
	Sentiment string `json:"sentiment"` // positive, negative, neutral

	InReplyTo string `json:"in_reply_to"`

	// Relations
	User         User         `json:"-"`
	EmailAccount EmailAccount `json:"email_account,omitempty"`
}

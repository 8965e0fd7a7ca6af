package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailAccount represents a configured SMTP/IMAP mailbox used to send and
// receive campaign email
type EmailAccount struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	// Basic identification
	Name      string `gorm:"not null" json:"name"`
	FromEmail string `gorm:"not null" json:"from_email"`
	FromName  string `json:"from_name"`

	// ========= SMTP Configuration =========
	SMTPHost     string `gorm:"not null" json:"smtp_host"`
	SMTPPort     int    `gorm:"not null" json:"smtp_port"`
	SMTPUsername string `gorm:"not null" json:"smtp_username"`
	SMTPPassword string `gorm:"not null" json:"-"`          // Encrypted in application layer
	Encryption   string `gorm:"not null" json:"encryption"` // SSL, TLS, STARTTLS

	// ========= IMAP Configuration =========
	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port" gorm:"default:993"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"-"` // Encrypted in application layer
	IMAPEncryption string `json:"imap_encryption" gorm:"default:'SSL'"`
	IMAPMailbox    string `json:"imap_mailbox" gorm:"default:'INBOX'"`

	// ========= Status & Verification =========
	Status       string     `gorm:"default:'pending'" json:"status"` // pending, active, error, testing
	SMTPVerified bool       `gorm:"default:false" json:"smtp_verified"`
	IMAPVerified bool       `gorm:"default:false" json:"imap_verified"`
	LastTestedAt *time.Time `json:"last_tested_at"`
	LastError    *string    `json:"last_error"`

	// ========= Usage Metrics =========
	DailyLimit int `gorm:"default:500" json:"daily_limit"`
	SentToday  int `gorm:"default:0" json:"sent_today"`
	TotalSent  int `gorm:"default:0" json:"total_sent"`

	// Relations
	InboxMessages []InboxMessage `gorm:"foreignKey:EmailAccountID" json:"inbox_messages,omitempty"`
}

// Sanitize clears encrypted credentials before the account is serialized
func (a *EmailAccount) Sanitize() {
	a.SMTPPassword = ""
	a.IMAPPassword = ""
}

// RemainingToday reports how many sends the account has left under its daily limit
func (a *EmailAccount) RemainingToday() int {
	remaining := a.DailyLimit - a.SentToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

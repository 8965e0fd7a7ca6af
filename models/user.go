package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string `gorm:"not null" json:"-"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`

	// Google OAuth fields
	GoogleID       *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GoogleImageURL *string `json:"google_image_url,omitempty"`

	// Profile information
	Name     *string `json:"name,omitempty"`
	Company  *string `json:"company,omitempty"`
	Timezone string  `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`
	IsAdmin  bool `gorm:"default:false" json:"is_admin"`

	// Credit-based plan information
	PlanID          *uint  `json:"plan_id,omitempty"`
	PlanName        string `gorm:"default:'free'" json:"plan_name"`          // free, starter, grow
	EmailCredits    int    `gorm:"default:5000" json:"email_credits"`        // 5000 free credits for new users
	CreditsConsumed int    `gorm:"default:0" json:"credits_consumed"`

	// Stripe integration
	StripeCustomerID *string `gorm:"index" json:"stripe_customer_id,omitempty"`

	// Relations
	EmailAccounts []EmailAccount      `gorm:"foreignKey:UserID" json:"email_accounts,omitempty"`
	Campaigns     []Campaign          `gorm:"foreignKey:UserID" json:"campaigns,omitempty"`
	LeadLists     []LeadList          `gorm:"foreignKey:UserID" json:"lead_lists,omitempty"`
	Webhooks      []Webhook           `gorm:"foreignKey:UserID" json:"webhooks,omitempty"`
	Transactions  []CreditTransaction `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
}

// RefreshToken stores issued refresh tokens so they can be revoked on logout
type RefreshToken struct {
	gorm.Model
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`

	User User `json:"-"`
}

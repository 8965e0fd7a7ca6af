package models

import "gorm.io/gorm"

// Plan represents available credit packages
type Plan struct {
	gorm.Model
	Name        string `gorm:"not null;uniqueIndex" json:"name"` // free, starter, grow
	Description string `json:"description"`

	EmailCredits int `gorm:"not null" json:"email_credits"`
	Price        int `gorm:"not null" json:"price"` // in cents

	MaxAccounts    int  `gorm:"default:1" json:"max_accounts"`
	DailySendLimit int  `gorm:"default:500" json:"daily_send_limit"`
	IsPopular      bool `gorm:"default:false" json:"is_popular"`

	StripePriceID string `json:"stripe_price_id"`
}

// CreditTransaction records credit purchases and usage
type CreditTransaction struct {
	gorm.Model
	UserID uint  `gorm:"not null;index" json:"user_id"`
	PlanID *uint `json:"plan_id,omitempty"`

	// Positive for purchases, negative for usage
	EmailCredits int `gorm:"not null" json:"email_credits"`

	Amount        int    `json:"amount"` // in cents
	Currency      string `gorm:"default:'usd'" json:"currency"`
	PaymentStatus string `gorm:"default:'pending'" json:"payment_status"` // pending, completed, failed, refunded
	Description   string `json:"description"`

	StripePaymentIntentID string `gorm:"index" json:"stripe_payment_intent_id"`

	// Relations
	User User  `json:"-"`
	Plan *Plan `json:"plan,omitempty"`
}

// CreateDefaultPlans seeds the plan catalog on first migration
func CreateDefaultPlans(db *gorm.DB) error {
	defaultPlans := []Plan{
		{
			Name:           "free",
			Description:    "Free starter plan with 5,000 email credits",
			EmailCredits:   5000,
			Price:          0,
			MaxAccounts:    1,
			DailySendLimit: 500,
		},
		{
			Name:           "starter",
			Description:    "Starter plan with 20,000 email credits",
			EmailCredits:   20000,
			Price:          2000, // $20
			MaxAccounts:    3,
			DailySendLimit: 1000,
		},
		{
			Name:           "grow",
			Description:    "Growth plan with 100,000 email credits",
			EmailCredits:   100000,
			Price:          6000, // $60
			MaxAccounts:    10,
			DailySendLimit: 5000,
			IsPopular:      true,
		},
	}
	for _, plan := range defaultPlans {
		if err := db.FirstOrCreate(&plan, "name = ?", plan.Name).Error; err != nil {
			return err
		}
	}
	return nil
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Webhook is a user-registered endpoint that receives campaign events
type Webhook struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name     string `gorm:"not null" json:"name"`
	URL      string `gorm:"not null" json:"url"`
	Secret   string `json:"-"` // HMAC signing secret, generated server side
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// Subscribed events, stored as a JSON array
	Events []string `gorm:"serializer:json" json:"events"` // sent, opened, replied, bounced

	// Relations
	Deliveries []WebhookDelivery `gorm:"foreignKey:WebhookID" json:"deliveries,omitempty"`
}

// WebhookDelivery records one attempted delivery to a webhook endpoint
type WebhookDelivery struct {
	gorm.Model
	WebhookID uint `gorm:"not null;index" json:"webhook_id"`

	Event       string     `gorm:"not null" json:"event"`
	Payload     string     `gorm:"type:text" json:"payload"`
	StatusCode  int        `json:"status_code"`
	Success     bool       `gorm:"default:false" json:"success"`
	DeliveredAt *time.Time `json:"delivered_at"`
	Error       *string    `json:"error,omitempty"`

	Webhook Webhook `json:"-"`
}

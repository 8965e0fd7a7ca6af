package models

import (
	"gorm.io/gorm"
)

// LeadList represents a list of leads/contacts
type LeadList struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"` // manual, csv, api

	// Statistics
	LeadCount int `gorm:"default:0" json:"lead_count"`

	// Relations
	Leads []Lead `gorm:"foreignKey:LeadListID" json:"leads,omitempty"`
}

// Lead represents a single prospective contact
type Lead struct {
	gorm.Model
	UserID     uint  `gorm:"not null;index" json:"user_id"`
	LeadListID *uint `gorm:"index" json:"lead_list_id,omitempty"`

	Name    string `gorm:"not null" json:"name"`
	Email   string `gorm:"not null;index" json:"email"`
	Company string `json:"company"`
	Title   string `json:"title"`

	Status string `gorm:"default:'active'" json:"status"` // active, unsubscribed, bounced
	Source string `json:"source"`                         // manual, csv, api

	// Relations
	CampaignEmails []CampaignEmail `gorm:"foreignKey:LeadID" json:"campaign_emails,omitempty"`
}

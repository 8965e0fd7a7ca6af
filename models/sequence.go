package models

import "gorm.io/gorm"

// Sequence represents an ordered series of email templates with per-step
// send delays
type Sequence struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep represents one email in a sequence
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	StepNumber int    `gorm:"not null" json:"step_number"`
	Subject    string `gorm:"not null" json:"subject"`
	Body       string `gorm:"type:text;not null" json:"body"`
	DelayDays  int    `gorm:"default:0" json:"delay_days"`

	// Tracking
	SentCount int `gorm:"default:0" json:"sent_count"`
}

package models

import "github.com/google/uuid"

// Lead stores a marketing lead captured from the credit-check form.
// Capture is fire-and-forget: a failed insert is logged, never surfaced.
type Lead struct {
	BaseModel
	FirstName string     `json:"first_name"`
	Mobile    string     `gorm:"index" json:"mobile"`
	Consent   bool       `json:"consent"`
	Source    string     `json:"source"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
}

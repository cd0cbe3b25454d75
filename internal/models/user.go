package models

import (
	"time"
)

// User represents an authenticated borrower.
type User struct {
	BaseModel
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Mobile        string         `gorm:"uniqueIndex" json:"mobile"`
	DisplayName   string         `json:"display_name"`
	PasswordHash  string         `json:"-"`
	IsVerified    bool           `json:"is_verified"`
	Loans         []Loan         `json:"loans,omitempty"`
	CreditReports []CreditReport `json:"credit_reports,omitempty"`
}

// PhoneVerification keeps track of OTP codes sent to users.
type PhoneVerification struct {
	BaseModel
	Mobile    string     `gorm:"index" json:"mobile"`
	Code      string     `json:"code"`
	ExpiresAt time.Time  `json:"expires_at"`
	Verified  bool       `json:"verified"`
	UsedAt    *time.Time `json:"used_at"`
}

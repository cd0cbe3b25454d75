package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditReport stores one fetched bureau report. A newer successful
// fetch supersedes it; the report is cached while now < ExpiresAt.
type CreditReport struct {
	BaseModel
	UserID         uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	TransactionID  string    `gorm:"column:transaction_id;index" json:"transaction_id"`
	CreditScore    int       `json:"credit_score"`
	TotalAccounts  int       `json:"total_accounts"`
	ActiveAccounts int       `json:"active_accounts"`
	TotalBalance   float64   `json:"total_balance"`
	TotalOverdue   float64   `json:"total_overdue"`
	FetchedAt      time.Time `json:"fetched_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	PDFOriginalURL string    `gorm:"column:pdf_original_url" json:"pdf_original_url"`
	PDFSpacesURL   string    `gorm:"column:pdf_spaces_url" json:"pdf_spaces_url"`
	FullPayload    []byte    `gorm:"type:jsonb" json:"full_payload"`
}

// Valid reports whether the report is still within its validity window.
func (r *CreditReport) Valid(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

package models

import "github.com/google/uuid"

// Loan statuses. Approval workflows live in the back office; the API
// only records state.
const (
	LoanStatusApplied  = "applied"
	LoanStatusApproved = "approved"
	LoanStatusRejected = "rejected"
	LoanStatusClosed   = "closed"
)

// Loan represents a loan application record.
type Loan struct {
	BaseModel
	UserID       uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Amount       float64   `json:"amount"`
	TermMonths   int       `json:"term_months"`
	InterestRate float64   `json:"interest_rate"`
	Purpose      string    `json:"purpose"`
	Status       string    `gorm:"default:applied" json:"status"`
}

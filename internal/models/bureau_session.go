package models

import "github.com/google/uuid"

// BureauSession statuses mirror the bureau round trip: the session is
// pending until the user navigates to the bureau, redirected once the
// callback lands, and completed or expired when the report fetch ends.
const (
	SessionStatusPending    = "pending"
	SessionStatusRedirected = "redirected"
	SessionStatusCompleted  = "completed"
	SessionStatusExpired    = "expired"
)

// BureauSession stores one identity-verification round trip with the
// credit bureau. A transaction ID identifies exactly one session.
type BureauSession struct {
	BaseModel
	TransactionID string     `gorm:"column:transaction_id;uniqueIndex" json:"transaction_id"`
	UserID        *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	FirstName     string     `json:"first_name"`
	Mobile        string     `json:"mobile"`
	RedirectURL   string     `json:"redirect_url"`
	Status        string     `gorm:"default:pending" json:"status"`
}

package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/lendly/internal/models"
)

// LeadService records marketing leads and alerts the back office.
type LeadService struct {
	db       *gorm.DB
	telegram *TelegramService
}

// NewLeadService constructs a LeadService.
func NewLeadService(db *gorm.DB, telegram *TelegramService) *LeadService {
	return &LeadService{db: db, telegram: telegram}
}

// Capture stores a lead and notifies the admin chat. Callers treat it
// as fire-and-forget; returned errors are for logging only.
func (s *LeadService) Capture(ctx context.Context, firstName, mobile string, consent bool, userID *uuid.UUID) error {
	lead := models.Lead{
		FirstName: firstName,
		Mobile:    mobile,
		Consent:   consent,
		Source:    "credit-check form",
		UserID:    userID,
	}

	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return fmt.Errorf("store lead: %w", err)
	}

	if s.telegram != nil {
		if err := s.telegram.NotifyNewLead(LeadNotification{FirstName: firstName, Mobile: mobile, Source: lead.Source}); err != nil {
			log.Printf("[Leads] admin notification failed: %v", err)
		}
	}

	return nil
}

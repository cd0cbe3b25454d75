package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/lendly/internal/models"
)

// ErrNoReport is returned when a user has no stored credit report.
var ErrNoReport = errors.New("no credit report on file")

// ReportService owns credit report and bureau session persistence.
type ReportService struct {
	db        *gorm.DB
	reportTTL time.Duration
}

// NewReportService constructs a ReportService.
func NewReportService(db *gorm.DB, reportTTL time.Duration) *ReportService {
	return &ReportService{db: db, reportTTL: reportTTL}
}

// CreateSession records a started bureau round trip.
func (s *ReportService) CreateSession(userID uuid.UUID, firstName, mobile string, result *StartSessionResult) (*models.BureauSession, error) {
	session := models.BureauSession{
		TransactionID: result.TransactionID,
		UserID:        &userID,
		FirstName:     firstName,
		Mobile:        mobile,
		RedirectURL:   result.RedirectURL,
		Status:        models.SessionStatusPending,
	}

	if err := s.db.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create bureau session: %w", err)
	}

	return &session, nil
}

// SessionByTransaction loads the session for a bureau transaction ID.
func (s *ReportService) SessionByTransaction(transactionID string) (*models.BureauSession, error) {
	var session models.BureauSession
	if err := s.db.Where("transaction_id = ?", transactionID).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkSessionRedirected records the bureau callback arrival.
func (s *ReportService) MarkSessionRedirected(transactionID string) error {
	return s.db.Model(&models.BureauSession{}).
		Where("transaction_id = ? AND status = ?", transactionID, models.SessionStatusPending).
		Update("status", models.SessionStatusRedirected).Error
}

// MarkSessionExpired closes a session whose report never arrived.
func (s *ReportService) MarkSessionExpired(ctx context.Context, transactionID string) {
	err := s.db.WithContext(ctx).Model(&models.BureauSession{}).
		Where("transaction_id = ?", transactionID).
		Update("status", models.SessionStatusExpired).Error
	if err != nil {
		// Advisory bookkeeping only; the polling outcome already stands.
		log.Printf("[Reports] failed to expire session %s: %v", transactionID, err)
	}
}

// CachedReport returns the user's latest report if it is still within
// its validity window, or nil without error on a cache miss.
func (s *ReportService) CachedReport(userID uuid.UUID) (*models.CreditReport, error) {
	var report models.CreditReport
	err := s.db.Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Order("fetched_at desc").
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

// HasCachedReport answers the cache-existence check.
func (s *ReportService) HasCachedReport(userID uuid.UUID) (bool, error) {
	report, err := s.CachedReport(userID)
	if err != nil {
		return false, err
	}
	return report != nil, nil
}

// LatestReport returns the user's most recent report regardless of
// expiry, for the full-report fetch.
func (s *ReportService) LatestReport(userID uuid.UUID) (*models.CreditReport, error) {
	var report models.CreditReport
	err := s.db.Where("user_id = ?", userID).
		Order("fetched_at desc").
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoReport
		}
		return nil, err
	}
	return &report, nil
}

// PDFLink returns the stored PDF location for the user's latest report.
func (s *ReportService) PDFLink(userID uuid.UUID) (string, error) {
	report, err := s.LatestReport(userID)
	if err != nil {
		return "", err
	}
	if report.PDFSpacesURL != "" {
		return report.PDFSpacesURL, nil
	}
	return report.PDFOriginalURL, nil
}

// SaveFromBureau persists a fetched report against the session's user
// and completes the session. The new report supersedes any earlier one
// for cache purposes by carrying a later fetched_at.
func (s *ReportService) SaveFromBureau(ctx context.Context, report *BureauReport) error {
	session, err := s.SessionByTransaction(report.TransactionID)
	if err != nil {
		return fmt.Errorf("resolve session for transaction %s: %w", report.TransactionID, err)
	}
	if session.UserID == nil {
		return fmt.Errorf("session %s has no user", report.TransactionID)
	}

	summary := SummarizeReport(report.Payload)

	pdfOriginal := summary.PDFOriginalURL
	if pdfOriginal == "" {
		pdfOriginal = report.PDFURL
	}

	now := time.Now()
	record := models.CreditReport{
		UserID:         *session.UserID,
		TransactionID:  report.TransactionID,
		CreditScore:    summary.CreditScore,
		TotalAccounts:  summary.TotalAccounts,
		ActiveAccounts: summary.ActiveAccounts,
		TotalBalance:   summary.TotalBalance,
		TotalOverdue:   summary.TotalOverdue,
		FetchedAt:      now,
		ExpiresAt:      now.Add(s.reportTTL),
		PDFOriginalURL: pdfOriginal,
		FullPayload:    []byte(report.Payload),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("store credit report: %w", err)
	}

	return s.db.WithContext(ctx).Model(&models.BureauSession{}).
		Where("transaction_id = ?", report.TransactionID).
		Update("status", models.SessionStatusCompleted).Error
}

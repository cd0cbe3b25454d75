package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/example/lendly/internal/models"
	"github.com/example/lendly/internal/utils"
)

// Entry modes for one page load, decided once per load context.
const (
	EntryModeCallback     = "callback"
	EntryModeResume       = "resume"
	EntryModeCachedReport = "cached_report"
	EntryModeForm         = "form"
)

// ErrSessionStart wraps bureau start-session failures. The submit state
// resets so the user may retry.
var ErrSessionStart = errors.New("could not start credit verification")

// SessionStarter begins an identity-verification round trip.
type SessionStarter interface {
	StartSession(ctx context.Context, firstName, mobileNumber string) (*StartSessionResult, error)
}

// ReportStore is the persistence surface the flow needs.
type ReportStore interface {
	HasCachedReport(userID uuid.UUID) (bool, error)
	LatestReport(userID uuid.UUID) (*models.CreditReport, error)
	CreateSession(userID uuid.UUID, firstName, mobile string, result *StartSessionResult) (*models.BureauSession, error)
	MarkSessionRedirected(transactionID string) error
}

// RetryLauncher starts and inspects report polling sequences.
type RetryLauncher interface {
	Launch(ctx context.Context, transactionID string) (RetryState, bool)
	State(transactionID string) (RetryState, bool)
}

// LeadCapturer records a marketing lead. Failures stay internal.
type LeadCapturer interface {
	Capture(ctx context.Context, firstName, mobile string, consent bool, userID *uuid.UUID) error
}

// CreditCheckFlow orchestrates the report acquisition pipeline: local
// validation, deferral through login, bureau session start, entry
// routing after navigation, and the cache short-circuit.
type CreditCheckFlow struct {
	bureau   SessionStarter
	store    ReportStore
	retrier  RetryLauncher
	leads    LeadCapturer
	loginURL string
}

// NewCreditCheckFlow constructs a CreditCheckFlow.
func NewCreditCheckFlow(bureau SessionStarter, store ReportStore, retrier RetryLauncher, leads LeadCapturer, loginURL string) *CreditCheckFlow {
	return &CreditCheckFlow{
		bureau:   bureau,
		store:    store,
		retrier:  retrier,
		leads:    leads,
		loginURL: loginURL,
	}
}

// DeferredSubmit carries the encoded pending intent for the
// unauthenticated path: the client redirects to LoginURL and replays
// the intent after authentication.
type DeferredSubmit struct {
	Data     string `json:"data"`
	LoginURL string `json:"login_url"`
}

// Defer validates a credit-check request and encodes it as a pending
// intent for the login redirect. Submission itself is deferred.
func (f *CreditCheckFlow) Defer(firstName, mobileNumber string, consent bool) (*DeferredSubmit, error) {
	if err := utils.ValidateCreditCheck(firstName, mobileNumber, consent); err != nil {
		return nil, err
	}

	data, err := utils.EncodeIntent(utils.PendingIntent{
		FirstName:    firstName,
		MobileNumber: mobileNumber,
		Consent:      consent,
	})
	if err != nil {
		return nil, err
	}

	return &DeferredSubmit{
		Data:     data,
		LoginURL: fmt.Sprintf("%s?data=%s", f.loginURL, data),
	}, nil
}

// Submit validates and submits an authenticated credit-check request:
// a fire-and-forget lead capture, then the bureau session start. On
// success the caller must navigate the user to the redirect URL.
func (f *CreditCheckFlow) Submit(ctx context.Context, userID uuid.UUID, firstName, mobileNumber string, consent bool) (*models.BureauSession, error) {
	if err := utils.ValidateCreditCheck(firstName, mobileNumber, consent); err != nil {
		return nil, err
	}

	// Lead capture failures are logged, never surfaced.
	if f.leads != nil {
		uid := userID
		go func() {
			if err := f.leads.Capture(context.Background(), firstName, mobileNumber, consent, &uid); err != nil {
				log.Printf("[CreditCheck] lead capture failed: %v", err)
			}
		}()
	}

	result, err := f.bureau.StartSession(ctx, firstName, mobileNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionStart, err)
	}

	session, err := f.store.CreateSession(userID, firstName, mobileNumber, result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionStart, err)
	}

	return session, nil
}

// LoadContext is what the page arrived with.
type LoadContext struct {
	TransactionID string
	EncodedIntent string
	UserID        uuid.UUID // uuid.Nil when unauthenticated
}

// EntryResult is the routing decision for one load.
type EntryResult struct {
	Mode   string               `json:"mode"`
	Retry  *RetryState          `json:"retry,omitempty"`
	Intent *utils.PendingIntent `json:"intent,omitempty"`
	Report *models.CreditReport `json:"report,omitempty"`
	// ClearParam names the query parameter the client must strip from
	// the address to prevent resubmission or leakage.
	ClearParam string `json:"clear_param,omitempty"`
}

// ResolveEntry routes one page load. A bureau callback takes precedence
// over a post-auth resume, which takes precedence over the cache check.
// The cache check fails open: any error means "show the form".
func (f *CreditCheckFlow) ResolveEntry(ctx context.Context, load LoadContext) *EntryResult {
	if load.TransactionID != "" {
		if err := f.store.MarkSessionRedirected(load.TransactionID); err != nil {
			log.Printf("[CreditCheck] mark redirected %s: %v", load.TransactionID, err)
		}
		// The sequence outlives this request; only one ever runs per
		// transaction regardless of how many loads re-enter here.
		state, _ := f.retrier.Launch(context.WithoutCancel(ctx), load.TransactionID)
		return &EntryResult{Mode: EntryModeCallback, Retry: &state, ClearParam: "transaction_id"}
	}

	if load.EncodedIntent != "" {
		intent, err := utils.DecodeIntent(load.EncodedIntent)
		if err != nil {
			log.Printf("[CreditCheck] undecodable pending intent: %v", err)
			return &EntryResult{Mode: EntryModeForm, ClearParam: "data"}
		}
		return &EntryResult{Mode: EntryModeResume, Intent: &intent, ClearParam: "data"}
	}

	if load.UserID != uuid.Nil {
		cached, err := f.store.HasCachedReport(load.UserID)
		if err != nil {
			log.Printf("[CreditCheck] cache check failed, falling back to form: %v", err)
			return &EntryResult{Mode: EntryModeForm}
		}
		if cached {
			report, err := f.store.LatestReport(load.UserID)
			if err != nil {
				log.Printf("[CreditCheck] report fetch after cache hit failed: %v", err)
				return &EntryResult{Mode: EntryModeForm}
			}
			return &EntryResult{Mode: EntryModeCachedReport, Report: report}
		}
	}

	return &EntryResult{Mode: EntryModeForm}
}

// RetryStatus exposes the polling state for the status endpoint.
func (f *CreditCheckFlow) RetryStatus(transactionID string) RetryState {
	state, _ := f.retrier.State(transactionID)
	return state
}

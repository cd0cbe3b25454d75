package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/lendly/internal/models"
	"github.com/example/lendly/internal/utils"
)

type fakeBureau struct {
	mu            sync.Mutex
	startCalls    int
	result        *StartSessionResult
	err           error
	fetchFailures int
	fetchCalls    int
}

func (b *fakeBureau) StartSession(ctx context.Context, firstName, mobileNumber string) (*StartSessionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startCalls++
	return b.result, b.err
}

func (b *fakeBureau) fetch(ctx context.Context, transactionID string) (*BureauReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++
	if b.fetchCalls <= b.fetchFailures {
		return nil, errors.New("report not ready")
	}
	return &BureauReport{
		TransactionID: transactionID,
		Payload:       json.RawMessage(`{"score":{"value":742}}`),
	}, nil
}

type fakeStore struct {
	mu             sync.Mutex
	cached         bool
	cacheErr       error
	latestCalls    int
	latest         *models.CreditReport
	latestErr      error
	sessions       []*models.BureauSession
	redirected     []string
	hasCachedCalls int
}

func (s *fakeStore) HasCachedReport(userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasCachedCalls++
	return s.cached, s.cacheErr
}

func (s *fakeStore) LatestReport(userID uuid.UUID) (*models.CreditReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestCalls++
	return s.latest, s.latestErr
}

func (s *fakeStore) CreateSession(userID uuid.UUID, firstName, mobile string, result *StartSessionResult) (*models.BureauSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := &models.BureauSession{
		TransactionID: result.TransactionID,
		UserID:        &userID,
		FirstName:     firstName,
		Mobile:        mobile,
		RedirectURL:   result.RedirectURL,
		Status:        models.SessionStatusPending,
	}
	s.sessions = append(s.sessions, session)
	return session, nil
}

func (s *fakeStore) MarkSessionRedirected(transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirected = append(s.redirected, transactionID)
	return nil
}

type fakeLeads struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *fakeLeads) Capture(ctx context.Context, firstName, mobile string, consent bool, userID *uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.err
}

func newTestRetrier(fetch ReportFetcher, store ReportSink) *ReportRetrier {
	if store == nil {
		store = noopSink
	}
	r := NewReportRetrier(fetch, store, nil)
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return r
}

func TestResolveEntryCacheShortCircuit(t *testing.T) {
	bureau := &fakeBureau{}
	store := &fakeStore{cached: true, latest: &models.CreditReport{CreditScore: 742}}
	flow := NewCreditCheckFlow(bureau, store, newTestRetrier(bureau.fetch, nil), nil, "https://lendly.example/login")

	result := flow.ResolveEntry(context.Background(), LoadContext{UserID: uuid.New()})

	if result.Mode != EntryModeCachedReport {
		t.Fatalf("mode = %q, want cached_report", result.Mode)
	}
	if result.Report == nil || result.Report.CreditScore != 742 {
		t.Errorf("report not populated: %+v", result.Report)
	}
	if store.latestCalls != 1 {
		t.Errorf("LatestReport calls = %d, want exactly 1", store.latestCalls)
	}
	if bureau.startCalls != 0 {
		t.Errorf("StartSession calls = %d, want 0", bureau.startCalls)
	}
}

func TestResolveEntryCacheCheckFailsOpen(t *testing.T) {
	store := &fakeStore{cacheErr: errors.New("backend down")}
	flow := NewCreditCheckFlow(&fakeBureau{}, store, newTestRetrier(nil, nil), nil, "")

	result := flow.ResolveEntry(context.Background(), LoadContext{UserID: uuid.New()})

	if result.Mode != EntryModeForm {
		t.Errorf("mode = %q, want form on cache failure", result.Mode)
	}
}

func TestResolveEntryCallbackWinsOverResumeAndCache(t *testing.T) {
	bureau := &fakeBureau{}
	store := &fakeStore{cached: true, latest: &models.CreditReport{}}
	flow := NewCreditCheckFlow(bureau, store, newTestRetrier(bureau.fetch, nil), nil, "")

	data, _ := utils.EncodeIntent(utils.PendingIntent{FirstName: "Asha", MobileNumber: "9876543210", Consent: true})
	result := flow.ResolveEntry(context.Background(), LoadContext{
		TransactionID: "txn-cb",
		EncodedIntent: data,
		UserID:        uuid.New(),
	})

	if result.Mode != EntryModeCallback {
		t.Fatalf("mode = %q, want callback", result.Mode)
	}
	if result.ClearParam != "transaction_id" {
		t.Errorf("ClearParam = %q, want transaction_id", result.ClearParam)
	}
	if store.hasCachedCalls != 0 {
		t.Errorf("cache check ran on a callback load")
	}
	if len(store.redirected) != 1 || store.redirected[0] != "txn-cb" {
		t.Errorf("session not marked redirected: %v", store.redirected)
	}
}

func TestResolveEntryResume(t *testing.T) {
	flow := NewCreditCheckFlow(&fakeBureau{}, &fakeStore{}, newTestRetrier(nil, nil), nil, "")

	data, _ := utils.EncodeIntent(utils.PendingIntent{FirstName: "Asha Rao", MobileNumber: "9876543210", Consent: true})
	result := flow.ResolveEntry(context.Background(), LoadContext{EncodedIntent: data, UserID: uuid.New()})

	if result.Mode != EntryModeResume {
		t.Fatalf("mode = %q, want resume", result.Mode)
	}
	if result.Intent == nil || result.Intent.FirstName != "Asha Rao" {
		t.Errorf("intent not repopulated: %+v", result.Intent)
	}
	if result.ClearParam != "data" {
		t.Errorf("ClearParam = %q, want data", result.ClearParam)
	}
}

func TestResolveEntryUndecodableIntentFallsToForm(t *testing.T) {
	flow := NewCreditCheckFlow(&fakeBureau{}, &fakeStore{}, newTestRetrier(nil, nil), nil, "")

	result := flow.ResolveEntry(context.Background(), LoadContext{EncodedIntent: "%%%garbage%%%"})

	if result.Mode != EntryModeForm {
		t.Errorf("mode = %q, want form", result.Mode)
	}
	if result.ClearParam != "data" {
		t.Errorf("ClearParam = %q, want data", result.ClearParam)
	}
}

func TestResolveEntryUnauthenticatedShowsForm(t *testing.T) {
	store := &fakeStore{cached: true}
	flow := NewCreditCheckFlow(&fakeBureau{}, store, newTestRetrier(nil, nil), nil, "")

	result := flow.ResolveEntry(context.Background(), LoadContext{})

	if result.Mode != EntryModeForm {
		t.Errorf("mode = %q, want form", result.Mode)
	}
	if store.hasCachedCalls != 0 {
		t.Errorf("cache check must not run unauthenticated")
	}
}

func TestDeferRoundTrip(t *testing.T) {
	flow := NewCreditCheckFlow(&fakeBureau{}, &fakeStore{}, newTestRetrier(nil, nil), nil, "https://lendly.example/login")

	deferred, err := flow.Defer("Asha Rao", "9876543210", true)
	if err != nil {
		t.Fatalf("Defer: %v", err)
	}
	if !strings.HasPrefix(deferred.LoginURL, "https://lendly.example/login?data=") {
		t.Errorf("LoginURL = %q", deferred.LoginURL)
	}

	intent, err := utils.DecodeIntent(deferred.Data)
	if err != nil {
		t.Fatalf("DecodeIntent: %v", err)
	}
	want := utils.PendingIntent{FirstName: "Asha Rao", MobileNumber: "9876543210", Consent: true}
	if intent != want {
		t.Errorf("round trip = %+v, want %+v", intent, want)
	}
}

func TestDeferRejectsInvalidRequest(t *testing.T) {
	flow := NewCreditCheckFlow(&fakeBureau{}, &fakeStore{}, newTestRetrier(nil, nil), nil, "")

	_, err := flow.Defer("Asha", "12345", true)
	var verr *utils.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Field != "mobile_number" {
		t.Errorf("field = %q, want mobile_number", verr.Field)
	}
}

func TestSubmitSessionStartFailureIsRetryable(t *testing.T) {
	bureau := &fakeBureau{err: errors.New("bureau unavailable")}
	flow := NewCreditCheckFlow(bureau, &fakeStore{}, newTestRetrier(nil, nil), nil, "")

	_, err := flow.Submit(context.Background(), uuid.New(), "Asha", "9876543210", true)
	if !errors.Is(err, ErrSessionStart) {
		t.Fatalf("err = %v, want ErrSessionStart", err)
	}

	// The user may simply submit again.
	bureau.mu.Lock()
	bureau.err = nil
	bureau.result = &StartSessionResult{Success: true, TransactionID: "txn-x", RedirectURL: "https://bureau.example/verify?tid=txn-x"}
	bureau.mu.Unlock()

	session, err := flow.Submit(context.Background(), uuid.New(), "Asha", "9876543210", true)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if session.TransactionID != "txn-x" {
		t.Errorf("session = %+v", session)
	}
}

func TestSubmitLeadCaptureFailureIsSilent(t *testing.T) {
	bureau := &fakeBureau{result: &StartSessionResult{Success: true, TransactionID: "txn-l", RedirectURL: "https://bureau.example/verify"}}
	leads := &fakeLeads{err: errors.New("leads table locked")}
	flow := NewCreditCheckFlow(bureau, &fakeStore{}, newTestRetrier(nil, nil), leads, "")

	session, err := flow.Submit(context.Background(), uuid.New(), "Asha", "9876543210", true)
	if err != nil {
		t.Fatalf("Submit must not surface lead capture failures: %v", err)
	}
	if session == nil {
		t.Fatal("expected a session")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		leads.mu.Lock()
		calls := leads.calls
		leads.mu.Unlock()
		if calls == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("lead capture was never attempted")
}

// Full scenario: authenticated submit, bureau redirect, callback with
// transaction_id=abc, attempts 1-2 fail, attempt 3 succeeds.
func TestEndToEndCreditCheck(t *testing.T) {
	bureau := &fakeBureau{
		result:        &StartSessionResult{Success: true, TransactionID: "abc", RedirectURL: "https://bureau.example/verify?tid=abc"},
		fetchFailures: 2,
	}
	store := &fakeStore{}

	var storedMu sync.Mutex
	var stored *BureauReport
	sink := func(ctx context.Context, report *BureauReport) error {
		storedMu.Lock()
		defer storedMu.Unlock()
		stored = report
		return nil
	}

	retrier := newTestRetrier(bureau.fetch, sink)
	flow := NewCreditCheckFlow(bureau, store, retrier, &fakeLeads{}, "https://lendly.example/login")

	userID := uuid.New()
	session, err := flow.Submit(context.Background(), userID, "Asha Rao", "9876543210", true)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if session.RedirectURL != "https://bureau.example/verify?tid=abc" {
		t.Fatalf("redirect URL = %q", session.RedirectURL)
	}

	// Browser returns from the bureau with the transaction appended.
	result := flow.ResolveEntry(context.Background(), LoadContext{TransactionID: "abc", UserID: userID})
	if result.Mode != EntryModeCallback {
		t.Fatalf("mode = %q, want callback", result.Mode)
	}
	if result.ClearParam != "transaction_id" {
		t.Errorf("transaction id must be cleared from the address")
	}

	state := waitForTerminal(t, retrier, "abc")
	if state.Phase != RetryPhaseSuccess {
		t.Fatalf("phase = %q, want success", state.Phase)
	}
	if state.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", state.Attempts)
	}

	storedMu.Lock()
	defer storedMu.Unlock()
	if stored == nil || stored.TransactionID != "abc" {
		t.Fatalf("report not stored: %+v", stored)
	}
	if bureau.startCalls != 1 {
		t.Errorf("StartSession calls = %d, want 1", bureau.startCalls)
	}
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const bureauTokenLeeway = 30 * time.Second

// BureauConfig holds credentials for the external credit bureau.
type BureauConfig struct {
	BaseURL   string
	ClientID  string
	ClientKey string
}

// BureauService talks to the external credit bureau. It caches the
// access token and refreshes it shortly before expiry.
type BureauService struct {
	cfg        BureauConfig
	httpClient *http.Client

	tokenMu     sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewBureauService constructs a BureauService.
func NewBureauService(cfg BureauConfig) *BureauService {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &BureauService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type bureauAuthRequest struct {
	ClientID  string `json:"client_id"`
	ClientKey string `json:"client_key"`
}

type bureauAuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a cached bureau access token, fetching a new one if needed.
func (s *BureauService) Token(ctx context.Context) (string, error) {
	s.tokenMu.RLock()
	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		token := s.token
		s.tokenMu.RUnlock()
		return token, nil
	}
	s.tokenMu.RUnlock()

	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	// Check again in case another goroutine refreshed while we waited for the lock.
	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		return s.token, nil
	}

	if s.cfg.ClientID == "" || s.cfg.ClientKey == "" {
		return "", errors.New("bureau credentials are not configured")
	}

	body, err := json.Marshal(bureauAuthRequest{
		ClientID:  s.cfg.ClientID,
		ClientKey: s.cfg.ClientKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal bureau auth payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create bureau auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("bureau auth request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("bureau auth returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var auth bureauAuthResponse
	if err := json.Unmarshal(raw, &auth); err != nil {
		return "", fmt.Errorf("decode bureau auth response: %w", err)
	}
	if auth.AccessToken == "" {
		return "", errors.New("bureau auth response missing access token")
	}

	s.token = auth.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(auth.ExpiresIn)*time.Second - bureauTokenLeeway)
	return s.token, nil
}

type startSessionRequest struct {
	FirstName    string `json:"first_name"`
	MobileNumber string `json:"mobile_number"`
}

// StartSessionResult carries the bureau's verification hand-off.
type StartSessionResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
}

// StartSession begins an identity-verification session with the bureau.
// The caller must navigate the user to RedirectURL; the bureau returns
// control by appending transaction_id to the configured return address.
func (s *BureauService) StartSession(ctx context.Context, firstName, mobileNumber string) (*StartSessionResult, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(startSessionRequest{FirstName: firstName, MobileNumber: mobileNumber})
	if err != nil {
		return nil, fmt.Errorf("marshal start-session payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/verification/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create start-session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bureau start-session request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bureau start-session returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result StartSessionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode start-session response: %w", err)
	}
	if !result.Success || result.RedirectURL == "" {
		return nil, errors.New("bureau declined to start a verification session")
	}

	return &result, nil
}

// BureauReport is the raw report returned by the bureau for one
// transaction. Payload is an opaque nested structure projected later by
// the presenter.
type BureauReport struct {
	TransactionID string          `json:"transaction_id"`
	PDFURL        string          `json:"pdf_url"`
	Payload       json.RawMessage `json:"report"`
}

// FetchReportByTransaction retrieves the generated report for a
// transaction. Any failure, including a not-ready report, is returned
// as an undifferentiated error; the retrier only counts attempts.
func (s *BureauService) FetchReportByTransaction(ctx context.Context, transactionID string) (*BureauReport, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/reports/"+transactionID, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch-report request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bureau fetch-report request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bureau fetch-report returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var report BureauReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode fetch-report response: %w", err)
	}
	if len(report.Payload) == 0 || string(report.Payload) == "null" {
		return nil, errors.New("bureau report not ready")
	}
	if report.TransactionID == "" {
		report.TransactionID = transactionID
	}

	return &report, nil
}

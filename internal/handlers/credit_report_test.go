package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/lendly/internal/models"
	"github.com/example/lendly/internal/services"
	"github.com/example/lendly/internal/utils"
)

type stubBureau struct{}

func (stubBureau) StartSession(ctx context.Context, firstName, mobileNumber string) (*services.StartSessionResult, error) {
	return &services.StartSessionResult{Success: true, TransactionID: "abc", RedirectURL: "https://bureau.example/verify?tid=abc"}, nil
}

type stubStore struct{}

func (stubStore) HasCachedReport(userID uuid.UUID) (bool, error) { return false, nil }
func (stubStore) LatestReport(userID uuid.UUID) (*models.CreditReport, error) {
	return nil, services.ErrNoReport
}
func (stubStore) CreateSession(userID uuid.UUID, firstName, mobile string, result *services.StartSessionResult) (*models.BureauSession, error) {
	return &models.BureauSession{TransactionID: result.TransactionID, RedirectURL: result.RedirectURL}, nil
}
func (stubStore) MarkSessionRedirected(transactionID string) error { return nil }

type stubRetrier struct{}

func (stubRetrier) Launch(ctx context.Context, transactionID string) (services.RetryState, bool) {
	return services.RetryState{TransactionID: transactionID, Phase: services.RetryPhaseFetching}, true
}
func (stubRetrier) State(transactionID string) (services.RetryState, bool) {
	return services.RetryState{TransactionID: transactionID, Phase: services.RetryPhaseIdle}, false
}

func newTestApp() *fiber.App {
	flow := services.NewCreditCheckFlow(stubBureau{}, stubStore{}, stubRetrier{}, nil, "https://lendly.example/login")
	handler := NewCreditReportHandler(flow, nil)

	app := fiber.New()
	app.Post("/api/credit-report/intent", handler.CreateIntent)
	app.Get("/api/credit-report/entry", handler.Entry)
	return app
}

func TestCreateIntentEncodesRequest(t *testing.T) {
	app := newTestApp()

	body, _ := json.Marshal(map[string]interface{}{
		"first_name":    "Asha Rao",
		"mobile_number": "9876543210",
		"consent":       true,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/credit-report/intent", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Success bool   `json:"success"`
		Data    string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	intent, err := utils.DecodeIntent(payload.Data)
	if err != nil {
		t.Fatalf("DecodeIntent: %v", err)
	}
	if intent.FirstName != "Asha Rao" || intent.MobileNumber != "9876543210" || !intent.Consent {
		t.Errorf("intent = %+v", intent)
	}
}

func TestCreateIntentValidationFailure(t *testing.T) {
	app := newTestApp()

	body, _ := json.Marshal(map[string]interface{}{
		"first_name":    "Asha123",
		"mobile_number": "9876543210",
		"consent":       true,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/credit-report/intent", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	var payload struct {
		Success bool   `json:"success"`
		Field   string `json:"field"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Success || payload.Field != "first_name" {
		t.Errorf("payload = %+v, want first failing field only", payload)
	}
}

func TestEntryCallbackMode(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodGet, "/api/credit-report/entry?transaction_id=abc", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Mode       string `json:"mode"`
		ClearParam string `json:"clear_param"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Mode != services.EntryModeCallback {
		t.Errorf("mode = %q, want callback", payload.Mode)
	}
	if payload.ClearParam != "transaction_id" {
		t.Errorf("clear_param = %q, want transaction_id", payload.ClearParam)
	}
}

func TestEntryBlankLoadShowsForm(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(http.MethodGet, "/api/credit-report/entry", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	var payload struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Mode != services.EntryModeForm {
		t.Errorf("mode = %q, want form", payload.Mode)
	}
}

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newBureauTestServer(t *testing.T, authCalls *int64, reportReady bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(authCalls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token-123",
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("/verification/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":        true,
			"transaction_id": "abc",
			"redirect_url":   "https://bureau.example/verify?tid=abc",
		})
	})

	mux.HandleFunc("/reports/abc", func(w http.ResponseWriter, r *http.Request) {
		if !reportReady {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"transaction_id": "abc",
				"report":         nil,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction_id": "abc",
			"pdf_url":        "https://bureau.example/reports/abc.pdf",
			"report":         map[string]interface{}{"score": map[string]interface{}{"value": 742}},
		})
	})

	return httptest.NewServer(mux)
}

func testBureauConfig(url string) BureauConfig {
	return BureauConfig{BaseURL: url, ClientID: "client", ClientKey: "key"}
}

func TestBureauStartSession(t *testing.T) {
	var authCalls int64
	server := newBureauTestServer(t, &authCalls, true)
	defer server.Close()

	bureau := NewBureauService(testBureauConfig(server.URL))

	result, err := bureau.StartSession(context.Background(), "Asha Rao", "9876543210")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if result.TransactionID != "abc" {
		t.Errorf("TransactionID = %q", result.TransactionID)
	}
	if result.RedirectURL != "https://bureau.example/verify?tid=abc" {
		t.Errorf("RedirectURL = %q", result.RedirectURL)
	}
}

func TestBureauTokenIsCached(t *testing.T) {
	var authCalls int64
	server := newBureauTestServer(t, &authCalls, true)
	defer server.Close()

	bureau := NewBureauService(testBureauConfig(server.URL))

	for i := 0; i < 3; i++ {
		if _, err := bureau.StartSession(context.Background(), "Asha", "9876543210"); err != nil {
			t.Fatalf("StartSession %d: %v", i, err)
		}
	}

	if got := atomic.LoadInt64(&authCalls); got != 1 {
		t.Errorf("auth calls = %d, want 1 (token must be cached)", got)
	}
}

func TestBureauFetchReportNotReady(t *testing.T) {
	var authCalls int64
	server := newBureauTestServer(t, &authCalls, false)
	defer server.Close()

	bureau := NewBureauService(testBureauConfig(server.URL))

	if _, err := bureau.FetchReportByTransaction(context.Background(), "abc"); err == nil {
		t.Fatal("expected error for a not-ready report")
	}
}

func TestBureauFetchReportReady(t *testing.T) {
	var authCalls int64
	server := newBureauTestServer(t, &authCalls, true)
	defer server.Close()

	bureau := NewBureauService(testBureauConfig(server.URL))

	report, err := bureau.FetchReportByTransaction(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FetchReportByTransaction: %v", err)
	}
	if report.TransactionID != "abc" {
		t.Errorf("TransactionID = %q", report.TransactionID)
	}
	if report.PDFURL != "https://bureau.example/reports/abc.pdf" {
		t.Errorf("PDFURL = %q", report.PDFURL)
	}
	if summary := SummarizeReport(report.Payload); summary.CreditScore != 742 {
		t.Errorf("payload score = %d, want 742", summary.CreditScore)
	}
}

func TestBureauMissingCredentials(t *testing.T) {
	bureau := NewBureauService(BureauConfig{BaseURL: "https://api.bureau.example/v1"})

	if _, err := bureau.StartSession(context.Background(), "Asha", "9876543210"); err == nil {
		t.Fatal("expected error without credentials")
	}
}

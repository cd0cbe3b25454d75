package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NoData is rendered wherever the bureau payload is missing a value.
// The presenter never fails on an absent path.
const NoData = "ND"

// Payment-history buckets, in classification precedence order.
const (
	BucketGood       = "good"
	BucketNew        = "new"
	BucketClosed     = "closed"
	BucketDPD1To30   = "dpd_1_30"
	BucketDPD31To60  = "dpd_31_60"
	BucketDPD61Plus  = "dpd_61_plus"
	BucketWrittenOff = "written_off"
	BucketUnknown    = "unknown"
)

const paymentHistoryMonths = 48

var (
	goodStatusCodes   = map[string]bool{"000": true, "0": true, "STD": true}
	closedStatusCodes = map[string]bool{"CLSD": true, "CLS": true}
	// Written-off and doubtful asset classifications.
	distressedStatusCodes = map[string]bool{"SUB": true, "DBT": true, "LSS": true, "WOF": true, "WDF": true, "SMA": true}
)

// ClassifyPaymentStatus maps a bureau payment-status code to a bucket.
// Precedence: on-time/closed-ok codes, new account, closed account,
// numeric days-past-due ranges, distressed-debt codes, then unknown.
func ClassifyPaymentStatus(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))

	switch {
	case goodStatusCodes[code]:
		return BucketGood
	case code == "NEW":
		return BucketNew
	case closedStatusCodes[code]:
		return BucketClosed
	}

	if dpd, err := strconv.Atoi(code); err == nil && dpd > 0 {
		switch {
		case dpd <= 30:
			return BucketDPD1To30
		case dpd <= 60:
			return BucketDPD31To60
		default:
			return BucketDPD61Plus
		}
	}

	if distressedStatusCodes[code] {
		return BucketWrittenOff
	}

	return BucketUnknown
}

// PaymentMonth is one cell of the 48-entry payment-history grid.
type PaymentMonth struct {
	Period string `json:"period"`
	Code   string `json:"code"`
	Bucket string `json:"bucket"`
}

// AccountView is the presented form of one bureau account.
type AccountView struct {
	Lender           string         `json:"lender"`
	AccountType      string         `json:"account_type"`
	Status           string         `json:"status"`
	CurrentBalance   string         `json:"current_balance"`
	AmountOverdue    string         `json:"amount_overdue"`
	SanctionedAmount string         `json:"sanctioned_amount"`
	OpenedDate       string         `json:"opened_date"`
	PaymentHistory   []PaymentMonth `json:"payment_history"`
}

// PersonalInfoView is the presented form of bureau identity fields.
type PersonalInfoView struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	PAN         string `json:"pan"`
	Address     string `json:"address"`
	Mobile      string `json:"mobile"`
}

// PresentedReport is the full projection of a raw bureau payload.
type PresentedReport struct {
	Score          string           `json:"score"`
	TotalAccounts  string           `json:"total_accounts"`
	ActiveAccounts string           `json:"active_accounts"`
	TotalBalance   string           `json:"total_balance"`
	TotalOverdue   string           `json:"total_overdue"`
	PersonalInfo   PersonalInfoView `json:"personal_info"`
	Accounts       []AccountView    `json:"accounts"`
}

// PresentReport projects an opaque bureau payload into the report view.
// It is pure and side-effect free; any missing or malformed path is
// rendered as the NoData placeholder.
func PresentReport(payload []byte) PresentedReport {
	var root map[string]interface{}
	_ = json.Unmarshal(payload, &root)

	report := PresentedReport{
		Score:          numberAt(root, "score", "value"),
		TotalAccounts:  numberAt(root, "accounts", "summary", "total"),
		ActiveAccounts: numberAt(root, "accounts", "summary", "active"),
		TotalBalance:   numberAt(root, "accounts", "summary", "total_balance"),
		TotalOverdue:   numberAt(root, "accounts", "summary", "total_overdue"),
		PersonalInfo: PersonalInfoView{
			FullName:    stringAt(root, "personal_info", "full_name"),
			DateOfBirth: stringAt(root, "personal_info", "date_of_birth"),
			Gender:      stringAt(root, "personal_info", "gender"),
			PAN:         stringAt(root, "personal_info", "pan"),
			Address:     stringAt(root, "personal_info", "address"),
			Mobile:      stringAt(root, "personal_info", "mobile"),
		},
	}

	items, _ := valueAt(root, "accounts", "items").([]interface{})
	for _, item := range items {
		account, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		report.Accounts = append(report.Accounts, AccountView{
			Lender:           stringAt(account, "lender"),
			AccountType:      stringAt(account, "account_type"),
			Status:           stringAt(account, "status"),
			CurrentBalance:   numberAt(account, "balance"),
			AmountOverdue:    numberAt(account, "overdue"),
			SanctionedAmount: numberAt(account, "sanctioned"),
			OpenedDate:       stringAt(account, "opened"),
			PaymentHistory:   presentPaymentHistory(account["payment_history"]),
		})
	}

	return report
}

// presentPaymentHistory always yields exactly 48 entries, padding the
// tail with no-data cells when the bureau reports a shorter history.
func presentPaymentHistory(raw interface{}) []PaymentMonth {
	grid := make([]PaymentMonth, 0, paymentHistoryMonths)

	entries, _ := raw.([]interface{})
	for _, entry := range entries {
		if len(grid) == paymentHistoryMonths {
			break
		}
		month, ok := entry.(map[string]interface{})
		if !ok {
			grid = append(grid, PaymentMonth{Period: NoData, Code: NoData, Bucket: BucketUnknown})
			continue
		}
		code := stringAt(month, "status")
		bucket := BucketUnknown
		if code != NoData {
			bucket = ClassifyPaymentStatus(code)
		}
		grid = append(grid, PaymentMonth{
			Period: stringAt(month, "month"),
			Code:   code,
			Bucket: bucket,
		})
	}

	for len(grid) < paymentHistoryMonths {
		grid = append(grid, PaymentMonth{Period: NoData, Code: NoData, Bucket: BucketUnknown})
	}

	return grid
}

// ReportSummary carries the scalar columns persisted on CreditReport.
type ReportSummary struct {
	CreditScore    int
	TotalAccounts  int
	ActiveAccounts int
	TotalBalance   float64
	TotalOverdue   float64
	PDFOriginalURL string
}

// SummarizeReport extracts the persisted summary columns from a raw
// payload. Missing paths yield zero values, never errors.
func SummarizeReport(payload []byte) ReportSummary {
	var root map[string]interface{}
	_ = json.Unmarshal(payload, &root)

	return ReportSummary{
		CreditScore:    int(floatAt(root, "score", "value")),
		TotalAccounts:  int(floatAt(root, "accounts", "summary", "total")),
		ActiveAccounts: int(floatAt(root, "accounts", "summary", "active")),
		TotalBalance:   floatAt(root, "accounts", "summary", "total_balance"),
		TotalOverdue:   floatAt(root, "accounts", "summary", "total_overdue"),
		PDFOriginalURL: rawStringAt(root, "pdf", "url"),
	}
}

func valueAt(root map[string]interface{}, path ...string) interface{} {
	current := interface{}(root)
	for _, key := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = m[key]
		if !ok {
			return nil
		}
	}
	return current
}

func stringAt(root map[string]interface{}, path ...string) string {
	if s, ok := valueAt(root, path...).(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return NoData
}

func rawStringAt(root map[string]interface{}, path ...string) string {
	s, _ := valueAt(root, path...).(string)
	return s
}

func numberAt(root map[string]interface{}, path ...string) string {
	switch v := valueAt(root, path...).(type) {
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return fmt.Sprintf("%.2f", v)
	case string:
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return NoData
}

func floatAt(root map[string]interface{}, path ...string) float64 {
	if v, ok := valueAt(root, path...).(float64); ok {
		return v
	}
	return 0
}

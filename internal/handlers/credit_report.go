package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/lendly/internal/middleware"
	"github.com/example/lendly/internal/models"
	"github.com/example/lendly/internal/services"
	"github.com/example/lendly/internal/utils"
)

// CreditReportHandler exposes the bureau report pipeline over HTTP.
type CreditReportHandler struct {
	flow    *services.CreditCheckFlow
	reports *services.ReportService
}

// NewCreditReportHandler constructs a CreditReportHandler.
func NewCreditReportHandler(flow *services.CreditCheckFlow, reports *services.ReportService) *CreditReportHandler {
	return &CreditReportHandler{flow: flow, reports: reports}
}

type creditCheckRequest struct {
	FirstName    string `json:"first_name"`
	MobileNumber string `json:"mobile_number"`
	Consent      bool   `json:"consent"`
}

// CreateIntent validates an unauthenticated credit-check request and
// returns the encoded pending intent plus the login URL carrying it.
func (h *CreditReportHandler) CreateIntent(c *fiber.Ctx) error {
	var req creditCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	deferred, err := h.flow.Defer(req.FirstName, req.MobileNumber, req.Consent)
	if err != nil {
		return writeValidationError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"data":      deferred.Data,
		"login_url": deferred.LoginURL,
	})
}

// StartSession validates and submits an authenticated credit-check
// request. The client must navigate to the returned redirect URL.
func (h *CreditReportHandler) StartSession(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req creditCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.flow.Submit(c.UserContext(), userID, req.FirstName, req.MobileNumber, req.Consent)
	if err != nil {
		if errors.Is(err, services.ErrSessionStart) {
			// Resettable: the client may simply submit again.
			return fiber.NewError(fiber.StatusBadGateway, "could not start credit verification, please try again")
		}
		return writeValidationError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"transaction_id": session.TransactionID,
		"redirect_url":   session.RedirectURL,
	})
}

// Entry routes one page load: bureau callback, post-auth resume, cached
// report, or the blank form.
func (h *CreditReportHandler) Entry(c *fiber.Ctx) error {
	userID, _ := middleware.GetCurrentUserID(c)

	result := h.flow.ResolveEntry(c.UserContext(), services.LoadContext{
		TransactionID: c.Query("transaction_id"),
		EncodedIntent: c.Query("data"),
		UserID:        userID,
	})

	resp := fiber.Map{
		"success": true,
		"mode":    result.Mode,
	}
	if result.Retry != nil {
		resp["retry"] = result.Retry
	}
	if result.Intent != nil {
		resp["intent"] = result.Intent
	}
	if result.Report != nil {
		resp["report"] = presentRecord(result.Report)
	}
	if result.ClearParam != "" {
		resp["clear_param"] = result.ClearParam
	}

	return c.JSON(resp)
}

// RetryStatus reports the polling sequence state for a transaction.
// When the sequence has succeeded it includes the stored report; when
// exhausted it carries the soft advisory.
func (h *CreditReportHandler) RetryStatus(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	transactionID := c.Params("transactionId")
	state := h.flow.RetryStatus(transactionID)

	resp := fiber.Map{
		"success": true,
		"retry":   state,
	}

	switch state.Phase {
	case services.RetryPhaseSuccess:
		report, err := h.reports.LatestReport(userID)
		if err == nil {
			resp["report"] = presentRecord(report)
		}
	case services.RetryPhaseExhausted:
		resp["advisory"] = "Your report is still being prepared by the bureau. It will appear here automatically once ready - no action needed."
	}

	return c.JSON(resp)
}

// CheckCache answers the cache-existence check.
func (h *CreditReportHandler) CheckCache(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	cached, err := h.reports.HasCachedReport(userID)
	if err != nil {
		// Fail open: a transient failure means "show the form".
		return c.JSON(fiber.Map{"success": true, "cached": false})
	}

	return c.JSON(fiber.Map{"success": true, "cached": cached})
}

// GetMyReport returns the authenticated user's latest report.
func (h *CreditReportHandler) GetMyReport(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	report, err := h.reports.LatestReport(userID)
	if err != nil {
		if errors.Is(err, services.ErrNoReport) {
			return fiber.NewError(fiber.StatusNotFound, "no credit report on file")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"report":  presentRecord(report),
	})
}

// GetPDFLink returns the stored PDF location for the latest report.
func (h *CreditReportHandler) GetPDFLink(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	link, err := h.reports.PDFLink(userID)
	if err != nil {
		if errors.Is(err, services.ErrNoReport) {
			return fiber.NewError(fiber.StatusNotFound, "no credit report on file")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"pdf_spaces_url": link,
	})
}

// presentRecord projects a stored report into the response shape: the
// summary columns plus the presented view of the raw payload.
func presentRecord(report *models.CreditReport) fiber.Map {
	return fiber.Map{
		"id":              report.ID,
		"transaction_id":  report.TransactionID,
		"credit_score":    report.CreditScore,
		"total_accounts":  report.TotalAccounts,
		"active_accounts": report.ActiveAccounts,
		"total_balance":   report.TotalBalance,
		"total_overdue":   report.TotalOverdue,
		"fetched_at":      report.FetchedAt,
		"expires_at":      report.ExpiresAt,
		"view":            services.PresentReport(report.FullPayload),
	}
}

func writeValidationError(c *fiber.Ctx, err error) error {
	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"field":   verr.Field,
			"message": verr.Message,
		})
	}
	return err
}

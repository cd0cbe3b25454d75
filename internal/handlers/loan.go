package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/lendly/internal/middleware"
	"github.com/example/lendly/internal/models"
	"github.com/example/lendly/internal/utils"
)

// LoanHandler manages loan application records. Approval itself happens
// in the back office.
type LoanHandler struct {
	db *gorm.DB
}

// NewLoanHandler constructs a LoanHandler.
func NewLoanHandler(db *gorm.DB) *LoanHandler {
	return &LoanHandler{db: db}
}

type createLoanRequest struct {
	Amount     float64 `json:"amount"`
	TermMonths int     `json:"term_months"`
	Purpose    string  `json:"purpose"`
}

// CreateLoan records a new loan application for the current user.
func (h *LoanHandler) CreateLoan(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createLoanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Amount <= 0 || req.TermMonths <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "amount and term must be positive")
	}

	loan := models.Loan{
		UserID:     userID,
		Amount:     req.Amount,
		TermMonths: req.TermMonths,
		Purpose:    req.Purpose,
		Status:     models.LoanStatusApplied,
	}

	if err := h.db.Create(&loan).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    loan,
	})
}

// ListLoans returns the current user's loan applications.
func (h *LoanHandler) ListLoans(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pagination := utils.ParsePagination(c)

	var loans []models.Loan
	if err := h.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(pagination.Limit).
		Offset(pagination.Offset).
		Find(&loans).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    loans,
		"page":    pagination.Page,
		"limit":   pagination.Limit,
	})
}

// GetLoan returns one of the current user's loans by ID.
func (h *LoanHandler) GetLoan(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid loan id")
	}

	var loan models.Loan
	if err := h.db.First(&loan, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "loan not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": loan})
}

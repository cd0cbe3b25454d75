package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/lendly/internal/middleware"
	"github.com/example/lendly/internal/models"
	"github.com/example/lendly/internal/services"
	"github.com/example/lendly/internal/utils"
)

// LeadHandler manages lead capture and back-office listing.
type LeadHandler struct {
	db    *gorm.DB
	leads *services.LeadService
}

// NewLeadHandler constructs a LeadHandler.
func NewLeadHandler(db *gorm.DB, leads *services.LeadService) *LeadHandler {
	return &LeadHandler{db: db, leads: leads}
}

type captureLeadRequest struct {
	FirstName    string `json:"first_name"`
	MobileNumber string `json:"mobile_number"`
	Consent      bool   `json:"consent"`
}

// Capture records a marketing lead. The write is fire-and-forget: the
// response is always success so a storage hiccup never blocks the form.
func (h *LeadHandler) Capture(c *fiber.Ctx) error {
	var req captureLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var userID *uuid.UUID
	if id, ok := middleware.GetCurrentUserID(c); ok {
		userID = &id
	}

	if err := h.leads.Capture(c.UserContext(), req.FirstName, req.MobileNumber, req.Consent, userID); err != nil {
		log.Printf("[Leads] capture failed: %v", err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListLeads returns leads for the back office with pagination and an
// optional mobile filter.
func (h *LeadHandler) ListLeads(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c)

	query := h.db.Model(&models.Lead{})
	if mobile := c.Query("mobile"); mobile != "" {
		query = query.Where("mobile = ?", mobile)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var leads []models.Lead
	if err := query.Order("created_at desc").
		Limit(pagination.Limit).
		Offset(pagination.Offset).
		Find(&leads).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    leads,
		"total":   total,
		"page":    pagination.Page,
		"limit":   pagination.Limit,
	})
}

// GetLead returns one lead by ID.
func (h *LeadHandler) GetLead(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid lead id")
	}

	var lead models.Lead
	if err := h.db.First(&lead, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "lead not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": lead})
}

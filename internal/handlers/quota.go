package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pixelforge/backend/internal/middleware"
	"github.com/pixelforge/backend/internal/models"
	"github.com/pixelforge/backend/internal/quota"
)

type QuotaHandler struct {
	ledger *quota.Ledger
}

func NewQuotaHandler(ledger *quota.Ledger) *QuotaHandler {
	return &QuotaHandler{ledger: ledger}
}

// Credit adds consumable volume to an account's quota record. Internal
// surface, admin-gated; called by billing integrations, not end users.
func (h *QuotaHandler) Credit(c *fiber.Ctx) error {
	type CreditRequest struct {
		AccountID uint   `json:"accountId"`
		PlanKind  string `json:"planKind"`
		AddVolume int64  `json:"addVolume"`
	}

	var req CreditRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.AccountID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "accountId is required",
		})
	}

	if err := h.ledger.Credit(req.AccountID, models.PlanKind(req.PlanKind), req.AddVolume); err != nil {
		if errors.Is(err, quota.ErrInvalidPlan) || errors.Is(err, quota.ErrInvalidVolume) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid credit request",
				"details": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to credit quota",
		})
	}

	record, err := h.ledger.Get(req.AccountID, models.PlanKind(req.PlanKind))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to read quota record",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    record,
	})
}

// Get returns the calling account's quota record for a plan kind,
// along with the consumption counter and remainder for that plan
func (h *QuotaHandler) Get(c *fiber.Ctx) error {
	account := middleware.GetCurrentAccount(c)
	if account == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Authentication required",
		})
	}

	planKind := models.PlanKind(c.Query("planKind", string(models.PlanKindFlow)))

	record, err := h.ledger.Get(account.ID, planKind)
	if err != nil {
		switch {
		case errors.Is(err, quota.ErrInvalidPlan):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid plan kind",
			})
		case errors.Is(err, quota.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "No quota record",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to read quota record",
			})
		}
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"data":      record,
		"consumed":  record.Consumed(),
		"remaining": record.CreditedVolume - record.Consumed(),
	})
}

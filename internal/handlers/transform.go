package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pixelforge/backend/internal/middleware"
	"github.com/pixelforge/backend/internal/models"
	"github.com/pixelforge/backend/internal/provider"
	"github.com/pixelforge/backend/internal/quota"
	"github.com/pixelforge/backend/internal/storage"
)

// TransformHandler drives the provider-invoke and materialize pipeline
type TransformHandler struct {
	provider     *provider.Client
	store        *storage.Store
	ledger       *quota.Ledger
	enforceQuota bool
}

func NewTransformHandler(p *provider.Client, store *storage.Store, ledger *quota.Ledger, enforceQuota bool) *TransformHandler {
	return &TransformHandler{
		provider:     p,
		store:        store,
		ledger:       ledger,
		enforceQuota: enforceQuota,
	}
}

// Enhance upscales a source image through the provider and materializes
// the result into the output store
func (h *TransformHandler) Enhance(c *fiber.Ctx) error {
	type EnhanceRequest struct {
		ImageURL string `json:"imageUrl"`
		Scale    int    `json:"scale"`
	}

	var req EnhanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.ImageURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "imageUrl is required",
		})
	}
	if req.Scale < 1 {
		req.Scale = 2
	}

	if ok, refusal := h.debit(c, models.PlanKindFlow); !ok {
		return refusal
	}

	resultURL, err := h.provider.Enhance(c.Context(), req.ImageURL, req.Scale)
	if err != nil {
		return transformError(c, err)
	}

	asset, err := h.store.Materialize(c.Context(), resultURL, storage.CategoryOutput)
	if err != nil {
		return transformError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"originalUrl": req.ImageURL,
		"resultUrl":   resultURL,
		"localUrl":    asset.LocalURL,
		"scale":       req.Scale,
	})
}

// RemoveBackground strips the background from a source image through
// the provider and materializes the result into the output store
func (h *TransformHandler) RemoveBackground(c *fiber.Ctx) error {
	type RemoveBackgroundRequest struct {
		ImageURL string `json:"imageUrl"`
	}

	var req RemoveBackgroundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.ImageURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "imageUrl is required",
		})
	}

	if ok, refusal := h.debit(c, models.PlanKindCreative); !ok {
		return refusal
	}

	resultURL, err := h.provider.RemoveBackground(c.Context(), req.ImageURL)
	if err != nil {
		return transformError(c, err)
	}

	asset, err := h.store.Materialize(c.Context(), resultURL, storage.CategoryOutput)
	if err != nil {
		return transformError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"originalUrl": req.ImageURL,
		"resultUrl":   resultURL,
		"localUrl":    asset.LocalURL,
	})
}

// debit consumes one unit of quota for the calling account when
// enforcement is enabled. The boolean reports whether the request may
// proceed; on refusal the response has already been written and the
// returned error is the handler result. The JSON write itself returns
// nil, so the boolean is the signal, never the error.
func (h *TransformHandler) debit(c *fiber.Ctx, planKind models.PlanKind) (bool, error) {
	if !h.enforceQuota {
		return true, nil
	}

	account := middleware.GetCurrentAccount(c)
	if account == nil {
		return false, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Authentication required",
		})
	}

	ok, err := h.ledger.TryDebit(account.ID, planKind, 1)
	if err != nil {
		return false, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Quota check failed",
		})
	}
	if !ok {
		return false, c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "Quota exceeded",
			"details": string(planKind) + " volume exhausted",
		})
	}

	return true, nil
}

// transformError maps component error kinds onto the HTTP envelope
func transformError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, provider.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid input",
			"details": err.Error(),
		})
	case errors.Is(err, provider.ErrUpstream):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Transformation failed",
			"details": err.Error(),
		})
	case errors.Is(err, storage.ErrDownloadFailed), errors.Is(err, storage.ErrWriteFailed):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to store result",
			"details": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Internal server error",
		})
	}
}

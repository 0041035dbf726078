package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pixelforge/backend/internal/storage"
)

// Proxy responses stay cacheable well below the eviction TTL so clients
// never hold on to assets the sweeper has already removed.
const assetCacheControl = "public, max-age=3600"

type AssetHandler struct {
	store *storage.Store
}

func NewAssetHandler(store *storage.Store) *AssetHandler {
	return &AssetHandler{store: store}
}

// Serve streams a materialized asset by identifier and category. Pure
// read path: nothing is created, mutated or deleted here.
func (h *AssetHandler) Serve(c *fiber.Ctx) error {
	identifier := c.Query("identifier")
	categoryParam := c.Query("category")

	category, err := storage.ParseCategory(categoryParam)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid category",
			"details": "category must be temporary or output",
		})
	}

	path, err := h.store.Resolve(identifier, category)
	if err != nil {
		if errors.Is(err, storage.ErrBadIdentifier) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid identifier",
			})
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Asset not found",
		})
	}

	c.Set(fiber.HeaderCacheControl, assetCacheControl)
	return c.SendFile(path)
}

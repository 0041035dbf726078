package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pixelforge/backend/internal/config"
	"github.com/pixelforge/backend/internal/middleware"
	"github.com/pixelforge/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB) *AuthHandler {
	return &AuthHandler{cfg: cfg, db: db}
}

// Login exchanges an account email and API key for a bearer token
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Email  string `json:"email"`
		APIKey string `json:"apiKey"`
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if req.Email == "" || req.APIKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "email and apiKey are required",
		})
	}

	var account models.Account
	if err := h.db.Where("email = ?", req.Email).First(&account).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid credentials",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.APIKeyHash), []byte(req.APIKey)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid credentials",
		})
	}

	if !account.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Account is disabled",
		})
	}

	token, err := middleware.GenerateToken(&account, h.cfg)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to generate token",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
		"account": account,
	})
}

// Me returns the authenticated account
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	account := middleware.GetCurrentAccount(c)
	return c.JSON(fiber.Map{
		"success": true,
		"account": account,
	})
}

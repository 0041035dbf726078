package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pixelforge/backend/internal/config"
	"github.com/pixelforge/backend/internal/models"
	"gorm.io/gorm"
)

// JWTClaims represents JWT token claims
type JWTClaims struct {
	AccountID uint   `json:"account_id"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// GenerateToken generates a new JWT token for an account
func GenerateToken(account *models.Account, cfg *config.Config) (string, error) {
	claims := JWTClaims{
		AccountID: account.ID,
		Email:     account.Email,
		IsAdmin:   account.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(cfg.JWTExpireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pixelforge",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// AuthRequired middleware to protect routes
func AuthRequired(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing authorization header",
			})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid authorization header format",
			})
		}

		// Parse and validate token
		token, err := jwt.ParseWithClaims(parts[1], &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid or expired token",
			})
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid token claims",
			})
		}

		// Check if account still exists and is active
		var account models.Account
		if err := db.First(&account, claims.AccountID).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Account not found",
			})
		}

		if !account.IsActive {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Account is disabled",
			})
		}

		// Store account info in context
		c.Locals("account", &account)
		c.Locals("accountID", account.ID)

		return c.Next()
	}
}

// AdminOnly middleware to restrict to admin accounts
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := GetCurrentAccount(c)
		if account == nil || !account.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "Admin access required",
			})
		}
		return c.Next()
	}
}

// GetCurrentAccount returns the authenticated account from context
func GetCurrentAccount(c *fiber.Ctx) *models.Account {
	account, ok := c.Locals("account").(*models.Account)
	if !ok {
		return nil
	}
	return account
}

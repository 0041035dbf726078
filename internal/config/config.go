package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// JWT
	JWTSecret      string
	JWTExpireHours int

	// API
	APIPort       int
	PublicBaseURL string

	// Transformation provider
	ProviderURL     string
	ProviderAPIKey  string
	ProviderTimeout time.Duration

	// Ephemeral asset storage
	StorageRoot    string
	StaticWritable bool
	AssetTTL       time.Duration

	// Quota
	EnforceQuota bool
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a hostname-based value if crypto/rand fails
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + string(rune(length))))
	}
	return hex.EncodeToString(bytes)
}

func Load() *Config {
	// JWT Secret - generate random if not provided
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateSecureSecret(32) // 64 character hex string
		log.Println("WARNING: JWT_SECRET not set - generated random secret. Tokens will not survive restarts.")
	}

	// Database password - warn if using default
	dbPassword := getEnv("DB_PASSWORD", "")
	if dbPassword == "" {
		log.Println("WARNING: DB_PASSWORD not set - this is insecure for production!")
		dbPassword = "changeme"
	}

	// Redis password - warn if using default
	redisPassword := getEnv("REDIS_PASSWORD", "")
	if redisPassword == "" {
		log.Println("WARNING: REDIS_PASSWORD not set - Redis is not secured!")
	}

	providerKey := getEnv("PROVIDER_API_KEY", "")
	if providerKey == "" {
		log.Println("WARNING: PROVIDER_API_KEY not set - transformation requests will be rejected upstream!")
	}

	return &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "pixelforge"),
		DBPassword: dbPassword,
		DBName:     getEnv("DB_NAME", "pixelforge"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: redisPassword,

		// JWT
		JWTSecret:      jwtSecret,
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 168), // 7 days default

		// API
		APIPort:       getEnvInt("API_PORT", 8080),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		// Provider
		ProviderURL:     getEnv("PROVIDER_URL", "https://api.imgtransform.io"),
		ProviderAPIKey:  providerKey,
		ProviderTimeout: time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)) * time.Second,

		// Storage
		StorageRoot:    getEnv("STORAGE_ROOT", "/app/uploads"),
		StaticWritable: getEnvBool("STATIC_WRITABLE", false),
		AssetTTL:       time.Duration(getEnvInt("ASSET_TTL_HOURS", 24)) * time.Hour,

		// Quota
		EnforceQuota: getEnvBool("ENFORCE_QUOTA", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

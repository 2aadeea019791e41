package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Shop      ShopConfig
	Storage   StorageConfig
	Payment   PaymentConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
}

// DSN builds a pgx connection string
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Database +
		"?sslmode=" + c.SSLMode + "&search_path=" + c.Schema
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr is host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

type ShopConfig struct {
	Currency              string
	FreeShippingThreshold float64
	CatalogPageSize       int
	CollationLocale       string
	PaymentTimeout        time.Duration
	SweepSchedule         string
	CartTTL               time.Duration
}

type StorageConfig struct {
	CloudinaryURL string
	Folder        string
}

type PaymentConfig struct {
	WebhookSecret   string
	MockFailureRate float64
}

type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

// IsDevelopment reports whether the server runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func Load() *Config {
	// Populate the process env from .env so viper and the DB tooling see the same values
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 7)
	viper.SetDefault("SHOP_CURRENCY", "SEK")
	viper.SetDefault("SHOP_FREE_SHIPPING_THRESHOLD", 500)
	viper.SetDefault("CATALOG_PAGE_SIZE", 12)
	viper.SetDefault("CATALOG_COLLATION_LOCALE", "sv")
	viper.SetDefault("PAYMENT_TIMEOUT", "30m")
	viper.SetDefault("PAYMENT_SWEEP_SCHEDULE", "@every 1m")
	viper.SetDefault("CART_TTL", "720h")
	viper.SetDefault("STORAGE_FOLDER", "chocolata")
	viper.SetDefault("PAYMENT_MOCK_FAILURE_RATE", 0.05)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Shop: ShopConfig{
			Currency:              viper.GetString("SHOP_CURRENCY"),
			FreeShippingThreshold: viper.GetFloat64("SHOP_FREE_SHIPPING_THRESHOLD"),
			CatalogPageSize:       viper.GetInt("CATALOG_PAGE_SIZE"),
			CollationLocale:       viper.GetString("CATALOG_COLLATION_LOCALE"),
			PaymentTimeout:        viper.GetDuration("PAYMENT_TIMEOUT"),
			SweepSchedule:         viper.GetString("PAYMENT_SWEEP_SCHEDULE"),
			CartTTL:               viper.GetDuration("CART_TTL"),
		},
		Storage: StorageConfig{
			CloudinaryURL: viper.GetString("CLOUDINARY_URL"),
			Folder:        viper.GetString("STORAGE_FOLDER"),
		},
		Payment: PaymentConfig{
			WebhookSecret:   viper.GetString("PAYMENT_WEBHOOK_SECRET"),
			MockFailureRate: viper.GetFloat64("PAYMENT_MOCK_FAILURE_RATE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:            viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

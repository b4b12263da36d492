package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP   HTTPConfig
	Redis  RedisConfig
	DB     DBConfig
	Ledger LedgerConfig
	Auth   AuthConfig
	Seed   SeedConfig
}

type HTTPConfig struct {
	Port string
}

type DBConfig struct {
	DSN string
}

type LedgerConfig struct {
	// Timezone is the IANA name of the zone in which "today" is decided
	// for expiry classification and log timestamps.
	Timezone string
	// NearExpiryDays is the warning window: batches expiring within this
	// many days classify as near-expiry.
	NearExpiryDays int
	// DefaultShelfLifeDays is applied to products whose shelf life is not
	// known at creation or seeding time.
	DefaultShelfLifeDays int
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTLHours int
	AdminPassword string
}

type SeedConfig struct {
	ProductsCSV string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	nearDays, _ := strconv.Atoi(getEnv("NEAR_EXPIRY_DAYS", "3"))
	shelfDays, _ := strconv.Atoi(getEnv("DEFAULT_SHELF_LIFE_DAYS", "7"))
	tokenTTL, _ := strconv.Atoi(getEnv("JWT_TTL_HOURS", "24"))

	return Config{
		HTTP: HTTPConfig{
			Port: getEnv("HTTP_PORT", "8080"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			DSN: getEnv("DATABASE_DSN", ""),
		},
		Ledger: LedgerConfig{
			Timezone:             getEnv("LEDGER_TIMEZONE", "Asia/Bangkok"),
			NearExpiryDays:       nearDays,
			DefaultShelfLifeDays: shelfDays,
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "freshstock-dev-secret"),
			TokenTTLHours: tokenTTL,
			AdminPassword: getEnv("ADMIN_PASSWORD", "1234"),
		},
		Seed: SeedConfig{
			ProductsCSV: getEnv("PRODUCTS_CSV", "products.csv"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"os"
	"strconv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	AI         AIConfig
	Ozon       OzonConfig
	Dispatcher DispatcherConfig
}

type ServerConfig struct {
	Port    string
	GinMode string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type AIConfig struct {
	APIKey string
	Model  string
}

type OzonConfig struct {
	BaseURL string
}

type DispatcherConfig struct {
	IntervalSeconds          int
	BatchSize                int
	GeneratorIntervalSeconds int
	GeneratorBatchSize       int
	SyncIntervalMinutes      int
}

var AppConfig *Config

func Load() {
	AppConfig = &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DB_URL", ""),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-this-jwt-secret-in-production"),
			ExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 24),
		},
		AI: AIConfig{
			APIKey: getEnv("AI_GATEWAY_API_KEY", ""),
			Model:  getEnv("AI_GATEWAY_MODEL", "gemini-1.5-flash"),
		},
		Ozon: OzonConfig{
			BaseURL: getEnv("OZON_API_URL", "https://api-seller.ozon.ru"),
		},
		Dispatcher: DispatcherConfig{
			IntervalSeconds:          getEnvAsInt("DISPATCH_INTERVAL_SECONDS", 60),
			BatchSize:                getEnvAsInt("DISPATCH_BATCH_SIZE", 50),
			GeneratorIntervalSeconds: getEnvAsInt("GENERATOR_INTERVAL_SECONDS", 300),
			GeneratorBatchSize:       getEnvAsInt("GENERATOR_BATCH_SIZE", 10),
			SyncIntervalMinutes:      getEnvAsInt("SYNC_INTERVAL_MINUTES", 15),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

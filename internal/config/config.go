package config

import (
	"errors"
	"os"
	"time"
)

// Config holds everything the process reads from the environment.
type Config struct {
	Port            string
	MongoURI        string
	DBName          string
	RoomsCollection string
	RedisAddr       string // empty disables event publishing
	EventsChannel   string
	StoreTimeout    time.Duration
	ReapSchedule    string
}

// LoadConfig reads configuration from environment variables, applying
// defaults for everything except MONGO_URI.
func LoadConfig() (*Config, error) {
	config := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		MongoURI:        os.Getenv("MONGO_URI"),
		DBName:          getEnvOrDefault("DB_NAME", "codeshare"),
		RoomsCollection: getEnvOrDefault("ROOMS_COLLECTION", "rooms"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		EventsChannel:   getEnvOrDefault("EVENTS_CHANNEL", "rooms"),
		ReapSchedule:    getEnvOrDefault("REAP_SCHEDULE", "@every 5m"),
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("STORE_TIMEOUT", "2s"))
	if err != nil {
		return nil, errors.New("invalid STORE_TIMEOUT: " + err.Error())
	}
	config.StoreTimeout = timeout

	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.MongoURI == "" {
		return errors.New("MONGO_URI is empty")
	}
	if config.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

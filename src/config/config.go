package config

import (
	"fmt"
	"os"
	"strconv"
)

// Exchange names for the outbound event feed.
const (
	SESSION_EVENTS_EXCHANGE = "session.events"
	WALLET_EVENTS_EXCHANGE  = "wallet.events"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type GlobalConfig struct {
	LogLevel string
	Host     string
	Port     string

	Database DatabaseConfig

	// AMQPURL is optional; when empty the event publisher is disabled and
	// session/wallet events are not emitted.
	AMQPURL string

	// AuthServiceURL is the token validation endpoint of the auth service.
	AuthServiceURL string

	// Fallback AI provider credentials, used when the admin settings row
	// does not carry a key for the selected provider.
	OpenAIAPIKey   string
	OpenAIModel    string
	DeepSeekAPIKey string
	DeepSeekModel  string
	GeminiAPIKey   string
	GeminiModel    string
}

func NewConfig() (*GlobalConfig, error) {
	host := os.Getenv("HOST")
	if host == "" {
		return nil, fmt.Errorf("HOST environment variable is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		return nil, fmt.Errorf("PORT environment variable is required")
	}

	dbHost := os.Getenv("POSTGRES_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("POSTGRES_HOST environment variable is required")
	}

	dbPortStr := os.Getenv("POSTGRES_PORT")
	if dbPortStr == "" {
		return nil, fmt.Errorf("POSTGRES_PORT environment variable is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("POSTGRES_PORT must be a valid integer: %w", err)
	}

	dbUser := os.Getenv("POSTGRES_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("POSTGRES_USER environment variable is required")
	}

	dbPass := os.Getenv("POSTGRES_PASSWORD")
	if dbPass == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}

	dbName := os.Getenv("POSTGRES_DB")
	if dbName == "" {
		return nil, fmt.Errorf("POSTGRES_DB environment variable is required")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	authURL := os.Getenv("AUTH_SERVICE_URL")
	if authURL == "" {
		authURL = "http://auth-service-app:8000/tokens/validate"
	}

	return &GlobalConfig{
		LogLevel: logLevel,
		Host:     host,
		Port:     port,
		Database: DatabaseConfig{
			Host:     dbHost,
			Port:     dbPort,
			User:     dbUser,
			Password: dbPass,
			DBName:   dbName,
		},
		AMQPURL:        os.Getenv("AMQP_URL"),
		AuthServiceURL: authURL,
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		DeepSeekAPIKey: os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:  os.Getenv("DEEPSEEK_MODEL"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    os.Getenv("GEMINI_MODEL"),
	}, nil
}

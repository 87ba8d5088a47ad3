package utils

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const DEV_ENV_FILENAME = ".env.development"

// InitEnvironmentVariables loads the development env file. Production
// deployments inject real environment variables and have no .env file.
func InitEnvironmentVariables() error {
	if os.Getenv("ENV") == "production" {
		log.Info("Running in production environment")
		return nil
	}

	if err := godotenv.Load(DEV_ENV_FILENAME); err != nil {
		return fmt.Errorf("failed to load %s file: %v", DEV_ENV_FILENAME, err)
	}

	return nil
}

// Config is every environment value the server needs. All of it is required
// (except the defaulted fields) because the OAuth redirect URIs cannot
// resolve without it; a missing value is fatal at startup, not per request.
type Config struct {
	SlackClientID     string
	SlackClientSecret string
	SlackAppID        string
	PDClientID        string
	SessionSecret     string
	BoltDBPath        string

	// ServerName is the externally visible hostname.
	ServerName string

	Port        string
	WorkerCount int
}

func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable not set", key)
	}

	return value, nil
}

// LoadConfig reads and validates the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:        "3000",
		WorkerCount: 8,
	}

	var err error
	if cfg.SlackClientID, err = requireEnv("SLACK_CLIENT_ID"); err != nil {
		return nil, err
	}

	if cfg.SlackClientSecret, err = requireEnv("SLACK_CLIENT_SECRET"); err != nil {
		return nil, err
	}

	if cfg.SlackAppID, err = requireEnv("SLACK_APP_ID"); err != nil {
		return nil, err
	}

	if cfg.PDClientID, err = requireEnv("PD_CLIENT_ID"); err != nil {
		return nil, err
	}

	if cfg.SessionSecret, err = requireEnv("SESSION_SECRET"); err != nil {
		return nil, err
	}

	if cfg.BoltDBPath, err = requireEnv("BOLT_DB_PATH"); err != nil {
		return nil, err
	}

	if cfg.ServerName, err = requireEnv("SERVER_NAME"); err != nil {
		return nil, err
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if workers := os.Getenv("WORKER_POOL_SIZE"); workers != "" {
		count, err := strconv.Atoi(workers)
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("invalid WORKER_POOL_SIZE: %q", workers)
		}

		cfg.WorkerCount = count
	}

	return cfg, nil
}

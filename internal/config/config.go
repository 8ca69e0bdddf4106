package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Values that must never reach production
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"internal-service-secret":              true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	Panel          PanelConfig
	Encryption     EncryptionConfig
	InternalSecret string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

// PanelConfig controls how the service talks to CentOS WebPanel servers
type PanelConfig struct {
	Timeout time.Duration
	// UsernameAttempts bounds the suffix search when a generated username collides
	UsernameAttempts int
	// CheckAddress is unblocked when checking a server's connection details
	CheckAddress string
}

type EncryptionConfig struct {
	Key string
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8020"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "saas_user"),
			Password: getEnv("DB_PASSWORD", "saas_pass"),
			DBName:   getEnv("DB_NAME", "saas_db"),
			Schema:   getEnv("DB_SCHEMA", "cwp"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Panel: PanelConfig{
			Timeout:          getEnvDuration("PANEL_TIMEOUT", 20*time.Second),
			UsernameAttempts: getEnvInt("PANEL_USERNAME_ATTEMPTS", 10),
			CheckAddress:     getEnv("PANEL_CHECK_ADDRESS", "127.0.0.1"),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		InternalSecret: getEnv("INTERNAL_SECRET", ""),
	}

	// Secrets stay out of the log
	log.Printf("[config] CWP provisioner loaded: port=%s db=%s/%s.%s panel_timeout=%s",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema, cfg.Panel.Timeout)

	return cfg
}

// Validate rejects configurations that are unsafe to run with
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	if len(c.Encryption.Key) < 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be at least 32 characters long")
	}

	if c.Panel.UsernameAttempts < 1 {
		return fmt.Errorf("PANEL_USERNAME_ATTEMPTS must be positive")
	}
	if c.Panel.Timeout <= 0 {
		return fmt.Errorf("PANEL_TIMEOUT must be positive")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

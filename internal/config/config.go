package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the TrainHub server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Trainer  TrainerConfig
	Auth     AuthConfig
	Queue    QueueConfig
}

type ServerConfig struct {
	Port   int
	Env    string
	NodeID int64
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Connection parameters parsed from URL, handed to the training
	// backend so it can write embeddings into the same database.
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	URL string
}

type TrainerConfig struct {
	BaseURL string
}

type AuthConfig struct {
	JWTSecret string
}

type QueueConfig struct {
	MaxFilesPerJob    int
	MaxConcurrentJobs int
	Capacity          int
	UploadDir         string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:   envInt("TRAINHUB_PORT", 8080),
			Env:    envString("TRAINHUB_ENV", "development"),
			NodeID: int64(envInt("TRAINHUB_NODE_ID", 1)),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Trainer: TrainerConfig{
			BaseURL: os.Getenv("TRAINER_BASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Queue: QueueConfig{
			MaxFilesPerJob:    envInt("QUEUE_MAX_FILES_PER_JOB", 5),
			MaxConcurrentJobs: envInt("QUEUE_MAX_CONCURRENT_JOBS", 3),
			Capacity:          envInt("QUEUE_CAPACITY", 100),
			UploadDir:         envString("UPLOAD_DIR", "uploads"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := cfg.Database.parseURL(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Trainer.BaseURL == "" {
		return fmt.Errorf("TRAINER_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Trainer.BaseURL, "http://") && !strings.HasPrefix(c.Trainer.BaseURL, "https://") {
		return fmt.Errorf("TRAINER_BASE_URL must start with http:// or https://, got %q", c.Trainer.BaseURL)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Queue.MaxFilesPerJob < 1 {
		return fmt.Errorf("QUEUE_MAX_FILES_PER_JOB must be at least 1, got %d", c.Queue.MaxFilesPerJob)
	}
	if c.Queue.MaxConcurrentJobs < 1 {
		return fmt.Errorf("QUEUE_MAX_CONCURRENT_JOBS must be at least 1, got %d", c.Queue.MaxConcurrentJobs)
	}

	if c.Server.NodeID < 0 || c.Server.NodeID > 1023 {
		return fmt.Errorf("TRAINHUB_NODE_ID must be between 0 and 1023, got %d", c.Server.NodeID)
	}

	return nil
}

// parseURL extracts host, port, user, password, and database name from the
// connection URL so they can be forwarded to the training backend.
func (d *DatabaseConfig) parseURL() error {
	u, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}

	d.Host = u.Hostname()
	d.Port = 5432
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("parse DATABASE_URL port: %w", err)
		}
		d.Port = port
	}
	if u.User != nil {
		d.User = u.User.Username()
		d.Password, _ = u.User.Password()
	}
	d.Name = strings.TrimPrefix(u.Path, "/")

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// --- File: tokensyncservice/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreSQLite    = "sqlite"
	StoreRedis     = "redis"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

const defaultBackendTimeout = 30 * time.Second

type BackendConfig struct {
	URL     string
	AnonKey string
	Timeout time.Duration
}

type StoreConfig struct {
	Driver         string
	SQLitePath     string
	InstallationID string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type FirebaseConfig struct {
	ProbeEnabled    bool
	CredentialsFile string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID  string
	ListenAddr string
	Platform   string
	AppVersion string

	Backend  BackendConfig
	Store    StoreConfig
	Redis    RedisConfig
	Firebase FirebaseConfig

	CorsConfig middleware.CorsConfig

	// Provider events arrive on SubscriptionID (attached to TopicID).
	// An empty SubscriptionID runs the service without the event pipeline.
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	TokenRequestTopicID    string
	NumPipelineWorkers     int
	PubsubConsumerConfig   *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	override := func(key string, target *string) {
		if val := os.Getenv(key); val != "" {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*target = val
		}
	}

	override("PROJECT_ID", &cfg.ProjectID)
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	override("PLATFORM", &cfg.Platform)
	override("APP_VERSION", &cfg.AppVersion)

	override("BACKEND_URL", &cfg.Backend.URL)
	override("BACKEND_ANON_KEY", &cfg.Backend.AnonKey)
	if val := os.Getenv("BACKEND_TIMEOUT_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			logger.Debug("Overriding config value", "key", "BACKEND_TIMEOUT_SECONDS", "source", "env")
			cfg.Backend.Timeout = time.Duration(secs) * time.Second
		}
	}

	override("STORE_DRIVER", &cfg.Store.Driver)
	override("SQLITE_PATH", &cfg.Store.SQLitePath)
	override("INSTALLATION_ID", &cfg.Store.InstallationID)

	override("TOPIC_ID", &cfg.TopicID)
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	override("SUBSCRIPTION_DLQ_TOPIC_ID", &cfg.SubscriptionDLQTopicID)
	override("TOKEN_REQUEST_TOPIC_ID", &cfg.TokenRequestTopicID)
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis Overrides
	override("REDIS_ADDR", &cfg.Redis.Addr)
	override("REDIS_PASSWORD", &cfg.Redis.Password)
	override("REDIS_PREFIX", &cfg.Redis.Prefix)
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}

	// Firebase Overrides
	override("FIREBASE_CREDENTIALS_FILE", &cfg.Firebase.CredentialsFile)
	if val := os.Getenv("FCM_PROBE_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Firebase.ProbeEnabled = enabled
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend url is required (set via YAML or BACKEND_URL env var)")
	}
	if cfg.Backend.AnonKey == "" {
		return nil, fmt.Errorf("backend anon key is required (set via YAML or BACKEND_ANON_KEY env var)")
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreSQLite
	}
	switch cfg.Store.Driver {
	case StoreSQLite, StoreMemory, StoreFirestore:
	case StoreRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis addr is required for the redis store (set REDIS_ADDR)")
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	needsProject := cfg.Store.Driver == StoreFirestore ||
		cfg.SubscriptionID != "" ||
		cfg.TokenRequestTopicID != "" ||
		cfg.Firebase.ProbeEnabled
	if needsProject && cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Platform == "" {
		cfg.Platform = "android"
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = defaultBackendTimeout
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "tokensync.db"
	}
	if cfg.Store.InstallationID == "" {
		cfg.Store.InstallationID = "default"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

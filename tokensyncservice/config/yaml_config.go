// --- File: tokensyncservice/config/yaml_config.go ---
package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlBackendConfig struct {
	URL            string `yaml:"url"`
	AnonKey        string `yaml:"anon_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type YamlStoreConfig struct {
	Driver         string `yaml:"driver"`
	SQLitePath     string `yaml:"sqlite_path"`
	InstallationID string `yaml:"installation_id"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type YamlFirebaseConfig struct {
	ProbeEnabled    bool   `yaml:"probe_enabled"`
	CredentialsFile string `yaml:"credentials_file"`
}

// YamlConfig is the structure that mirrors the raw local.yaml file.
type YamlConfig struct {
	ProjectID              string             `yaml:"project_id"`
	ListenAddr             string             `yaml:"listen_addr"`
	Platform               string             `yaml:"platform"`
	AppVersion             string             `yaml:"app_version"`
	TopicID                string             `yaml:"topic_id"`
	SubscriptionID         string             `yaml:"subscription_id"`
	SubscriptionDLQTopicID string             `yaml:"subscription_dlq_topic_id"`
	TokenRequestTopicID    string             `yaml:"token_request_topic_id"`
	NumPipelineWorkers     int                `yaml:"num_pipeline_workers"`
	BackendConfig          YamlBackendConfig  `yaml:"backend"`
	StoreConfig            YamlStoreConfig    `yaml:"store"`
	RedisConfig            YamlRedisConfig    `yaml:"redis"`
	FirebaseConfig         YamlFirebaseConfig `yaml:"firebase"`
	CorsConfig             YamlCorsConfig     `yaml:"cors"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:  baseCfg.ProjectID,
		ListenAddr: baseCfg.ListenAddr,
		Platform:   baseCfg.Platform,
		AppVersion: baseCfg.AppVersion,
		Backend: BackendConfig{
			URL:     baseCfg.BackendConfig.URL,
			AnonKey: baseCfg.BackendConfig.AnonKey,
			Timeout: time.Duration(baseCfg.BackendConfig.TimeoutSeconds) * time.Second,
		},
		Store: StoreConfig{
			Driver:         baseCfg.StoreConfig.Driver,
			SQLitePath:     baseCfg.StoreConfig.SQLitePath,
			InstallationID: baseCfg.StoreConfig.InstallationID,
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Prefix:   baseCfg.RedisConfig.Prefix,
		},
		Firebase: FirebaseConfig{
			ProbeEnabled:    baseCfg.FirebaseConfig.ProbeEnabled,
			CredentialsFile: baseCfg.FirebaseConfig.CredentialsFile,
		},
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		TokenRequestTopicID:    baseCfg.TokenRequestTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"store_driver", cfg.Store.Driver,
		"subscription_id", cfg.SubscriptionID,
	)

	return cfg, nil
}

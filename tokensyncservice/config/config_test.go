// --- File: tokensyncservice/config/config_test.go ---
package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-token-sync/tokensyncservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:          "base-project",
			ListenAddr:         ":8080",
			SubscriptionID:     "base-sub",
			NumPipelineWorkers: 2,
			Backend: config.BackendConfig{
				URL:     "https://base.supabase.co",
				AnonKey: "base-anon",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("PLATFORM", "ios")
		t.Setenv("APP_VERSION", "3.0.0")
		t.Setenv("BACKEND_URL", "https://env.supabase.co")
		t.Setenv("BACKEND_ANON_KEY", "env-anon")
		t.Setenv("BACKEND_TIMEOUT_SECONDS", "5")
		t.Setenv("STORE_DRIVER", "redis")
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("REDIS_DB", "3")
		t.Setenv("INSTALLATION_ID", "device-42")
		t.Setenv("TOKEN_REQUEST_TOPIC_ID", "env-requests")
		t.Setenv("NUM_PIPELINE_WORKERS", "4")
		t.Setenv("FCM_PROBE_ENABLED", "true")
		t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.com, http://b.com,")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.Equal(t, "env-sub", finalCfg.PubsubConsumerConfig.SubscriptionID)
		assert.Equal(t, "ios", finalCfg.Platform)
		assert.Equal(t, "3.0.0", finalCfg.AppVersion)
		assert.Equal(t, config.BackendConfig{URL: "https://env.supabase.co", AnonKey: "env-anon", Timeout: 5 * time.Second}, finalCfg.Backend)
		assert.Equal(t, config.StoreRedis, finalCfg.Store.Driver)
		assert.Equal(t, "redis:6379", finalCfg.Redis.Addr)
		assert.Equal(t, 3, finalCfg.Redis.DB)
		assert.Equal(t, "device-42", finalCfg.Store.InstallationID)
		assert.Equal(t, "env-requests", finalCfg.TokenRequestTopicID)
		assert.Equal(t, 4, finalCfg.NumPipelineWorkers)
		assert.True(t, finalCfg.Firebase.ProbeEnabled)
		assert.Equal(t, []string{"http://a.com", "http://b.com"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Success - Defaults applied", func(t *testing.T) {
		cfg := &config.Config{
			Backend: config.BackendConfig{URL: "https://base.supabase.co", AnonKey: "base-anon"},
		}
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, ":8080", finalCfg.ListenAddr)
		assert.Equal(t, "android", finalCfg.Platform)
		assert.Equal(t, 30*time.Second, finalCfg.Backend.Timeout)
		assert.Equal(t, config.StoreSQLite, finalCfg.Store.Driver)
		assert.Equal(t, "tokensync.db", finalCfg.Store.SQLitePath)
		assert.Equal(t, "default", finalCfg.Store.InstallationID)
		assert.Equal(t, 1, finalCfg.NumPipelineWorkers)
		assert.Nil(t, finalCfg.PubsubConsumerConfig)
	})

	t.Run("Validation Failure - Missing Backend", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Backend.AnonKey = ""
		t.Setenv("BACKEND_ANON_KEY", "")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "anon key")

		cfg = baseConfig()
		cfg.Backend.URL = ""
		t.Setenv("BACKEND_URL", "")
		_, err = config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "backend url")
	})

	t.Run("Validation Failure - Missing ProjectID with subscription", func(t *testing.T) {
		cfg := baseConfig()
		cfg.ProjectID = ""
		t.Setenv("PROJECT_ID", "")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "project_id")
	})

	t.Run("Validation Failure - Unknown store driver", func(t *testing.T) {
		cfg := baseConfig()
		t.Setenv("STORE_DRIVER", "etcd")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "unknown store driver")
	})

	t.Run("Validation Failure - Redis without address", func(t *testing.T) {
		cfg := baseConfig()
		t.Setenv("STORE_DRIVER", "redis")
		t.Setenv("REDIS_ADDR", "")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "redis addr")
	})
}

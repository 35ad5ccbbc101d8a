// --- File: cmd/tokensyncd/runtokensyncd.go ---
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	firebase "firebase.google.com/go/v4"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-token-sync/internal/platform/fcm"
	"github.com/tinywideclouds/go-token-sync/internal/platform/provider"
	"github.com/tinywideclouds/go-token-sync/internal/syncclient"

	"github.com/tinywideclouds/go-token-sync/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-token-sync/internal/storage/firestore"
	"github.com/tinywideclouds/go-token-sync/internal/storage/memory"
	"github.com/tinywideclouds/go-token-sync/internal/storage/sqlstore"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"

	"github.com/tinywideclouds/go-token-sync/tokensyncservice"
	"github.com/tinywideclouds/go-token-sync/tokensyncservice/config"

	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-token-sync")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Local Token Store ---
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Token store failed", "driver", cfg.Store.Driver, "err", err)
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("Token store initialized", "driver", cfg.Store.Driver, "installation", cfg.Store.InstallationID)

	// --- Backend ---
	backend := syncclient.New(syncclient.Config{
		BaseURL:    cfg.Backend.URL,
		AnonKey:    cfg.Backend.AnonKey,
		Platform:   cfg.Platform,
		AppVersion: cfg.AppVersion,
		Timeout:    cfg.Backend.Timeout,
	}, logger)

	deps := tokensyncservice.Dependencies{Store: store, Backend: backend}

	// --- Pub/Sub: provider events in, token requests out ---
	if cfg.SubscriptionID != "" || cfg.TokenRequestTopicID != "" {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("PubSub client failed", "err", err)
			os.Exit(1)
		}
		defer psClient.Close()

		if cfg.SubscriptionID != "" {
			consumer, err := newProviderEventConsumer(ctx, cfg, psClient, logger)
			if err != nil {
				logger.Error("Provider event consumer failed", "err", err)
				os.Exit(1)
			}
			deps.Consumer = consumer
		}
		if cfg.TokenRequestTopicID != "" {
			tokenRequests := provider.NewPubsubProvider(psClient, cfg.TokenRequestTopicID, cfg.Platform, logger)
			defer tokenRequests.Stop()
			deps.Provider = tokenRequests
		}
	}
	if deps.Provider == nil {
		logger.Warn("No token request topic configured; logins without a cached token wait for the next provider event")
	}

	// --- FCM probe ---
	if cfg.Firebase.ProbeEnabled {
		var opts []option.ClientOption
		if cfg.Firebase.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
		}
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
		if err != nil {
			logger.Error("Failed to initialize Firebase App", "err", err)
			os.Exit(1)
		}
		fcmMessaging, err := fbApp.Messaging(ctx)
		if err != nil {
			logger.Error("Failed to create FCM messaging client", "err", err)
			os.Exit(1)
		}
		deps.Prober = fcm.NewProber(fcmMessaging, logger)
	}

	service, err := tokensyncservice.New(cfg, deps, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		errCh <- service.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown incomplete", "err", err)
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (tokensync.LocalStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreSQLite:
		s, err := sqlstore.Open(cfg.Store.SQLitePath, cfg.Store.InstallationID)
		if err != nil {
			return nil, nil, err
		}
		return s, closeQuietly(s, logger), nil

	case config.StoreRedis:
		logger.Info("Connecting to Redis...", "addr", cfg.Redis.Addr)
		client, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = "tokensync:" + cfg.Store.InstallationID
		}
		return cache.NewRedisTokenStore(client, prefix), closeQuietly(client, logger), nil

	case config.StoreFirestore:
		client, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		return fsStore.NewFirestoreStore(client, cfg.Store.InstallationID), closeQuietly(client, logger), nil

	case config.StoreMemory:
		logger.Warn("Using in-memory token store; state is lost on restart")
		return memory.NewStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func closeQuietly(c io.Closer, logger *slog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn("Close failed", "err", err)
		}
	}
}

func newProviderEventConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.PubsubConsumerConfig.SubscriptionID, "subscriptions")

	if cfg.TopicID != "" {
		subConfig := &pubsubpb.Subscription{
			Name:                  sub,
			Topic:                 convertPubsub(cfg.ProjectID, cfg.TopicID, "topics"),
			AckDeadlineSeconds:    10,
			EnableMessageOrdering: false,
		}
		if cfg.SubscriptionDLQTopicID != "" {
			subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
				DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics"),
				MaxDeliveryAttempts: 5,
			}
		}
		logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
		_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
			} else {
				logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
				return nil, fmt.Errorf("could not create sub: %s", sub)
			}
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(sub), psClient, logger,
	)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}

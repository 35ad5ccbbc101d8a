// --- File: tokensyncservice/service.go ---
package tokensyncservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-token-sync/internal/api"
	"github.com/tinywideclouds/go-token-sync/internal/bridge"
	"github.com/tinywideclouds/go-token-sync/internal/coordinator"
	"github.com/tinywideclouds/go-token-sync/internal/pipeline"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
	"github.com/tinywideclouds/go-token-sync/tokensyncservice/config"
)

// Backend is the device table the agent writes to.
type Backend interface {
	tokensync.Uploader
	tokensync.Remover
}

// Dependencies are the collaborators chosen at composition time.
// Consumer, Provider, Prober and LoginHandler may be nil.
type Dependencies struct {
	Consumer     messagepipeline.MessageConsumer
	Store        tokensync.LocalStore
	Backend      Backend
	Provider     tokensync.TokenProvider
	Prober       api.TokenProber
	LoginHandler tokensync.LoginResultHandler
}

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[tokensync.ProviderEvent]
	coordinator     *coordinator.Coordinator
	bridge          *bridge.Bridge
	runner          *coordinator.BackgroundRunner
	logger          *slog.Logger
}

// New assembles the service.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Wrapper, error) {
	if deps.Store == nil || deps.Backend == nil {
		return nil, fmt.Errorf("store and backend are required")
	}

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Lifecycle
	runner := coordinator.NewBackgroundRunner()
	coord := coordinator.New(deps.Store, deps.Backend, deps.Provider, runner, logger)

	opts := []bridge.Option{bridge.WithRemover(deps.Backend, runner)}
	if deps.LoginHandler != nil {
		opts = append(opts, bridge.WithLoginResultHandler(deps.LoginHandler))
	}
	b := bridge.New(coord, deps.Store, logger, opts...)

	// 3. Pipeline (optional)
	var streamingService *messagepipeline.StreamingService[tokensync.ProviderEvent]
	if deps.Consumer != nil {
		var err error
		streamingService, err = messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
			deps.Consumer,
			pipeline.ProviderEventTransformer,
			pipeline.NewProcessor(coord, logger),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
	} else {
		logger.Info("No provider-event consumer configured; tokens arrive through the bridge only")
	}

	// 4. API
	bridgeAPI := api.NewBridgeAPI(b, deps.Prober, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(handlerFunc))
	}

	handle("POST /api/v1/bridge/sync-token-after-login", bridgeAPI.SyncTokenAfterLogin)
	handle("POST /api/v1/bridge/logged-out", bridgeAPI.NotifyLoggedOut)
	handle("GET /api/v1/bridge/current-token", bridgeAPI.GetCurrentToken)
	handle("POST /api/v1/bridge/remove-token", bridgeAPI.RemoveToken)
	handle("POST /api/v1/bridge/login-result", bridgeAPI.DeliverLoginResult)
	if deps.Prober != nil {
		handle("GET /api/v1/bridge/probe-token", bridgeAPI.ProbeToken)
	}

	// CORS preflight for the API namespace
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		coordinator:     coord,
		bridge:          b,
		runner:          runner,
		logger:          logger,
	}, nil
}

// Bridge is the in-process surface for an embedding application.
func (w *Wrapper) Bridge() *bridge.Bridge {
	return w.bridge
}

// Coordinator accepts provider events from an in-process SDK adapter.
func (w *Wrapper) Coordinator() *coordinator.Coordinator {
	return w.coordinator
}

func (w *Wrapper) Start(ctx context.Context) error {
	if w.pipelineService != nil {
		w.logger.Info("Provider event pipeline starting...")
		if err := w.pipelineService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start processing service: %w", err)
		}
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

// Shutdown stops intake first, then waits for in-flight uploads until ctx expires.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if w.pipelineService != nil {
		if err := w.pipelineService.Stop(ctx); err != nil {
			w.logger.Error("Processing pipeline shutdown failed.", "err", err)
			finalErr = err
		}
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}

	drained := make(chan struct{})
	go func() {
		w.runner.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		w.logger.Warn("Uploads still in flight at shutdown deadline")
		if finalErr == nil {
			finalErr = ctx.Err()
		}
	}

	w.logger.Info("Service shutdown complete.")
	return finalErr
}

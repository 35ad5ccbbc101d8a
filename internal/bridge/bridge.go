// Package bridge exposes the lifecycle operations to the embedding application.
// Every operation resolves with a result value or rejects with an error; none
// of them waits on the network.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-token-sync/internal/coordinator"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

const syncStartedMessage = "Token sync started"

// Lifecycle is the part of the coordinator the bridge drives.
type Lifecycle interface {
	UserLoggedIn(ctx context.Context, userID, accessToken string) error
	UserLoggedOut(ctx context.Context) error
}

type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type LogoutResult struct {
	Success bool `json:"success"`
}

// CurrentToken reports the cached token. Token is nil when nothing is cached.
type CurrentToken struct {
	Token    *string `json:"token"`
	HasToken bool    `json:"hasToken"`
}

type RemoveResult struct {
	Success bool `json:"success"`
}

type Bridge struct {
	lifecycle    Lifecycle
	store        tokensync.LocalStore
	remover      tokensync.Remover
	runner       coordinator.TaskRunner
	loginHandler tokensync.LoginResultHandler
	logger       *slog.Logger
}

type Option func(*Bridge)

// WithRemover enables RemoveToken. Removals run on runner.
func WithRemover(remover tokensync.Remover, runner coordinator.TaskRunner) Option {
	return func(b *Bridge) {
		b.remover = remover
		b.runner = runner
	}
}

// WithLoginResultHandler installs the optional login capability.
func WithLoginResultHandler(h tokensync.LoginResultHandler) Option {
	return func(b *Bridge) { b.loginHandler = h }
}

func New(lifecycle Lifecycle, store tokensync.LocalStore, logger *slog.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		lifecycle: lifecycle,
		store:     store,
		logger:    logger.With("component", "Bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SyncTokenAfterLogin records the session and starts the upload in the background.
// An empty userID rejects with tokensync.ErrInvalidArgument and changes nothing.
func (b *Bridge) SyncTokenAfterLogin(ctx context.Context, userID, accessToken string) (SyncResult, error) {
	if userID == "" {
		return SyncResult{}, fmt.Errorf("userId is required: %w", tokensync.ErrInvalidArgument)
	}
	if err := b.lifecycle.UserLoggedIn(ctx, userID, accessToken); err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Success: true, Message: syncStartedMessage}, nil
}

// NotifyLoggedOut always resolves. A store failure is logged and reported as success=false.
func (b *Bridge) NotifyLoggedOut(ctx context.Context) LogoutResult {
	if err := b.lifecycle.UserLoggedOut(ctx); err != nil {
		b.logger.Error("Logout could not clear the session", "err", err)
		return LogoutResult{Success: false}
	}
	return LogoutResult{Success: true}
}

func (b *Bridge) GetCurrentToken(ctx context.Context) (CurrentToken, error) {
	tok, found, err := b.store.Token(ctx)
	if err != nil {
		return CurrentToken{}, fmt.Errorf("failed to read cached token: %w", err)
	}
	if !found {
		return CurrentToken{HasToken: false}, nil
	}
	value := tok.Value
	return CurrentToken{Token: &value, HasToken: true}, nil
}

// RemoveToken schedules deletion of the backend row for the current user and
// cached token. It resolves success=false when there is nothing to remove.
// The local token is kept.
func (b *Bridge) RemoveToken(ctx context.Context) RemoveResult {
	if b.remover == nil {
		b.logger.Debug("Token removal not configured")
		return RemoveResult{Success: false}
	}

	session, err := b.store.Session(ctx)
	if err != nil {
		b.logger.Error("Failed to read session for removal", "err", err)
		return RemoveResult{Success: false}
	}
	tok, found, err := b.store.Token(ctx)
	if err != nil {
		b.logger.Error("Failed to read token for removal", "err", err)
		return RemoveResult{Success: false}
	}
	if !session.Present() || !found {
		return RemoveResult{Success: false}
	}

	value := tok.Value
	b.runner.Go(func(ctx context.Context) {
		log := b.logger.With("user_id", session.UserID, "token", tokensync.Redact(value))
		if err := b.remover.Remove(ctx, session, value); err != nil {
			var ue *tokensync.UploadError
			if errors.As(err, &ue) && ue.Kind == tokensync.Rejected {
				log.Error("Backend rejected token removal", "status", ue.StatusCode, "body", ue.Body)
				return
			}
			log.Warn("Token removal failed", "err", err)
		}
	})
	return RemoveResult{Success: true}
}

// DeliverLoginResult forwards an activity result to the login capability, if
// one is installed. Absence and failure are both silent to the caller.
func (b *Bridge) DeliverLoginResult(ctx context.Context, requestCode int, payload map[string]string) {
	if b.loginHandler == nil {
		b.logger.Debug("No login capability installed; dropping result", "request_code", requestCode)
		return
	}
	if err := b.loginHandler.HandleLoginResult(ctx, requestCode, payload); err != nil {
		b.logger.Warn("Login capability failed to handle result", "request_code", requestCode, "err", err)
	}
}

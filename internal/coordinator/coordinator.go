// --- File: internal/coordinator/coordinator.go ---
// Package coordinator drives the token lifecycle: it caches issued tokens,
// tracks the session and uploads whenever both are known.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

type Coordinator struct {
	store    tokensync.LocalStore
	uploader tokensync.Uploader
	provider tokensync.TokenProvider
	runner   TaskRunner
	logger   *slog.Logger
}

func New(
	store tokensync.LocalStore,
	uploader tokensync.Uploader,
	provider tokensync.TokenProvider,
	runner TaskRunner,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		store:    store,
		uploader: uploader,
		provider: provider,
		runner:   runner,
		logger:   logger.With("component", "Coordinator"),
	}
}

// TokenIssued caches a provider token as pending and uploads it if a user is logged in.
func (c *Coordinator) TokenIssued(ctx context.Context, token string) error {
	if token == "" {
		c.logger.Warn("Provider issued an empty token; ignoring")
		return nil
	}

	if err := c.store.SetToken(ctx, token, true); err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}
	c.logger.Info("Token cached, pending sync", "token", tokensync.Redact(token))

	session, err := c.store.Session(ctx)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	if !session.Present() {
		c.logger.Info("No session; token will be uploaded after login")
		return nil
	}

	c.scheduleUpload(session, token)
	return nil
}

// UserLoggedIn stores the session and uploads the cached token, or asks the
// provider for one when nothing is cached. Both run on the task runner.
func (c *Coordinator) UserLoggedIn(ctx context.Context, userID, accessToken string) error {
	if userID == "" {
		return fmt.Errorf("user id is required: %w", tokensync.ErrInvalidArgument)
	}

	if err := c.store.SetSession(ctx, userID, accessToken); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	session := tokensync.Session{UserID: userID, AccessToken: accessToken}

	cached, found, err := c.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cached token: %w", err)
	}
	if found {
		c.logger.Info("Cached token found; uploading", "user_id", userID)
		c.scheduleUpload(session, cached.Value)
		return nil
	}

	c.logger.Info("No cached token; requesting a fresh one", "user_id", userID)
	if c.provider == nil {
		c.logger.Warn("No token provider configured; waiting for the next token event")
		return nil
	}
	c.runner.Go(func(ctx context.Context) {
		if err := c.provider.RequestToken(ctx); err != nil {
			c.logger.Error("Token request failed", "err", err)
		}
	})
	return nil
}

// UserLoggedOut forgets the session. The cached token stays for the next login.
func (c *Coordinator) UserLoggedOut(ctx context.Context) error {
	if err := c.store.ClearSession(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	c.logger.Info("Session cleared")
	return nil
}

// MessageReceived records an inbound push message. Display is the host's job.
func (c *Coordinator) MessageReceived(_ context.Context, msg tokensync.IncomingMessage) {
	c.logger.Info("Push message received",
		"message_id", msg.MessageID,
		"from", msg.From,
		"title", msg.Title,
		"data_keys", len(msg.Data),
	)
}

func (c *Coordinator) scheduleUpload(session tokensync.Session, token string) {
	c.runner.Go(func(ctx context.Context) {
		c.upload(ctx, session, token)
	})
}

// upload never returns an error: failures leave the token pending for the next event.
func (c *Coordinator) upload(ctx context.Context, session tokensync.Session, token string) {
	log := c.logger.With("user_id", session.UserID, "token", tokensync.Redact(token))

	err := c.uploader.Upload(ctx, session, token)
	if err != nil {
		var ue *tokensync.UploadError
		switch {
		case errors.As(err, &ue) && ue.Kind == tokensync.Rejected:
			log.Error("Backend rejected token upload", "status", ue.StatusCode, "body", ue.Body)
		case errors.As(err, &ue):
			log.Warn("Token upload failed; will retry on next event", "err", err)
		default:
			log.Error("Token upload failed", "err", err)
		}
		return
	}

	cleared, err := c.store.MarkSynced(ctx, token)
	if err != nil {
		log.Error("Upload confirmed but marking synced failed", "err", err)
		return
	}
	if !cleared {
		// A newer token replaced this one while the upload was in flight.
		log.Info("Upload confirmed for a superseded token")
		return
	}
	log.Info("Token synced")
}

// --- File: internal/platform/fcm/prober.go ---
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	SendDryRun(ctx context.Context, msg *messaging.Message) (string, error)
}

// Prober checks whether FCM still accepts a registration token, without
// delivering anything to the device.
type Prober struct {
	client MessagingClient
	logger *slog.Logger
}

func NewProber(client MessagingClient, logger *slog.Logger) *Prober {
	return &Prober{
		client: client,
		logger: logger.With("component", "FCMProber"),
	}
}

// Probe reports valid=false when FCM rejects the token as unregistered or
// malformed. Any other failure is returned as an error.
func (p *Prober) Probe(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, fmt.Errorf("probe requires a token: %w", tokensync.ErrInvalidArgument)
	}

	msg := &messaging.Message{
		Token: token,
		Data:  map[string]string{"probe": "1"},
	}

	id, err := p.client.SendDryRun(ctx, msg)
	if err != nil {
		if messaging.IsInvalidArgument(err) || messaging.IsRegistrationTokenNotRegistered(err) {
			p.logger.Info("FCM reports token is no longer valid", "err", err)
			return false, nil
		}
		return false, fmt.Errorf("fcm dry run failed: %w", err)
	}

	p.logger.Debug("FCM accepted token", "dry_run_id", id)
	return true, nil
}

// Package firestore implements the LocalStore on Google Cloud Firestore,
// for installations whose local state is mirrored to a managed document store.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

// FirestoreStore keeps one installation in installations/{installationID}.
type FirestoreStore struct {
	client       *firestore.Client
	installation string
}

func NewFirestoreStore(client *firestore.Client, installation string) *FirestoreStore {
	return &FirestoreStore{client: client, installation: installation}
}

// installationRecord is the internal DB representation.
// Both namespaces live in one document and are written independently.
type installationRecord struct {
	Token   *tokenRecord   `firestore:"token,omitempty"`
	Session *sessionRecord `firestore:"session,omitempty"`
}

type tokenRecord struct {
	Value       string    `firestore:"value"`
	PendingSync bool      `firestore:"pending_sync"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

type sessionRecord struct {
	UserID      string    `firestore:"user_id"`
	AccessToken string    `firestore:"access_token"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

func (s *FirestoreStore) Token(ctx context.Context) (tokensync.DeviceToken, bool, error) {
	rec, err := s.read(ctx)
	if err != nil {
		return tokensync.DeviceToken{}, false, err
	}
	if rec.Token == nil || rec.Token.Value == "" {
		return tokensync.DeviceToken{}, false, nil
	}
	return tokensync.DeviceToken{Value: rec.Token.Value, PendingSync: rec.Token.PendingSync}, true, nil
}

func (s *FirestoreStore) SetToken(ctx context.Context, value string, pendingSync bool) error {
	data := map[string]interface{}{
		"token": tokenRecord{Value: value, PendingSync: pendingSync, UpdatedAt: time.Now().UTC()},
	}
	if _, err := s.ref().Set(ctx, data, firestore.Merge([]string{"token"})); err != nil {
		return fmt.Errorf("firestore token write failed: %w", err)
	}
	return nil
}

func (s *FirestoreStore) MarkSynced(ctx context.Context, value string) (bool, error) {
	cleared := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cleared = false
		doc, err := tx.Get(s.ref())
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var rec installationRecord
		if err := doc.DataTo(&rec); err != nil {
			return err
		}
		if rec.Token == nil || rec.Token.Value != value {
			return nil
		}
		cleared = true
		return tx.Update(s.ref(), []firestore.Update{
			{Path: "token.pending_sync", Value: false},
			{Path: "token.updated_at", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return false, fmt.Errorf("firestore mark synced failed: %w", err)
	}
	return cleared, nil
}

func (s *FirestoreStore) Session(ctx context.Context) (tokensync.Session, error) {
	rec, err := s.read(ctx)
	if err != nil {
		return tokensync.Session{}, err
	}
	if rec.Session == nil {
		return tokensync.Session{}, nil
	}
	return tokensync.Session{UserID: rec.Session.UserID, AccessToken: rec.Session.AccessToken}, nil
}

func (s *FirestoreStore) SetSession(ctx context.Context, userID, accessToken string) error {
	data := map[string]interface{}{
		"session": sessionRecord{UserID: userID, AccessToken: accessToken, UpdatedAt: time.Now().UTC()},
	}
	if _, err := s.ref().Set(ctx, data, firestore.Merge([]string{"session"})); err != nil {
		return fmt.Errorf("firestore session write failed: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ClearSession(ctx context.Context) error {
	_, err := s.ref().Update(ctx, []firestore.Update{{Path: "session", Value: firestore.Delete}})
	if status.Code(err) == codes.NotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("firestore session clear failed: %w", err)
	}
	return nil
}

// --- Helpers ---

func (s *FirestoreStore) read(ctx context.Context) (installationRecord, error) {
	var rec installationRecord
	doc, err := s.ref().Get(ctx)
	if status.Code(err) == codes.NotFound {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("firestore read failed: %w", err)
	}
	if err := doc.DataTo(&rec); err != nil {
		return rec, fmt.Errorf("firestore decode failed: %w", err)
	}
	return rec, nil
}

// ref: installations/{installationID}
func (s *FirestoreStore) ref() *firestore.DocumentRef {
	return s.client.Collection("installations").Doc(s.installation)
}

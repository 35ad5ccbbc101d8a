// --- File: pkg/tokensync/interfaces.go ---
package tokensync

import "context"

// LocalStore defines the contract for the device-local token and session state.
// Absence is a valid state: no method returns an error for a missing key.
type LocalStore interface {
	// Token returns the cached push token. found is false when nothing is cached.
	Token(ctx context.Context) (token DeviceToken, found bool, err error)

	// SetToken overwrites the cached token and its pending flag.
	SetToken(ctx context.Context, value string, pendingSync bool) error

	// MarkSynced clears the pending flag, but only if the cached value still
	// equals value. It reports whether the flag was cleared.
	MarkSynced(ctx context.Context, value string) (bool, error)

	// Session returns the stored session, or the zero Session.
	Session(ctx context.Context) (Session, error)

	// SetSession overwrites the stored session.
	SetSession(ctx context.Context, userID, accessToken string) error

	// ClearSession removes both session fields.
	ClearSession(ctx context.Context) error
}

// Uploader pushes a token to the backend device table.
// A nil error means the backend confirmed the write.
type Uploader interface {
	Upload(ctx context.Context, session Session, token string) error
}

// Remover deletes a token row from the backend device table.
type Remover interface {
	Remove(ctx context.Context, session Session, token string) error
}

// TokenProvider asks the push provider for a fresh token.
// The provider answers asynchronously with a TokenIssued event.
type TokenProvider interface {
	RequestToken(ctx context.Context) error
}

// LoginResultHandler is an optional login plugin that consumes activity results.
type LoginResultHandler interface {
	HandleLoginResult(ctx context.Context, requestCode int, payload map[string]string) error
}

// Package tokensync contains the public interfaces and domain models for
// device push-token synchronization.
package tokensync

import (
	"errors"
	"fmt"
)

// DeviceToken is the push token last issued by the provider.
type DeviceToken struct {
	Value       string `json:"token"`
	PendingSync bool   `json:"pending_sync"`
}

// Session is the authenticated user, if any. An empty UserID means no session.
type Session struct {
	UserID      string `json:"user_id,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// Present reports whether a user is logged in.
func (s Session) Present() bool {
	return s.UserID != ""
}

// Redact shortens a token for logs.
func Redact(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}

// ErrInvalidArgument is returned when a required field is missing.
var ErrInvalidArgument = errors.New("invalid argument")

// UploadErrorKind classifies a failed backend call.
type UploadErrorKind int

const (
	// Network covers timeouts, connection failures and unreadable responses.
	Network UploadErrorKind = iota + 1
	// Rejected means the backend answered with a non-2xx status.
	Rejected
)

func (k UploadErrorKind) String() string {
	switch k {
	case Network:
		return "network"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// UploadError is returned by Uploader and Remover implementations.
type UploadError struct {
	Kind       UploadErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Kind == Rejected {
		return fmt.Sprintf("backend rejected request: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err is an UploadError of kind Rejected.
func IsRejected(err error) bool {
	var ue *UploadError
	return errors.As(err, &ue) && ue.Kind == Rejected
}

// IsNetwork reports whether err is an UploadError of kind Network.
func IsNetwork(err error) bool {
	var ue *UploadError
	return errors.As(err, &ue) && ue.Kind == Network
}

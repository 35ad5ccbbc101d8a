// --- File: internal/syncclient/client.go ---
// Package syncclient uploads device push tokens to the backend REST table.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

const (
	devicesPath   = "/rest/v1/client_devices"
	preferUpsert  = "resolution=merge-duplicates,return=representation"
	timestampForm = "2006-01-02T15:04:05.000Z"

	// maxBodyBytes caps how much of an error body is kept for logging.
	maxBodyBytes = 64 << 10
)

// Config holds the backend coordinates and the client identity.
type Config struct {
	BaseURL    string
	AnonKey    string
	Platform   string
	AppVersion string
	Timeout    time.Duration
}

// Client implements tokensync.Uploader and tokensync.Remover over HTTP.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock replaces time.Now, used for the timestamps in the request body.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + devicesPath,
		httpClient: newHTTPClient(cfg.Timeout),
		now:        time.Now,
		logger:     logger.With("component", "SyncClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newHTTPClient bounds connect, handshake, response and overall time by timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   3 * timeout,
	}
}

// syncRequest is the exact wire body of an upsert.
type syncRequest struct {
	UserID     string     `json:"user_id"`
	FCMToken   string     `json:"fcm_token"`
	Platform   string     `json:"platform"`
	DeviceInfo deviceInfo `json:"device_info"`
	UpdatedAt  string     `json:"updated_at"`
}

type deviceInfo struct {
	Timestamp  int64  `json:"timestamp"`
	AppVersion string `json:"app_version"`
}

// Upload upserts token for the session's user. A nil error means the backend confirmed it.
func (c *Client) Upload(ctx context.Context, session tokensync.Session, token string) error {
	if !session.Present() || token == "" {
		return fmt.Errorf("upload requires a user id and a token: %w", tokensync.ErrInvalidArgument)
	}

	now := c.now().UTC()
	body, err := json.Marshal(syncRequest{
		UserID:   session.UserID,
		FCMToken: token,
		Platform: c.cfg.Platform,
		DeviceInfo: deviceInfo{
			Timestamp:  now.UnixMilli(),
			AppVersion: c.cfg.AppVersion,
		},
		UpdatedAt: now.Format(timestampForm),
	})
	if err != nil {
		return &tokensync.UploadError{Kind: tokensync.Network, Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &tokensync.UploadError{Kind: tokensync.Network, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", preferUpsert)
	c.authorize(req, session)

	c.logger.Debug("Uploading device token", "user_id", session.UserID, "token", tokensync.Redact(token), "platform", c.cfg.Platform)
	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	c.logger.Info("Device token registered", "user_id", session.UserID, "response_bytes", len(respBody))
	return nil
}

// Remove deletes the backend row for this user and token.
func (c *Client) Remove(ctx context.Context, session tokensync.Session, token string) error {
	if !session.Present() || token == "" {
		return fmt.Errorf("remove requires a user id and a token: %w", tokensync.ErrInvalidArgument)
	}

	q := url.Values{}
	q.Set("user_id", "eq."+session.UserID)
	q.Set("fcm_token", "eq."+token)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return &tokensync.UploadError{Kind: tokensync.Network, Err: err}
	}
	c.authorize(req, session)

	if _, err := c.do(req); err != nil {
		return err
	}
	c.logger.Info("Device token removed", "user_id", session.UserID)
	return nil
}

// authorize always sends the anon key; the bearer credential is added on top when present.
func (c *Client) authorize(req *http.Request, session tokensync.Session) {
	req.Header.Set("apikey", c.cfg.AnonKey)
	if session.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &tokensync.UploadError{Kind: tokensync.Network, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &tokensync.UploadError{Kind: tokensync.Network, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &tokensync.UploadError{
			Kind:       tokensync.Rejected,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return body, nil
}

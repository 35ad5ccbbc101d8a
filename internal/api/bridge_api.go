package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	"github.com/tinywideclouds/go-token-sync/internal/bridge"
	"github.com/tinywideclouds/go-token-sync/pkg/tokensync"
)

// TokenProber reports whether the push provider still accepts a token.
type TokenProber interface {
	Probe(ctx context.Context, token string) (bool, error)
}

type BridgeAPI struct {
	Bridge *bridge.Bridge
	Prober TokenProber
	Logger *slog.Logger
}

func NewBridgeAPI(b *bridge.Bridge, prober TokenProber, logger *slog.Logger) *BridgeAPI {
	return &BridgeAPI{
		Bridge: b,
		Prober: prober,
		Logger: logger.With("component", "BridgeAPI"),
	}
}

type SyncTokenAfterLoginRequest struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken,omitempty"`
}

type LoginResultRequest struct {
	RequestCode int               `json:"requestCode"`
	Payload     map[string]string `json:"payload"`
}

type ProbeResponse struct {
	HasToken bool `json:"hasToken"`
	Valid    bool `json:"valid"`
}

func (api *BridgeAPI) SyncTokenAfterLogin(w http.ResponseWriter, r *http.Request) {
	var req SyncTokenAfterLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := api.Bridge.SyncTokenAfterLogin(r.Context(), req.UserID, req.AccessToken)
	if err != nil {
		if errors.Is(err, tokensync.ErrInvalidArgument) {
			response.WriteJSONError(w, http.StatusBadRequest, "userId is required")
			return
		}
		api.Logger.Error("SyncTokenAfterLogin: store failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// NotifyLoggedOut accepts an empty or absent body.
func (api *BridgeAPI) NotifyLoggedOut(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Bridge.NotifyLoggedOut(r.Context()))
}

func (api *BridgeAPI) GetCurrentToken(w http.ResponseWriter, r *http.Request) {
	res, err := api.Bridge.GetCurrentToken(r.Context())
	if err != nil {
		api.Logger.Error("GetCurrentToken: store failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (api *BridgeAPI) RemoveToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Bridge.RemoveToken(r.Context()))
}

// DeliverLoginResult never fails once the body parses.
func (api *BridgeAPI) DeliverLoginResult(w http.ResponseWriter, r *http.Request) {
	var req LoginResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	api.Bridge.DeliverLoginResult(r.Context(), req.RequestCode, req.Payload)
	w.WriteHeader(http.StatusNoContent)
}

// ProbeToken asks the provider whether the cached token is still deliverable.
func (api *BridgeAPI) ProbeToken(w http.ResponseWriter, r *http.Request) {
	if api.Prober == nil {
		response.WriteJSONError(w, http.StatusNotImplemented, "probe not configured")
		return
	}

	current, err := api.Bridge.GetCurrentToken(r.Context())
	if err != nil {
		api.Logger.Error("ProbeToken: store failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	if !current.HasToken {
		writeJSON(w, http.StatusOK, ProbeResponse{})
		return
	}

	valid, err := api.Prober.Probe(r.Context(), *current.Token)
	if err != nil {
		api.Logger.Warn("ProbeToken: provider unavailable", "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{HasToken: true, Valid: valid})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

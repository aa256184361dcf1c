package http

import (
	"encoding/json"
	"net/http"

	"github.com/polarisid/polaris/internal/idp/service"
	"github.com/polarisid/polaris/pkg/httpx"
	"github.com/polarisid/polaris/pkg/slogx"
)

// RevokeHandler serves POST /v1/oauth2/revoke following RFC 7009: unknown
// tokens still return 200 so the endpoint cannot be used for token scanning.
type RevokeHandler struct {
	Tokens *service.TokenService
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeServiceError(w, service.ErrInvalidRequest)
		return
	}

	if err := h.Tokens.Revoke(ctx, req.Token); err != nil {
		slogx.FromContext(ctx).Warn("token revocation failed", "err", err)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{})
}

// TokenInfoHandler serves POST /v1/oauth2/tokeninfo, reporting whether a
// token is currently valid and what it is.
type TokenInfoHandler struct {
	Tokens *service.TokenService
}

type tokenInfoResponse struct {
	Active bool   `json:"active"`
	Type   string `json:"token_type,omitempty"`
}

func (h *TokenInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeServiceError(w, service.ErrInvalidRequest)
		return
	}

	valid, err := h.Tokens.IsValid(ctx, req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := tokenInfoResponse{Active: valid}
	if valid {
		if t, err := h.Tokens.Lookup(ctx, req.Token); err == nil {
			resp.Type = string(t.Type)
		}
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

package http

import (
	"encoding/json"
	"net/http"

	"github.com/polarisid/polaris/internal/idp/service"
	"github.com/polarisid/polaris/pkg/httpx"
)

// AuthorizeHandler serves POST /v1/oauth2/authorize for an authenticated
// session user.
type AuthorizeHandler struct {
	Sessions *service.SessionService
	Grant    *service.GrantService
}

type authorizeRequest struct {
	UserID              string `json:"user_id,omitempty"`
	ClientID            string `json:"client_id"`
	ResponseType        string `json:"response_type"`
	Scope               string `json:"scope"`
	RedirectURI         string `json:"redirect_uri"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	Nonce               string `json:"nonce,omitempty"`
	Offline             bool   `json:"offline,omitempty"`
}

func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeServiceError(w, service.ErrInvalidRequest)
		return
	}

	ctx := r.Context()
	_, userID, err := sessionUser(r, h.Sessions, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	user, err := h.Grant.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.Grant.Authorize(ctx, user, service.AuthorizeRequest{
		ClientID:            req.ClientID,
		ResponseType:        req.ResponseType,
		Scope:               req.Scope,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Nonce,
		Offline:             req.Offline,
		IP:                  httpx.ClientIP(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, result)
}

package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/polarisid/polaris/internal/idp/service"
	"github.com/polarisid/polaris/pkg/httpx"
)

// TwoFactorHandler serves the two-factor settings endpoints: toggling the
// requirement and editing credential capability flags. The service refuses
// any change that would lock the user out of their second factor.
type TwoFactorHandler struct {
	Sessions  *service.SessionService
	TwoFactor *service.TwoFactorService
}

type twoFactorRequest struct {
	UserID string `json:"user_id,omitempty"`
}

func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.TwoFactor.Enable)
}

func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.TwoFactor.Disable)
}

func (h *TwoFactorHandler) toggle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID string) error) {
	var req twoFactorRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	_, userID, err := sessionUser(r, h.Sessions, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := fn(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type credentialFlagsRequest struct {
	UserID             string `json:"user_id,omitempty"`
	AllowSingleFactor  bool   `json:"allow_single_factor"`
	AllowTwoFactor     bool   `json:"allow_two_factor"`
	AllowPasswordReset bool   `json:"allow_password_reset"`
}

func (h *TwoFactorHandler) HandleUpdateCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialFlagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeServiceError(w, service.ErrInvalidRequest)
		return
	}

	if _, _, err := sessionUser(r, h.Sessions, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	id := r.PathValue("id")
	err := h.TwoFactor.UpdateCredentialFlags(r.Context(), id, req.AllowSingleFactor, req.AllowTwoFactor, req.AllowPasswordReset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *TwoFactorHandler) HandleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	if _, _, err := sessionUser(r, h.Sessions, ""); err != nil {
		writeServiceError(w, err)
		return
	}

	id := r.PathValue("id")
	if err := h.TwoFactor.RemoveCredential(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

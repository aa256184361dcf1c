package http

import (
	"encoding/json"
	"net/http"

	"github.com/polarisid/polaris/internal/idp/service"
	"github.com/polarisid/polaris/pkg/httpx"
)

// DeviceHandler serves the device-code grant endpoints. Begin and status are
// called by the constrained device itself; approve is called by the user
// from a browser session.
type DeviceHandler struct {
	Sessions *service.SessionService
	Device   *service.DeviceService
}

type deviceBeginRequest struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
}

func (h *DeviceHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	var req deviceBeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeServiceError(w, service.ErrInvalidRequest)
		return
	}

	grant, err := h.Device.Begin(r.Context(), req.ClientID, req.Scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, grant)
}

type deviceApproveRequest struct {
	UserCode string `json:"user_code"`
	UserID   string `json:"user_id,omitempty"`
}

func (h *DeviceHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	var req deviceApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserCode == "" {
		writeServiceError(w, service.ErrInvalidRequest)
		return
	}

	ctx := r.Context()
	_, userID, err := sessionUser(r, h.Sessions, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	user, err := h.Device.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.Device.Approve(ctx, req.UserCode, user); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type deviceStatusRequest struct {
	DeviceCode string `json:"device_code"`
}

func (h *DeviceHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var req deviceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceCode == "" {
		writeServiceError(w, service.ErrInvalidRequest)
		return
	}

	authorized, err := h.Device.Status(r.Context(), req.DeviceCode)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"authorized": authorized})
}

package http

import (
	"encoding/json"
	"net/http"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/service"
	"github.com/polarisid/polaris/pkg/httpx"
)

// SigninHandler serves POST /v1/signin. The request kind is discriminated by
// the "type" field: probe, password, or extended (two_factor/passwordless).
type SigninHandler struct {
	Sessions *service.SessionService
	Signin   *service.SigninService
}

type signinRequest struct {
	Type string `json:"type"`

	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// Extended flow fields.
	Flow     string `json:"flow,omitempty"`
	Method   string `json:"method,omitempty"`
	Response string `json:"challenge_response,omitempty"`
}

type signinResponse struct {
	Success   bool            `json:"success"`
	Profile   *domain.Profile `json:"profile,omitempty"`
	Methods   []domain.Method `json:"methods,omitempty"`
	Challenge string          `json:"challenge,omitempty"`
	ToNext    string          `json:"to_next,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
}

func (h *SigninHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := bearerSession(r, h.Sessions)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeServiceError(w, service.ErrInvalidRequest)
		return
	}

	ctx := r.Context()
	ip := httpx.ClientIP(r)

	switch req.Type {
	case "probe":
		profile, err := h.Signin.Probe(ctx, sess, req.Username)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, signinResponse{Success: true, Profile: profile})

	case "password":
		user, err := h.Signin.PasswordLogin(ctx, sess, req.Username, req.Password, ip)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, signinResponse{Success: true, UserID: user.ID})

	case "two_factor", "passwordless":
		method, ok := domain.ParseMethod(req.Method)
		if req.Method != "" && !ok {
			writeServiceError(w, service.ErrUnsupportedMethod)
			return
		}
		res, err := h.Signin.ExtendedSignin(ctx, sess, service.ExtendedRequest{
			Flow:       domain.SigninFlow(req.Type),
			Identifier: req.Username,
			Method:     method,
			Response:   req.Response,
			IP:         ip,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := signinResponse{Success: res.User != nil, Methods: res.Methods, Challenge: res.Challenge}
		if res.ChallengeSent {
			resp.ToNext = "challenge_response"
		}
		if res.User != nil {
			resp.UserID = res.User.ID
		}
		httpx.WriteJSON(w, http.StatusOK, resp)

	default:
		writeServiceError(w, service.ErrInvalidRequest)
	}
}

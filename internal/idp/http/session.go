package http

import (
	"net/http"
	"strings"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/service"
	"github.com/polarisid/polaris/pkg/httpx"
)

// SessionHandler issues the opaque session tokens every other endpoint
// authenticates with.
type SessionHandler struct {
	Sessions *service.SessionService
}

func (h *SessionHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	token, err := h.Sessions.Issue(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// bearerSession resolves the Authorization header to a live session.
func bearerSession(r *http.Request, sessions *service.SessionService) (domain.Session, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return domain.Session{}, service.ErrUnauthorized
	}
	return sessions.Get(r.Context(), token)
}

// sessionUser returns the session's signed-in user with the given id,
// rejecting callers who never authenticated as them.
func sessionUser(r *http.Request, sessions *service.SessionService, userID string) (domain.Session, string, error) {
	sess, err := bearerSession(r, sessions)
	if err != nil {
		return domain.Session{}, "", err
	}
	if userID == "" {
		// Default to the sole signed-in user when unambiguous.
		if len(sess.UserIDs) != 1 {
			return domain.Session{}, "", service.ErrInvalidRequest
		}
		return sess, sess.UserIDs[0], nil
	}
	if !sess.HasUser(userID) {
		return domain.Session{}, "", service.ErrUnauthorized
	}
	return sess, userID, nil
}

package http

import (
	"errors"
	"net/http"

	"github.com/polarisid/polaris/internal/idp/service"
	"github.com/polarisid/polaris/pkg/httpx"
)

// statusFor maps the service sentinels onto HTTP status codes. The sentinel
// string itself is the wire "error" field.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrMoreThanOneUserMatched),
		errors.Is(err, service.ErrAuthRequestNotMade),
		errors.Is(err, service.ErrNotCurrentMethod),
		errors.Is(err, service.ErrAuthTimeout),
		errors.Is(err, service.ErrUnsupportedScope),
		errors.Is(err, service.ErrScopesNotAuthorized),
		errors.Is(err, service.ErrRedirectURIInvalid),
		errors.Is(err, service.ErrUnsupportedMethod),
		errors.Is(err, service.ErrInvalidGrant):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrWrongUsername),
		errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrSigninFailed),
		errors.Is(err, service.ErrTwoFactorRequired),
		errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrUserActionRequired):
		return http.StatusForbidden

	case errors.Is(err, service.ErrAppNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders a service failure in the OAuth2
// {error, error_description} shape. Unknown errors never leak their message.
func writeServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		httpx.WriteError(w, code, service.ErrInternal.Error(), "")
		return
	}

	// The sentinel is the stable identifier; anything wrapped around it
	// (denied scope names) becomes the description.
	identifier := err.Error()
	description := ""
	for _, sentinel := range knownSentinels {
		if errors.Is(err, sentinel) {
			identifier = sentinel.Error()
			if msg := err.Error(); msg != identifier {
				description = msg
			}
			break
		}
	}
	httpx.WriteError(w, code, identifier, description)
}

var knownSentinels = []error{
	service.ErrInvalidRequest,
	service.ErrWrongUsername,
	service.ErrWrongPassword,
	service.ErrMoreThanOneUserMatched,
	service.ErrTwoFactorRequired,
	service.ErrAuthRequestNotMade,
	service.ErrNotCurrentMethod,
	service.ErrRateLimited,
	service.ErrAuthTimeout,
	service.ErrSigninFailed,
	service.ErrAppNotFound,
	service.ErrUnauthorized,
	service.ErrUnsupportedScope,
	service.ErrScopesNotAuthorized,
	service.ErrRedirectURIInvalid,
	service.ErrUserActionRequired,
	service.ErrUnsupportedMethod,
	service.ErrInvalidGrant,
}

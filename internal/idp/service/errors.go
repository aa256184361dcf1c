package service

import "errors"

// Sentinel errors returned by the core. The strings are stable identifiers
// that callers (and the HTTP layer) match on; never change them.
var (
	ErrInvalidRequest         = errors.New("invalid_request")
	ErrWrongUsername          = errors.New("wrong_username")
	ErrWrongPassword          = errors.New("wrong_password")
	ErrMoreThanOneUserMatched = errors.New("more_than_one_user_matched")
	ErrTwoFactorRequired      = errors.New("two_factor_authentication_required")
	ErrAuthRequestNotMade     = errors.New("authentication_request_not_generated")
	ErrNotCurrentMethod       = errors.New("authentication_not_current_challenge_method")
	ErrRateLimited            = errors.New("authentication_request_rate_limited")
	ErrAuthTimeout            = errors.New("authentication_timeout")
	ErrSigninFailed           = errors.New("signin_failed")
	ErrAppNotFound            = errors.New("application_not_found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrUnsupportedScope       = errors.New("unsupported_scope")
	ErrScopesNotAuthorized    = errors.New("application_not_authorized_scopes")
	ErrRedirectURIInvalid     = errors.New("application_redirect_uri_invalid")
	ErrUserActionRequired     = errors.New("application_user_action_required")
	ErrUnsupportedMethod      = errors.New("unsupported_signin_method")
	ErrInvalidGrant           = errors.New("invalid_grant")
	ErrInternal               = errors.New("internal_server_error")
)

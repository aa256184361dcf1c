package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/polarisid/polaris/internal/idp/audit"
	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/store"
	"github.com/polarisid/polaris/pkg/httpx"
	"github.com/polarisid/polaris/pkg/idx"
	"github.com/polarisid/polaris/pkg/jwtx"
	"github.com/polarisid/polaris/pkg/slogx"
)

// Response types accepted by Authorize.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// ScopeOpenID triggers ID-token issuance on token responses.
const ScopeOpenID = "openid"

// GrantService runs the OAuth2/OIDC authorization pipeline: a fixed sequence
// of preconditions, each failing with its own sentinel, followed by consent
// recording and artifact issuance. Validation always precedes mutation, so a
// failed request writes nothing.
type GrantService struct {
	Store  store.Store
	Tokens *TokenService
	ACL    *ACLEvaluator
	Audit  *audit.Dispatcher

	Signer jwtx.Signer
	Issuer string

	// SkipConsentClients bypass the user-action-required check. First-party
	// applications only.
	SkipConsentClients []string
}

// AuthorizeRequest is one authorization attempt by an authenticated user.
type AuthorizeRequest struct {
	ClientID            string
	ResponseType        string
	Scope               string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	Offline             bool
	IP                  string
}

// AuthorizeResult carries the issued artifact.
type AuthorizeResult struct {
	Code        string `json:"code,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	IDToken     string `json:"id_token,omitempty"`
}

// Authorize validates the request end to end and issues the code or token.
func (s *GrantService) Authorize(ctx context.Context, user domain.User, req AuthorizeRequest) (AuthorizeResult, error) {
	l := slogx.FromContext(ctx)

	if req.ClientID == "" || req.RedirectURI == "" || req.Scope == "" {
		return AuthorizeResult{}, ErrInvalidRequest
	}
	if req.ResponseType != ResponseTypeCode && req.ResponseType != ResponseTypeToken {
		return AuthorizeResult{}, ErrInvalidRequest
	}

	client, err := s.Store.Clients().GetClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthorizeResult{}, ErrAppNotFound
		}
		return AuthorizeResult{}, err
	}

	acl, err := s.ACL.ResolveACL(ctx, client.ACLID)
	if err != nil {
		return AuthorizeResult{}, err
	}
	if !s.ACL.CheckPrincipal(acl, user) {
		return AuthorizeResult{}, ErrUnauthorized
	}

	scopes := httpx.ParseSpaceDelimitedFields(req.Scope)
	var unsupported []string
	for _, name := range scopes {
		if _, err := s.Store.Permissions().GetPermissionByName(ctx, name); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				unsupported = append(unsupported, name)
				continue
			}
			return AuthorizeResult{}, err
		}
	}
	if len(unsupported) > 0 {
		return AuthorizeResult{}, fmt.Errorf("%w: %s", ErrUnsupportedScope, strings.Join(unsupported, " "))
	}

	denied, err := s.ACL.CheckScopes(ctx, acl, scopes)
	if err != nil {
		return AuthorizeResult{}, err
	}
	if len(denied) > 0 {
		return AuthorizeResult{}, fmt.Errorf("%w: %s", ErrScopesNotAuthorized, strings.Join(denied, " "))
	}

	if !redirectURIRegistered(client.RedirectURIs, req.RedirectURI) {
		return AuthorizeResult{}, ErrRedirectURIInvalid
	}

	if !slices.Contains(s.SkipConsentClients, client.ID) {
		covered, err := s.previouslyAuthorized(ctx, user.ID, client.ID, scopes)
		if err != nil {
			return AuthorizeResult{}, err
		}
		if !covered {
			return AuthorizeResult{}, ErrUserActionRequired
		}
	}

	if err := validatePKCE(req.CodeChallenge, req.CodeChallengeMethod); err != nil {
		return AuthorizeResult{}, err
	}

	authorization := domain.Authorization{
		ID:          idx.New().String(),
		UserID:      user.ID,
		ClientID:    client.ID,
		Permissions: scopes,
	}
	if err := s.Store.Authorizations().CreateAuthorization(ctx, authorization); err != nil {
		return AuthorizeResult{}, err
	}

	result, err := s.issueArtifact(ctx, user, authorization, scopes, req)
	if err != nil {
		return AuthorizeResult{}, err
	}

	s.Audit.Record(audit.Event{
		Kind:     audit.KindAuthorize,
		UserID:   user.ID,
		ClientID: client.ID,
		IP:       req.IP,
		Success:  true,
		Detail:   map[string]string{"response_type": req.ResponseType},
	})
	l.Info("authorization granted",
		slog.String("client_id", client.ID),
		slog.String("user_id", user.ID),
		slog.String("response_type", req.ResponseType),
	)
	return result, nil
}

func (s *GrantService) issueArtifact(ctx context.Context, user domain.User, authorization domain.Authorization, scopes []string, req AuthorizeRequest) (AuthorizeResult, error) {
	switch req.ResponseType {
	case ResponseTypeCode:
		code, err := s.Tokens.Issue(ctx, authorization.ID, domain.TokenAuthorizationCode, domain.TokenMetadata{
			CodeChallenge:       req.CodeChallenge,
			CodeChallengeMethod: req.CodeChallengeMethod,
			Nonce:               req.Nonce,
			Offline:             req.Offline,
		})
		if err != nil {
			return AuthorizeResult{}, err
		}
		return AuthorizeResult{Code: code}, nil

	case ResponseTypeToken:
		access, err := s.Tokens.Issue(ctx, authorization.ID, domain.TokenAccess, domain.TokenMetadata{})
		if err != nil {
			return AuthorizeResult{}, err
		}
		result := AuthorizeResult{
			AccessToken: access,
			TokenType:   "Bearer",
			ExpiresIn:   int64(s.Tokens.TTLFor(domain.TokenAccess).Seconds()),
		}
		if slices.Contains(scopes, ScopeOpenID) {
			idToken, err := s.signIDToken(user, req.ClientID, req.Nonce, scopes)
			if err != nil {
				return AuthorizeResult{}, err
			}
			result.IDToken = idToken
		}
		return result, nil

	default:
		return AuthorizeResult{}, ErrInvalidRequest
	}
}

func (s *GrantService) signIDToken(user domain.User, clientID, nonce string, scopes []string) (string, error) {
	if s.Signer == nil {
		return "", ErrInternal
	}

	claims := jwtx.NewIDTokenClaims(s.Issuer, user.ID, clientID, nonce, s.Tokens.TTLFor(domain.TokenID), time.Now().UTC())
	if slices.Contains(scopes, "profile") {
		claims.Name = user.Name
		claims.PreferredUsername = user.Username
		claims.Picture = user.ProfileURL
	}
	if slices.Contains(scopes, "email") {
		claims.Email = user.Email
		verified := user.Email != ""
		claims.EmailVerified = &verified
	}
	if slices.Contains(scopes, "phone") {
		claims.PhoneNumber = user.Phone
	}
	return s.Signer.Sign(claims)
}

// previouslyAuthorized reports whether the union of the user's existing
// authorizations for the client already covers every requested scope.
func (s *GrantService) previouslyAuthorized(ctx context.Context, userID, clientID string, scopes []string) (bool, error) {
	auths, err := s.Store.Authorizations().ListAuthorizationsByUserAndClient(ctx, userID, clientID)
	if err != nil {
		return false, err
	}

	granted := make(map[string]struct{})
	for _, a := range auths {
		for _, p := range a.Permissions {
			granted[p] = struct{}{}
		}
	}
	for _, name := range scopes {
		if _, ok := granted[name]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// redirectURIRegistered matches after stripping query and fragment from both
// sides. Anything beyond that (prefix or wildcard matching) is deliberately
// not supported.
func redirectURIRegistered(registered []string, candidate string) bool {
	normalized, ok := normalizeRedirectURI(candidate)
	if !ok {
		return false
	}
	for _, uri := range registered {
		reg, ok := normalizeRedirectURI(uri)
		if ok && reg == normalized {
			return true
		}
	}
	return false
}

func normalizeRedirectURI(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", false
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), true
}

// validatePKCE enforces that challenge and method travel together, the
// method is a known transform, and S256 challenges are valid base64url.
func validatePKCE(challenge, method string) error {
	if challenge == "" && method == "" {
		return nil
	}
	if challenge == "" || method == "" {
		return ErrInvalidRequest
	}
	switch method {
	case "plain":
		return nil
	case "S256":
		if _, err := base64.RawURLEncoding.DecodeString(challenge); err != nil {
			return ErrInvalidRequest
		}
		return nil
	default:
		return ErrInvalidRequest
	}
}

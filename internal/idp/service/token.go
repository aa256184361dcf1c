package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/store"
	"github.com/polarisid/polaris/pkg/cryptox"
	"github.com/polarisid/polaris/pkg/idx"
	"github.com/polarisid/polaris/pkg/slogx"
)

// TokenTTLs holds the per-type lifetimes. Expiry is computed at validation
// time from IssuedAt, never stored on the token.
type TokenTTLs struct {
	AuthorizationCode time.Duration
	Access            time.Duration
	Refresh           time.Duration
	ID                time.Duration
	DeviceCode        time.Duration
}

// TokenService mints, validates, and revokes the opaque bearer tokens. Only
// SHA-256 fingerprints are persisted; the opaque value exists solely in the
// response to the caller.
type TokenService struct {
	Store store.Store
	TTLs  TokenTTLs
}

// TTLFor returns the configured lifetime for a token type.
func (s *TokenService) TTLFor(typ domain.TokenType) time.Duration {
	switch typ {
	case domain.TokenAuthorizationCode:
		return s.TTLs.AuthorizationCode
	case domain.TokenAccess:
		return s.TTLs.Access
	case domain.TokenRefresh:
		return s.TTLs.Refresh
	case domain.TokenID:
		return s.TTLs.ID
	case domain.TokenDeviceCode:
		return s.TTLs.DeviceCode
	default:
		return 0
	}
}

// Issue mints a new opaque token bound to an authorization and persists its
// fingerprint with the issue time and metadata. The returned string is the
// only copy of the opaque value.
func (s *TokenService) Issue(ctx context.Context, authorizationID string, typ domain.TokenType, md domain.TokenMetadata) (string, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	t := domain.Token{
		ID:              idx.New().String(),
		TokenHash:       cryptox.FingerprintToken(opaque),
		Type:            typ,
		AuthorizationID: authorizationID,
		Metadata:        md,
		IssuedAt:        time.Now().UTC(),
	}
	if err := s.Store.Tokens().CreateToken(ctx, t); err != nil {
		return "", err
	}

	slogx.FromContext(ctx).Debug("token issued",
		slog.String("type", string(typ)),
		slog.String("authorization_id", authorizationID),
	)
	return opaque, nil
}

// IsValid reports whether the token exists and is inside its type's TTL
// window. Unknown tokens are simply invalid, not an error.
func (s *TokenService) IsValid(ctx context.Context, opaque string) (bool, error) {
	t, err := s.Store.Tokens().GetTokenByHash(ctx, cryptox.FingerprintToken(opaque))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return time.Since(t.IssuedAt) <= s.TTLFor(t.Type), nil
}

// Lookup returns the stored record for an opaque token.
func (s *TokenService) Lookup(ctx context.Context, opaque string) (domain.Token, error) {
	return s.Store.Tokens().GetTokenByHash(ctx, cryptox.FingerprintToken(opaque))
}

// Revoke deletes the token record. Revoking an unknown token reports
// ErrInvalidGrant so callers can tell it apart from a successful revocation.
func (s *TokenService) Revoke(ctx context.Context, opaque string) error {
	err := s.Store.Tokens().DeleteToken(ctx, cryptox.FingerprintToken(opaque))
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidGrant
	}
	return err
}

// Consume validates and deletes an authorization code in one transaction so
// a concurrently replayed code cannot be redeemed twice. Expired, missing,
// or wrong-type tokens all fail with ErrInvalidGrant.
func (s *TokenService) Consume(ctx context.Context, opaque string, typ domain.TokenType) (domain.Token, error) {
	hash := cryptox.FingerprintToken(opaque)

	var consumed domain.Token
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.Tokens().GetTokenByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}
		if t.Type != typ {
			return ErrInvalidGrant
		}
		if time.Since(t.IssuedAt) > s.TTLFor(t.Type) {
			return ErrInvalidGrant
		}
		if err := tx.Tokens().DeleteToken(ctx, hash); err != nil {
			return err
		}
		consumed = t
		return nil
	})
	if err != nil {
		return domain.Token{}, err
	}
	return consumed, nil
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/store"
	"github.com/polarisid/polaris/pkg/cryptox"
	"github.com/polarisid/polaris/pkg/idx"
)

// SessionService mints and resolves the opaque session tokens clients hold.
// A session may carry several signed-in users plus the transient
// extended-authentication sub-state.
type SessionService struct {
	Store store.Store
	TTL   time.Duration
}

// Issue creates a fresh empty session and returns its opaque token.
func (s *SessionService) Issue(ctx context.Context) (string, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	sess := domain.Session{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(opaque),
		ExpiresAt: time.Now().UTC().Add(s.TTL),
	}
	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return "", err
	}
	return opaque, nil
}

// Get resolves an opaque session token. Unknown or expired tokens fail with
// ErrUnauthorized.
func (s *SessionService) Get(ctx context.Context, opaque string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(opaque))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrUnauthorized
		}
		return domain.Session{}, err
	}
	if time.Now().After(sess.ExpiresAt) {
		return domain.Session{}, ErrUnauthorized
	}
	return sess, nil
}

// PreviouslyLoggedIn reports whether the user already signed in on this
// session. The probe endpoint uses it to decide whether a profile may be
// returned.
func (s *SessionService) PreviouslyLoggedIn(sess domain.Session, userID string) bool {
	return sess.HasUser(userID)
}

// Mutate re-reads the session inside a transaction, applies fn, and writes it
// back. All sub-state changes go through here so two near-simultaneous
// challenge submissions cannot both observe and clear the same challenge.
func (s *SessionService) Mutate(ctx context.Context, tokenHash string, fn func(sess *domain.Session) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := tx.Sessions().GetSessionByTokenHash(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUnauthorized
			}
			return err
		}
		if err := fn(&sess); err != nil {
			return err
		}
		return tx.Sessions().UpdateSession(ctx, sess)
	})
}

// DeleteExpired removes sessions past their expiry. Called by the
// housekeeping loop.
func (s *SessionService) DeleteExpired(ctx context.Context) error {
	return s.Store.Sessions().DeleteExpiredSessions(ctx, time.Now().UTC())
}

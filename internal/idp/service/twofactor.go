package service

import (
	"context"
	"errors"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/store"
)

// TwoFactorService manages the per-user two-factor requirement and the
// credential capability flags, enforcing the lockout invariant: a user with
// two-factor enabled must always keep at least one credential usable as a
// second factor. Validation runs before any write, so a refused change
// leaves state untouched.
type TwoFactorService struct {
	Store store.Store
}

// Enable turns the two-factor requirement on. Refused when the user has no
// 2FA-capable credential at all.
func (s *TwoFactorService) Enable(ctx context.Context, userID string) error {
	creds, err := s.Store.Credentials().ListCredentialsByUser(ctx, userID)
	if err != nil {
		return err
	}
	if countTwoFactorCapable(creds, "") == 0 {
		return ErrUnsupportedMethod
	}
	return s.Store.Users().SetUseTwoFactor(ctx, userID, true)
}

// Disable clears the requirement. Always allowed.
func (s *TwoFactorService) Disable(ctx context.Context, userID string) error {
	return s.Store.Users().SetUseTwoFactor(ctx, userID, false)
}

// UpdateCredentialFlags replaces a credential's capability flags. When the
// owner requires two-factor, an update that would clear the last two-factor
// capable credential is refused.
func (s *TwoFactorService) UpdateCredentialFlags(ctx context.Context, credentialID string, singleFactor, twoFactor, passwordReset bool) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		cred, err := tx.Credentials().GetCredentialByID(ctx, credentialID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRequest
			}
			return err
		}

		if cred.AllowTwoFactor && !twoFactor {
			if err := s.checkLockout(ctx, tx, cred); err != nil {
				return err
			}
		}
		return tx.Credentials().UpdateCredentialFlags(ctx, credentialID, singleFactor, twoFactor, passwordReset)
	})
}

// RemoveCredential deletes a credential, subject to the same lockout check.
func (s *TwoFactorService) RemoveCredential(ctx context.Context, credentialID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		cred, err := tx.Credentials().GetCredentialByID(ctx, credentialID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRequest
			}
			return err
		}

		if cred.AllowTwoFactor {
			if err := s.checkLockout(ctx, tx, cred); err != nil {
				return err
			}
		}
		return tx.Credentials().DeleteCredential(ctx, credentialID)
	})
}

// checkLockout fails when removing the credential's two-factor capability
// would strand a user who requires two-factor.
func (s *TwoFactorService) checkLockout(ctx context.Context, tx store.Tx, cred domain.Credential) error {
	user, err := tx.Users().GetUserByID(ctx, cred.UserID)
	if err != nil {
		return err
	}
	if !user.UseTwoFactor {
		return nil
	}

	creds, err := tx.Credentials().ListCredentialsByUser(ctx, cred.UserID)
	if err != nil {
		return err
	}
	if countTwoFactorCapable(creds, cred.ID) == 0 {
		return ErrUnsupportedMethod
	}
	return nil
}

// countTwoFactorCapable counts 2FA-capable credentials, skipping the one
// being mutated or removed.
func countTwoFactorCapable(creds []domain.Credential, excludeID string) int {
	n := 0
	for _, c := range creds {
		if c.ID == excludeID {
			continue
		}
		if c.AllowTwoFactor {
			n++
		}
	}
	return n
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/polarisid/polaris/internal/idp/audit"
	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/store"
	"github.com/polarisid/polaris/pkg/cryptox"
	"github.com/polarisid/polaris/pkg/httpx"
	"github.com/polarisid/polaris/pkg/idx"
	"github.com/polarisid/polaris/pkg/slogx"
)

// userCodeDigits is the length of the short code shown on the user's screen.
const userCodeDigits = 8

// DefaultDeviceInterval is the polling interval handed to devices, seconds.
const DefaultDeviceInterval = 5

// DeviceService coordinates the device-code grant: a constrained device
// holds a device-code token while a user approves the matching short code
// from another device.
type DeviceService struct {
	Store  store.Store
	Tokens *TokenService
	ACL    *ACLEvaluator
	Audit  *audit.Dispatcher
}

// DeviceGrant is the response to a device starting the flow.
type DeviceGrant struct {
	DeviceCode string `json:"device_code"`
	UserCode   string `json:"user_code"`
	ExpiresIn  int64  `json:"expires_in"`
	Interval   int    `json:"interval"`
}

// Begin creates a pending authorization and mints the device-code token pair.
func (s *DeviceService) Begin(ctx context.Context, clientID, scope string) (DeviceGrant, error) {
	if clientID == "" {
		return DeviceGrant{}, ErrInvalidRequest
	}
	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DeviceGrant{}, ErrAppNotFound
		}
		return DeviceGrant{}, err
	}

	userCode, err := cryptox.GenerateNumericCode(userCodeDigits)
	if err != nil {
		return DeviceGrant{}, err
	}

	// The authorization stays unowned until a user approves the code.
	authorization := domain.Authorization{
		ID:          idx.New().String(),
		ClientID:    client.ID,
		Permissions: httpx.ParseSpaceDelimitedFields(scope),
	}
	if err := s.Store.Authorizations().CreateAuthorization(ctx, authorization); err != nil {
		return DeviceGrant{}, err
	}

	deviceCode, err := s.Tokens.Issue(ctx, authorization.ID, domain.TokenDeviceCode, domain.TokenMetadata{
		Device: &domain.DeviceMetadata{
			UserCode: userCode,
			Interval: DefaultDeviceInterval,
		},
	})
	if err != nil {
		return DeviceGrant{}, err
	}

	return DeviceGrant{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		ExpiresIn:  int64(s.Tokens.TTLFor(domain.TokenDeviceCode).Seconds()),
		Interval:   DefaultDeviceInterval,
	}, nil
}

// Approve binds the approving user to the pending authorization behind the
// short code and flips the authorized flag. A second approval of the same
// code succeeds again rather than erroring; re-attachment is harmless.
func (s *DeviceService) Approve(ctx context.Context, userCode string, user domain.User) error {
	token, err := s.findByUserCode(ctx, userCode)
	if err != nil {
		return err
	}

	authorization, err := s.Store.Authorizations().GetAuthorizationByID(ctx, token.AuthorizationID)
	if err != nil {
		return err
	}
	client, err := s.Store.Clients().GetClientByID(ctx, authorization.ClientID)
	if err != nil {
		return err
	}
	acl, err := s.ACL.ResolveACL(ctx, client.ACLID)
	if err != nil {
		return err
	}
	if !s.ACL.CheckPrincipal(acl, user) {
		return ErrUnauthorized
	}

	if err := s.Store.Authorizations().AttachUser(ctx, authorization.ID, user.ID); err != nil {
		return err
	}

	md := token.Metadata
	md.Device.IsAuthorized = true
	if err := s.Store.Tokens().UpdateTokenMetadata(ctx, token.ID, md); err != nil {
		return err
	}

	s.Audit.Record(audit.Event{
		Kind:     audit.KindDeviceApprove,
		UserID:   user.ID,
		ClientID: client.ID,
		Success:  true,
	})
	slogx.FromContext(ctx).Info("device code approved",
		slog.String("user_id", user.ID),
		slog.String("client_id", client.ID),
	)
	return nil
}

// Status reports whether the device code has been approved. Polling only
// reads; the flag is flipped exclusively by Approve.
func (s *DeviceService) Status(ctx context.Context, deviceCode string) (bool, error) {
	token, err := s.Tokens.Lookup(ctx, deviceCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrInvalidGrant
		}
		return false, err
	}
	if token.Type != domain.TokenDeviceCode || token.Metadata.Device == nil {
		return false, ErrInvalidGrant
	}
	if time.Since(token.IssuedAt) > s.Tokens.TTLFor(domain.TokenDeviceCode) {
		return false, ErrInvalidGrant
	}
	return token.Metadata.Device.IsAuthorized, nil
}

// findByUserCode scans device-code tokens still inside their TTL window for
// the user-facing code.
func (s *DeviceService) findByUserCode(ctx context.Context, userCode string) (domain.Token, error) {
	cutoff := time.Now().UTC().Add(-s.Tokens.TTLFor(domain.TokenDeviceCode))
	tokens, err := s.Store.Tokens().ListTokensByTypeIssuedAfter(ctx, domain.TokenDeviceCode, cutoff)
	if err != nil {
		return domain.Token{}, err
	}
	for _, t := range tokens {
		if t.Metadata.Device != nil && t.Metadata.Device.UserCode == userCode {
			return t, nil
		}
	}
	return domain.Token{}, ErrInvalidRequest
}

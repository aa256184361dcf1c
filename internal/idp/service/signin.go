package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polarisid/polaris/internal/idp/audit"
	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/notify"
	"github.com/polarisid/polaris/internal/idp/store"
	"github.com/polarisid/polaris/pkg/cryptox"
	"github.com/polarisid/polaris/pkg/slogx"
)

// SigninService orchestrates the multi-step sign-in state machine: username
// probe, password login, and the extended two-factor/passwordless flows that
// delegate to the challenge engine.
type SigninService struct {
	Store    store.Store
	Sessions *SessionService
	Notifier notify.Notifier
	Audit    *audit.Dispatcher

	ChallengeTTL      time.Duration
	ChallengeCooldown time.Duration
}

// Probe checks an identifier without authenticating. The full profile is only
// returned when exactly one user matches and the caller already signed in as
// them on this session; otherwise callers learn existence and nothing else.
func (s *SigninService) Probe(ctx context.Context, sess domain.Session, identifier string) (*domain.Profile, error) {
	users, err := s.Store.Users().FindUsersByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrWrongUsername
	}
	if len(users) == 1 && s.Sessions.PreviouslyLoggedIn(sess, users[0].ID) {
		p := users[0].Profile()
		return &p, nil
	}
	return nil, nil
}

// PasswordLogin authenticates identifier + password. When the user requires
// two-factor and owns at least one 2FA-capable credential, the login does not
// complete: the extended-auth sub-state is initialized and the caller gets
// ErrTwoFactorRequired.
func (s *SigninService) PasswordLogin(ctx context.Context, sess domain.Session, identifier, password, ip string) (domain.User, error) {
	users, err := s.Store.Users().FindUsersByIdentifier(ctx, identifier)
	if err != nil {
		return domain.User{}, err
	}
	if len(users) == 0 {
		return domain.User{}, ErrWrongUsername
	}

	var matched []domain.User
	for _, u := range users {
		creds, err := s.Store.Credentials().ListCredentialsByUser(ctx, u.ID)
		if err != nil {
			return domain.User{}, err
		}
		for _, c := range creds {
			if c.Method != domain.MethodPassword {
				continue
			}
			if cryptox.VerifyPassword(password, c.Secret) == nil {
				matched = append(matched, u)
				break
			}
		}
	}

	switch len(matched) {
	case 0:
		return domain.User{}, ErrWrongPassword
	case 1:
	default:
		return domain.User{}, ErrMoreThanOneUserMatched
	}
	user := matched[0]

	if user.UseTwoFactor {
		methods, err := s.availableMethods(ctx, []domain.User{user}, domain.FlowTwoFactor)
		if err != nil {
			return domain.User{}, err
		}
		if len(methods) > 0 {
			err := s.Sessions.Mutate(ctx, sess.TokenHash, func(cur *domain.Session) error {
				cur.ExtendedAuth = &domain.ExtendedAuth{
					UserID: user.ID,
					Flow:   domain.FlowTwoFactor,
				}
				return nil
			})
			if err != nil {
				return domain.User{}, err
			}
			return domain.User{}, ErrTwoFactorRequired
		}
	}

	if err := s.completeLogin(ctx, sess, user, ip); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ExtendedRequest drives one step of a two-factor or passwordless sign-in.
// Method and Response are optional: absent Method lists the available
// methods, absent Response issues a challenge, present Response verifies it.
type ExtendedRequest struct {
	Flow       domain.SigninFlow
	Identifier string
	Method     domain.Method
	Response   string
	IP         string
}

// ExtendedResult is the outcome of one extended sign-in step.
type ExtendedResult struct {
	// Methods is set when no method was selected yet.
	Methods []domain.Method
	// ChallengeSent marks that a challenge was issued this step. Challenge
	// itself is only echoed for client-verified methods.
	ChallengeSent bool
	Challenge     string
	// User is set once the step completed the login.
	User *domain.User
}

// ExtendedSignin runs one step of the extended flow.
func (s *SigninService) ExtendedSignin(ctx context.Context, sess domain.Session, req ExtendedRequest) (ExtendedResult, error) {
	candidates, err := s.candidateUsers(ctx, sess, req)
	if err != nil {
		return ExtendedResult{}, err
	}

	if req.Method == "" {
		methods, err := s.availableMethods(ctx, candidates, req.Flow)
		if err != nil {
			return ExtendedResult{}, err
		}
		return ExtendedResult{Methods: methods}, nil
	}
	if req.Method == domain.MethodPassword {
		return ExtendedResult{}, ErrUnsupportedMethod
	}

	creds, err := s.candidateCredentials(ctx, candidates, req.Flow, req.Method)
	if err != nil {
		return ExtendedResult{}, err
	}
	if len(creds) == 0 {
		return ExtendedResult{}, ErrUnsupportedMethod
	}

	if req.Response == "" {
		return s.issueChallenge(ctx, sess, req, creds)
	}
	return s.verifyResponse(ctx, sess, req, candidates, creds)
}

// candidateUsers resolves who this step may authenticate. Two-factor flows
// are locked to the user established by the password step; passwordless flows
// may narrow by identifier or stay open.
func (s *SigninService) candidateUsers(ctx context.Context, sess domain.Session, req ExtendedRequest) ([]domain.User, error) {
	switch req.Flow {
	case domain.FlowTwoFactor:
		ea := sess.ExtendedAuth
		if ea == nil || ea.Flow != domain.FlowTwoFactor || ea.UserID == "" {
			return nil, ErrAuthRequestNotMade
		}
		user, err := s.Store.Users().GetUserByID(ctx, ea.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrAuthRequestNotMade
			}
			return nil, err
		}
		return []domain.User{user}, nil

	case domain.FlowPasswordless:
		if req.Identifier == "" {
			return nil, nil
		}
		users, err := s.Store.Users().FindUsersByIdentifier(ctx, req.Identifier)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			return nil, ErrWrongUsername
		}
		return users, nil

	default:
		return nil, ErrInvalidRequest
	}
}

// availableMethods intersects the closed method enum with the capability
// flags appropriate to the flow across the candidate users.
func (s *SigninService) availableMethods(ctx context.Context, candidates []domain.User, flow domain.SigninFlow) ([]domain.Method, error) {
	seen := make(map[domain.Method]struct{})
	var methods []domain.Method

	collect := func(creds []domain.Credential) {
		for _, c := range creds {
			if c.Method == domain.MethodPassword || !credentialUsable(c, flow) {
				continue
			}
			if _, ok := seen[c.Method]; ok {
				continue
			}
			seen[c.Method] = struct{}{}
			methods = append(methods, c.Method)
		}
	}

	if candidates == nil {
		// Open passwordless listing: any method some credential offers.
		for _, m := range []domain.Method{domain.MethodSMS, domain.MethodEmail, domain.MethodOTP, domain.MethodPGPSignature} {
			creds, err := s.Store.Credentials().ListCredentialsByMethod(ctx, m)
			if err != nil {
				return nil, err
			}
			collect(creds)
		}
		return methods, nil
	}

	for _, u := range candidates {
		creds, err := s.Store.Credentials().ListCredentialsByUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		collect(creds)
	}
	return methods, nil
}

func credentialUsable(c domain.Credential, flow domain.SigninFlow) bool {
	switch flow {
	case domain.FlowTwoFactor:
		return c.AllowTwoFactor
	case domain.FlowPasswordless:
		return c.AllowSingleFactor
	default:
		return false
	}
}

// candidateCredentials gathers the credentials a response will be verified
// against. A nil candidate set means the open passwordless case, which scans
// by method instead.
func (s *SigninService) candidateCredentials(ctx context.Context, candidates []domain.User, flow domain.SigninFlow, method domain.Method) ([]domain.Credential, error) {
	var creds []domain.Credential
	if candidates == nil {
		all, err := s.Store.Credentials().ListCredentialsByMethod(ctx, method)
		if err != nil {
			return nil, err
		}
		creds = all
	} else {
		for _, u := range candidates {
			userCreds, err := s.Store.Credentials().ListCredentialsByUser(ctx, u.ID)
			if err != nil {
				return nil, err
			}
			creds = append(creds, userCreds...)
		}
	}

	var usable []domain.Credential
	for _, c := range creds {
		if c.Method == method && credentialUsable(c, flow) {
			usable = append(usable, c)
		}
	}
	return usable, nil
}

// issueChallenge generates and persists a new challenge, rate limiting
// against the previous issue time. Delivery dispatch runs in a goroutine and
// never fails the request.
func (s *SigninService) issueChallenge(ctx context.Context, sess domain.Session, req ExtendedRequest, creds []domain.Credential) (ExtendedResult, error) {
	challenge, err := generateChallenge(req.Method)
	if err != nil {
		return ExtendedResult{}, err
	}

	now := time.Now().UTC()
	err = s.Sessions.Mutate(ctx, sess.TokenHash, func(cur *domain.Session) error {
		// The cooldown check runs against the transactional re-read, not the
		// caller's snapshot, so concurrent issues cannot both slip past it.
		ea := cur.ExtendedAuth
		if ea != nil && ea.Method == req.Method {
			if isRateLimited(ea.ChallengeCreatedAt, s.ChallengeCooldown, now) {
				return ErrRateLimited
			}
		}
		if ea == nil {
			ea = &domain.ExtendedAuth{Flow: req.Flow}
		}
		ea.Method = req.Method
		ea.Challenge = challenge
		issued := now
		ea.ChallengeCreatedAt = &issued
		cur.ExtendedAuth = ea
		return nil
	})
	if err != nil {
		return ExtendedResult{}, err
	}

	s.dispatchChallenge(ctx, req.Method, challenge, creds)

	res := ExtendedResult{ChallengeSent: true}
	if shouldEchoChallenge(req.Method) {
		res.Challenge = challenge
	}
	return res, nil
}

// dispatchChallenge fires out-of-band delivery for delivery-based methods.
// The challenge is already persisted, so failures are logged and dropped.
func (s *SigninService) dispatchChallenge(ctx context.Context, method domain.Method, challenge string, creds []domain.Credential) {
	if s.Notifier == nil {
		return
	}

	var msgs []notify.Message
	for _, c := range creds {
		switch method {
		case domain.MethodSMS:
			msgs = append(msgs, notify.Message{
				Method:      notify.RouteSMS(c.Secret),
				Template:    notify.TemplateAuthCode,
				Destination: c.Secret,
				Variables:   map[string]string{"code": challenge},
			})
		case domain.MethodEmail:
			msgs = append(msgs, notify.Message{
				Method:      notify.MethodEmail,
				Template:    notify.TemplateAuthCode,
				Destination: c.Secret,
				Variables:   map[string]string{"code": challenge},
			})
		}
	}
	if len(msgs) == 0 {
		return
	}

	l := slogx.FromContext(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		for _, msg := range msgs {
			if err := s.Notifier.Send(sendCtx, msg); err != nil {
				l.Warn("challenge delivery failed",
					slog.String("method", string(msg.Method)),
					slog.Any("error", err),
				)
			}
		}
	}()
}

// verifyResponse checks a challenge response and completes the login when
// exactly one user's credential verifies. The sub-state is re-read, checked,
// and cleared inside a single transaction: a challenge consumed by one
// submission is gone before any concurrent submission gets to read it.
func (s *SigninService) verifyResponse(ctx context.Context, sess domain.Session, req ExtendedRequest, candidates []domain.User, creds []domain.Credential) (ExtendedResult, error) {
	var userID string
	err := s.Sessions.Mutate(ctx, sess.TokenHash, func(cur *domain.Session) error {
		ea := cur.ExtendedAuth
		if ea == nil || ea.Method == "" {
			return ErrAuthRequestNotMade
		}
		if ea.Method != req.Method {
			return ErrNotCurrentMethod
		}
		if req.Method != domain.MethodOTP {
			// TOTP codes derive from the clock, not from a stored challenge.
			if ea.Challenge == "" || ea.ChallengeCreatedAt == nil {
				return ErrAuthRequestNotMade
			}
			if time.Since(*ea.ChallengeCreatedAt) > s.ChallengeTTL {
				return ErrAuthTimeout
			}
		}

		matched, err := s.matchCredentials(ctx, req.Method, ea.Challenge, req.Response, creds)
		if err != nil {
			return err
		}
		switch len(matched) {
		case 0:
			return ErrSigninFailed
		case 1:
		default:
			return ErrMoreThanOneUserMatched
		}
		for id := range matched {
			userID = id
		}

		cur.Login(userID)
		cur.ExtendedAuth = nil
		return nil
	})
	if err != nil {
		return ExtendedResult{}, err
	}

	user, err := s.lookupCandidate(ctx, candidates, userID)
	if err != nil {
		return ExtendedResult{}, err
	}
	s.finishLogin(ctx, sess, user, req.IP)
	return ExtendedResult{User: &user}, nil
}

// matchCredentials verifies the response against every candidate credential
// concurrently and reports the user ids whose credential verified. The
// decision happens only after all checks finish.
func (s *SigninService) matchCredentials(ctx context.Context, method domain.Method, challenge, response string, creds []domain.Credential) (map[string]struct{}, error) {
	var mu sync.Mutex
	matched := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	for _, cred := range creds {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if verifyChallenge(method, challenge, response, cred) {
				mu.Lock()
				matched[cred.UserID] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matched, nil
}

func (s *SigninService) lookupCandidate(ctx context.Context, candidates []domain.User, userID string) (domain.User, error) {
	for _, u := range candidates {
		if u.ID == userID {
			return u, nil
		}
	}
	return s.Store.Users().GetUserByID(ctx, userID)
}

// completeLogin appends the user to the session and clears the sub-state.
func (s *SigninService) completeLogin(ctx context.Context, sess domain.Session, user domain.User, ip string) error {
	err := s.Sessions.Mutate(ctx, sess.TokenHash, func(cur *domain.Session) error {
		cur.Login(user.ID)
		cur.ExtendedAuth = nil
		return nil
	})
	if err != nil {
		return err
	}

	s.finishLogin(ctx, sess, user, ip)
	return nil
}

// finishLogin records timestamps and the audit event after a session was
// already updated. Failures of the async work are logged, never surfaced.
func (s *SigninService) finishLogin(ctx context.Context, sess domain.Session, user domain.User, ip string) {
	l := slogx.FromContext(ctx)
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Store.Users().TouchLastAuthenticated(bgCtx, user.ID); err != nil {
			l.Warn("recording last authenticated failed", slog.Any("error", err))
		}
		if err := s.Store.Users().TouchLastSignedIn(bgCtx, user.ID); err != nil {
			l.Warn("recording last signed in failed", slog.Any("error", err))
		}
	}()

	s.Audit.Record(audit.Event{
		Kind:      audit.KindSignin,
		UserID:    user.ID,
		SessionID: sess.ID,
		IP:        ip,
		Success:   true,
	})

	l.Info("user signed in", slog.String("user_id", user.ID))
}

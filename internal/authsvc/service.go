// Package authsvc is the authentication service (component C5): it owns
// the PKCE login flow, proactive refresh decisions, and scope
// enforcement for each tracked character's session.
//
// Grounded on jaytripper_esi's AuthService (src/client.rs), which
// composes the same SsoClient + TokenStore + Clock trio and exposes the
// same ensure-valid/next-refresh-delay shape; this package keeps that
// composition and expresses it with Go interfaces and explicit error
// returns instead of trait objects and thiserror.
package authsvc

import (
	"time"

	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/pkg/ids"
)

const defaultRefreshSkewSeconds = 60

// Service composes an SsoClient transport, a TokenStore, and a Clock
// into the character-session lifecycle: login, refresh, and scope
// re-validation.
type Service struct {
	client             SsoClient
	store              TokenStore
	clock              Clock
	refreshSkewSeconds int64
	requiredScopes     []string
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithRefreshSkewSeconds overrides the default 60-second refresh skew.
func WithRefreshSkewSeconds(skewSeconds int64) Option {
	return func(s *Service) { s.refreshSkewSeconds = skewSeconds }
}

// WithClock overrides the default SystemClock, for tests.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService builds a Service. requiredScopes is the set of ESI scopes
// every session must carry; sessions that fall short are treated as
// needing reauthorization rather than silently accepted.
func NewService(client SsoClient, store TokenStore, requiredScopes []string, opts ...Option) *Service {
	s := &Service{
		client:             client,
		store:              store,
		clock:              SystemClock{},
		refreshSkewSeconds: defaultRefreshSkewSeconds,
		requiredScopes:     requiredScopes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginLogin starts a new PKCE login, returning the URL the operator
// should open and the state value the callback must echo back.
func (s *Service) BeginLogin() (LoginRequest, error) {
	req, err := s.client.BeginLogin()
	if err != nil {
		return LoginRequest{}, errkind.Wrap("authsvc.BeginLogin", errkind.ApiTransient, err)
	}
	return req, nil
}

// CompleteLogin exchanges an authorization code for tokens, enforces the
// required-scope set, and persists the resulting session.
func (s *Service) CompleteLogin(code, callbackState string) (*Session, error) {
	tokens, err := s.client.ExchangeCode(code, callbackState)
	if err != nil {
		return nil, errkind.Wrap("authsvc.CompleteLogin", errkind.ApiTransient, err)
	}

	session := &Session{
		CharacterID:     tokens.CharacterID,
		CharacterName:   tokens.CharacterName,
		Scopes:          tokens.Scopes,
		AccessToken:     tokens.AccessToken,
		AccessExpiresAt: tokens.AccessExpiresAt,
		RefreshToken:    tokens.RefreshToken,
		UpdatedAt:       s.clock.Now(),
	}

	if !session.HasScopes(s.requiredScopes) {
		if err := s.store.ClearSession(session.CharacterID); err != nil {
			return nil, errkind.Wrap("authsvc.CompleteLogin", errkind.StorageTransient, err)
		}
		return nil, errkind.New("authsvc.CompleteLogin", errkind.MissingRequiredScopes,
			"granted scopes do not cover the required scope set")
	}

	if err := s.store.SaveSession(session); err != nil {
		return nil, errkind.Wrap("authsvc.CompleteLogin", errkind.StorageTransient, err)
	}
	return session, nil
}

// LoadSession returns the stored session for characterID, or nil if
// none exists.
func (s *Service) LoadSession(characterID ids.CharacterID) (*Session, error) {
	session, err := s.store.LoadSession(characterID)
	if err != nil {
		return nil, errkind.Wrap("authsvc.LoadSession", errkind.StorageTransient, err)
	}
	return session, nil
}

// Logout clears the stored session for characterID.
func (s *Service) Logout(characterID ids.CharacterID) error {
	if err := s.store.ClearSession(characterID); err != nil {
		return errkind.Wrap("authsvc.Logout", errkind.StorageTransient, err)
	}
	return nil
}

// EnsureSessionKind classifies the outcome of EnsureValidSession.
type EnsureSessionKind int

const (
	// EnsureMissing: no session is stored for this character.
	EnsureMissing EnsureSessionKind = iota
	// EnsureReady: the session is valid (refreshed if necessary) and
	// covers the required scopes.
	EnsureReady
	// EnsureNeedsReauth: the session could not be brought to a usable
	// state without operator involvement (refresh failed, or scopes no
	// longer cover what is required).
	EnsureNeedsReauth
)

// EnsureSessionResult is the outcome of EnsureValidSession.
type EnsureSessionResult struct {
	Kind    EnsureSessionKind
	Session *Session
	Reason  string
}

// EnsureValidSession loads the session for characterID, refreshing it
// proactively if it is within the refresh skew of expiring, and
// enforces the required-scope set both before and after any refresh.
// A refresh failure does not delete the stored session: the next call
// may retry.
func (s *Service) EnsureValidSession(characterID ids.CharacterID) (EnsureSessionResult, error) {
	now := s.clock.Now()

	session, err := s.store.LoadSession(characterID)
	if err != nil {
		return EnsureSessionResult{}, errkind.Wrap("authsvc.EnsureValidSession", errkind.StorageTransient, err)
	}
	if session == nil {
		return EnsureSessionResult{Kind: EnsureMissing}, nil
	}

	if !session.HasScopes(s.requiredScopes) {
		if err := s.store.ClearSession(characterID); err != nil {
			return EnsureSessionResult{}, errkind.Wrap("authsvc.EnsureValidSession", errkind.StorageTransient, err)
		}
		return EnsureSessionResult{
			Kind:   EnsureNeedsReauth,
			Reason: "granted scopes no longer cover the required scope set",
		}, nil
	}

	if !session.ShouldRefresh(now, s.refreshSkewSeconds) {
		return EnsureSessionResult{Kind: EnsureReady, Session: session}, nil
	}

	tokens, err := s.client.Refresh(session.RefreshToken)
	if err != nil {
		return EnsureSessionResult{Kind: EnsureNeedsReauth, Reason: err.Error()}, nil
	}

	session.AccessToken = tokens.AccessToken
	session.AccessExpiresAt = tokens.AccessExpiresAt
	session.RefreshToken = tokens.RefreshToken
	session.UpdatedAt = now

	if !session.HasScopes(s.requiredScopes) {
		if err := s.store.ClearSession(characterID); err != nil {
			return EnsureSessionResult{}, errkind.Wrap("authsvc.EnsureValidSession", errkind.StorageTransient, err)
		}
		return EnsureSessionResult{
			Kind:   EnsureNeedsReauth,
			Reason: "granted scopes regressed below the required scope set after refresh",
		}, nil
	}

	if err := s.store.SaveSession(session); err != nil {
		return EnsureSessionResult{}, errkind.Wrap("authsvc.EnsureValidSession", errkind.StorageTransient, err)
	}
	return EnsureSessionResult{Kind: EnsureReady, Session: session}, nil
}

// NextRefreshOutcomeKind classifies the outcome of NextRefreshDelay.
type NextRefreshOutcomeKind int

const (
	// RefreshReadyNow: the session is already within its refresh skew;
	// the caller should refresh immediately.
	RefreshReadyNow NextRefreshOutcomeKind = iota
	// RefreshWait: the caller should sleep for Wait before checking again.
	RefreshWait
	// RefreshNeedsReauth: no session is stored, or the stored session's
	// scopes no longer cover the required set (that session is cleared),
	// so there is nothing to schedule a refresh for.
	RefreshNeedsReauth
)

// NextRefreshOutcome is the outcome of NextRefreshDelay.
type NextRefreshOutcome struct {
	Kind NextRefreshOutcomeKind
	Wait time.Duration
}

// NextRefreshDelay computes, without making any network call, how long
// a poller should wait before next calling EnsureValidSession for
// characterID. The computed wait never goes below floor.
func (s *Service) NextRefreshDelay(characterID ids.CharacterID, floor time.Duration) (NextRefreshOutcome, error) {
	now := s.clock.Now()

	session, err := s.store.LoadSession(characterID)
	if err != nil {
		return NextRefreshOutcome{}, errkind.Wrap("authsvc.NextRefreshDelay", errkind.StorageTransient, err)
	}
	if session == nil {
		return NextRefreshOutcome{Kind: RefreshNeedsReauth}, nil
	}

	if !session.HasScopes(s.requiredScopes) {
		if err := s.store.ClearSession(characterID); err != nil {
			return NextRefreshOutcome{}, errkind.Wrap("authsvc.NextRefreshDelay", errkind.StorageTransient, err)
		}
		return NextRefreshOutcome{Kind: RefreshNeedsReauth}, nil
	}

	if session.ShouldRefresh(now, s.refreshSkewSeconds) {
		return NextRefreshOutcome{Kind: RefreshReadyNow}, nil
	}

	remainingSeconds := session.AccessExpiresAt.AsEpochSeconds() - now.AsEpochSeconds() - s.refreshSkewSeconds
	wait := floor
	if computed := time.Duration(remainingSeconds) * time.Second; computed > floor {
		wait = computed
	}
	return NextRefreshOutcome{Kind: RefreshWait, Wait: wait}, nil
}

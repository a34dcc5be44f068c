package authsvc_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wormhole-tracker/internal/authsvc"
	"wormhole-tracker/pkg/ids"
)

type fixedClock struct{ now ids.Timestamp }

func (c fixedClock) Now() ids.Timestamp { return c.now }

type stubStore struct {
	sessions map[ids.CharacterID]*authsvc.Session
}

func newStubStore() *stubStore {
	return &stubStore{sessions: map[ids.CharacterID]*authsvc.Session{}}
}

func (s *stubStore) LoadSession(characterID ids.CharacterID) (*authsvc.Session, error) {
	session, ok := s.sessions[characterID]
	if !ok {
		return nil, nil
	}
	clone := *session
	return &clone, nil
}

func (s *stubStore) SaveSession(session *authsvc.Session) error {
	clone := *session
	s.sessions[session.CharacterID] = &clone
	return nil
}

func (s *stubStore) ClearSession(characterID ids.CharacterID) error {
	delete(s.sessions, characterID)
	return nil
}

type stubSsoClient struct {
	refreshErr    error
	refreshResult authsvc.RefreshTokens
}

func (c *stubSsoClient) BeginLogin() (authsvc.LoginRequest, error) {
	return authsvc.LoginRequest{AuthorizationURL: "https://login.eveonline.com/v2/oauth/authorize", State: "state-1"}, nil
}

func (c *stubSsoClient) ExchangeCode(code, callbackState string) (authsvc.InitialAuthTokens, error) {
	return authsvc.InitialAuthTokens{}, nil
}

func (c *stubSsoClient) Refresh(refreshToken string) (authsvc.RefreshTokens, error) {
	if c.refreshErr != nil {
		return authsvc.RefreshTokens{}, c.refreshErr
	}
	return c.refreshResult, nil
}

const characterID = ids.CharacterID(2112000001)

func TestEnsureValidSessionMissing(t *testing.T) {
	store := newStubStore()
	svc := authsvc.NewService(&stubSsoClient{}, store, []string{"esi-location.read_location.v1"})

	result, err := svc.EnsureValidSession(characterID)
	require.NoError(t, err)
	assert.Equal(t, authsvc.EnsureMissing, result.Kind)
}

func TestEnsureValidSessionReadyWithoutRefresh(t *testing.T) {
	now := ids.FromEpochSeconds(1_700_000_000)
	store := newStubStore()
	require.NoError(t, store.SaveSession(&authsvc.Session{
		CharacterID:     characterID,
		Scopes:          []string{"esi-location.read_location.v1"},
		AccessToken:     "access-1",
		AccessExpiresAt: now.Add(10 * time.Minute),
		RefreshToken:    "refresh-1",
		UpdatedAt:       now,
	}))

	svc := authsvc.NewService(&stubSsoClient{}, store, []string{"esi-location.read_location.v1"},
		authsvc.WithClock(fixedClock{now: now}))

	result, err := svc.EnsureValidSession(characterID)
	require.NoError(t, err)
	assert.Equal(t, authsvc.EnsureReady, result.Kind)
	assert.Equal(t, "access-1", result.Session.AccessToken)
}

func TestEnsureValidSessionRefreshesWhenWithinSkew(t *testing.T) {
	now := ids.FromEpochSeconds(1_700_000_000)
	store := newStubStore()
	require.NoError(t, store.SaveSession(&authsvc.Session{
		CharacterID:     characterID,
		Scopes:          []string{"esi-location.read_location.v1"},
		AccessToken:     "stale-access",
		AccessExpiresAt: now.Add(30 * time.Second),
		RefreshToken:    "refresh-1",
		UpdatedAt:       now,
	}))

	client := &stubSsoClient{refreshResult: authsvc.RefreshTokens{
		AccessToken:     "fresh-access",
		AccessExpiresAt: now.Add(20 * time.Minute),
		RefreshToken:    "refresh-2",
	}}
	svc := authsvc.NewService(client, store, []string{"esi-location.read_location.v1"},
		authsvc.WithClock(fixedClock{now: now}))

	result, err := svc.EnsureValidSession(characterID)
	require.NoError(t, err)
	assert.Equal(t, authsvc.EnsureReady, result.Kind)
	assert.Equal(t, "fresh-access", result.Session.AccessToken)

	stored, err := store.LoadSession(characterID)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", stored.AccessToken)
}

func TestEnsureValidSessionRefreshFailurePreservesStoredSession(t *testing.T) {
	now := ids.FromEpochSeconds(1_700_000_000)
	store := newStubStore()
	require.NoError(t, store.SaveSession(&authsvc.Session{
		CharacterID:     characterID,
		Scopes:          []string{"esi-location.read_location.v1"},
		AccessToken:     "stale-access",
		AccessExpiresAt: now.Add(30 * time.Second),
		RefreshToken:    "refresh-1",
		UpdatedAt:       now,
	}))

	client := &stubSsoClient{refreshErr: errors.New("sso unreachable")}
	svc := authsvc.NewService(client, store, []string{"esi-location.read_location.v1"},
		authsvc.WithClock(fixedClock{now: now}))

	result, err := svc.EnsureValidSession(characterID)
	require.NoError(t, err)
	assert.Equal(t, authsvc.EnsureNeedsReauth, result.Kind)

	stored, err := store.LoadSession(characterID)
	require.NoError(t, err)
	assert.Equal(t, "stale-access", stored.AccessToken, "refresh failure must not discard the stored session")
}

func TestEnsureValidSessionScopeRegressionClearsSession(t *testing.T) {
	now := ids.FromEpochSeconds(1_700_000_000)
	store := newStubStore()
	require.NoError(t, store.SaveSession(&authsvc.Session{
		CharacterID:     characterID,
		Scopes:          []string{"esi-location.read_location.v1"},
		AccessToken:     "access-1",
		AccessExpiresAt: now.Add(10 * time.Minute),
		RefreshToken:    "refresh-1",
		UpdatedAt:       now,
	}))

	svc := authsvc.NewService(&stubSsoClient{}, store,
		[]string{"esi-location.read_location.v1", "esi-skills.read_skills.v1"},
		authsvc.WithClock(fixedClock{now: now}))

	result, err := svc.EnsureValidSession(characterID)
	require.NoError(t, err)
	assert.Equal(t, authsvc.EnsureNeedsReauth, result.Kind)

	stored, err := store.LoadSession(characterID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestNextRefreshDelayReadyNow(t *testing.T) {
	now := ids.FromEpochSeconds(1_700_000_000)
	store := newStubStore()
	require.NoError(t, store.SaveSession(&authsvc.Session{
		CharacterID:     characterID,
		AccessExpiresAt: now.Add(10 * time.Second),
		UpdatedAt:       now,
	}))

	svc := authsvc.NewService(&stubSsoClient{}, store, nil, authsvc.WithClock(fixedClock{now: now}))

	outcome, err := svc.NextRefreshDelay(characterID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, authsvc.RefreshReadyNow, outcome.Kind)
}

func TestNextRefreshDelayWaitsUntilSkewWindow(t *testing.T) {
	now := ids.FromEpochSeconds(1_700_000_000)
	store := newStubStore()
	require.NoError(t, store.SaveSession(&authsvc.Session{
		CharacterID:     characterID,
		AccessExpiresAt: now.Add(20 * time.Minute),
		UpdatedAt:       now,
	}))

	svc := authsvc.NewService(&stubSsoClient{}, store, nil,
		authsvc.WithClock(fixedClock{now: now}), authsvc.WithRefreshSkewSeconds(60))

	outcome, err := svc.NextRefreshDelay(characterID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, authsvc.RefreshWait, outcome.Kind)
	assert.Equal(t, (20*time.Minute - 60*time.Second), outcome.Wait)
}

func TestNextRefreshDelayMissingSessionNeedsReauth(t *testing.T) {
	store := newStubStore()
	svc := authsvc.NewService(&stubSsoClient{}, store, nil)

	outcome, err := svc.NextRefreshDelay(characterID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, authsvc.RefreshNeedsReauth, outcome.Kind)
}

func TestNextRefreshDelayScopeRegressionClearsSession(t *testing.T) {
	now := ids.FromEpochSeconds(1_700_000_000)
	store := newStubStore()
	require.NoError(t, store.SaveSession(&authsvc.Session{
		CharacterID:     characterID,
		Scopes:          []string{"esi-location.read_location.v1"},
		AccessToken:     "access-1",
		AccessExpiresAt: now.Add(20 * time.Minute),
		RefreshToken:    "refresh-1",
		UpdatedAt:       now,
	}))

	svc := authsvc.NewService(&stubSsoClient{}, store,
		[]string{"esi-location.read_location.v1", "esi-skills.read_skills.v1"},
		authsvc.WithClock(fixedClock{now: now}))

	outcome, err := svc.NextRefreshDelay(characterID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, authsvc.RefreshNeedsReauth, outcome.Kind)

	stored, err := store.LoadSession(characterID)
	require.NoError(t, err)
	assert.Nil(t, stored, "scope regression must clear the stored session even on the proactive scheduling path")
}

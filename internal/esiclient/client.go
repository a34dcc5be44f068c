// Package esiclient is the managed API client (component C6): it binds
// an authentication service to one character, keeps that character's
// access token fresh in the background, and serializes access to the
// character's location endpoint.
//
// Grounded on jaytripper_esi's ManagedEsiClient (src/client.rs), which
// pairs the same auth-service handle with a background refresh task and
// an atomic reauth flag; the refresh loop's shape additionally follows
// sanket-sapate-arc-core/apps/discovery-service/internal/worker/scan_poller.go's
// ScanPoller.Run (select over a timer and a shutdown channel, structured
// zap logging per iteration).
package esiclient

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"wormhole-tracker/internal/authsvc"
	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/pkg/ids"
)

// CharacterLocation is the observed position of a character, as
// reported by ESI's /characters/{id}/location/ endpoint.
type CharacterLocation struct {
	SolarSystemID ids.SolarSystemID
	StationID     *int64
	StructureID   *int64
}

// RefreshFloor is the sleep applied after a transport error in the
// background refresh loop.
const RefreshFloor = 5 * time.Second

// Client binds an authsvc.Service to one character and keeps its
// session fresh in the background.
type Client struct {
	characterID ids.CharacterID
	auth        *authsvc.Service
	httpClient  *http.Client
	userAgent   string
	baseURL     string
	logger      *zap.Logger

	transportMu sync.Mutex

	needsReauth  atomic.Bool
	reauthReason atomic.Value // string

	shutdownCh chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once
}

// Connect ensures a usable session exists for characterID and spawns
// the background refresh goroutine; that session check is its only
// readiness step, and it makes no request to ESI itself. It returns an
// errkind.NeedsReauth error if no valid session can be established
// right now.
func Connect(auth *authsvc.Service, characterID ids.CharacterID, httpClient *http.Client, userAgent string, logger *zap.Logger, opts ...Option) (*Client, error) {
	result, err := auth.EnsureValidSession(characterID)
	if err != nil {
		return nil, err
	}
	if result.Kind != authsvc.EnsureReady {
		reason := result.Reason
		if reason == "" {
			reason = "no session on file"
		}
		return nil, errkind.New("esiclient.Connect", errkind.NeedsReauth, reason)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		characterID: characterID,
		auth:        auth,
		httpClient:  httpClient,
		userAgent:   userAgent,
		baseURL:     esiBaseURL,
		logger:      logger.With(zap.Uint64("character_id", uint64(characterID))),
		shutdownCh:  make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	c.reauthReason.Store("")
	for _, opt := range opts {
		opt(c)
	}

	go c.runRefreshLoop()

	return c, nil
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithBaseURL overrides the ESI base URL, for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func (c *Client) CharacterID() ids.CharacterID { return c.characterID }

func (c *Client) RequiresReauth() bool { return c.needsReauth.Load() }

func (c *Client) ReauthReason() string {
	if v, ok := c.reauthReason.Load().(string); ok {
		return v
	}
	return ""
}

// Close signals the background refresh goroutine to stop and waits for
// it to exit.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.shutdownCh) })
	<-c.doneCh
}

func (c *Client) runRefreshLoop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.shutdownCh:
			return
		default:
		}

		outcome, err := c.auth.NextRefreshDelay(c.characterID, RefreshFloor)
		if err != nil {
			c.logger.Warn("next refresh delay lookup failed", zap.Error(err))
			if !c.sleepOrShutdown(RefreshFloor) {
				return
			}
			continue
		}

		switch outcome.Kind {
		case authsvc.RefreshNeedsReauth:
			c.setNeedsReauth("session no longer exists")
			return
		case authsvc.RefreshWait:
			if !c.sleepOrShutdown(outcome.Wait) {
				return
			}
		case authsvc.RefreshReadyNow:
		}

		result, err := c.auth.EnsureValidSession(c.characterID)
		if err != nil {
			c.logger.Warn("session refresh check failed", zap.Error(err))
			if !c.sleepOrShutdown(RefreshFloor) {
				return
			}
			continue
		}

		switch result.Kind {
		case authsvc.EnsureReady:
			continue
		case authsvc.EnsureMissing, authsvc.EnsureNeedsReauth:
			c.setNeedsReauth(result.Reason)
			return
		}
	}
}

func (c *Client) setNeedsReauth(reason string) {
	c.reauthReason.Store(reason)
	c.needsReauth.Store(true)
	c.logger.Warn("character now requires reauthorization", zap.String("reason", reason))
}

// sleepOrShutdown sleeps for d, returning false if shutdown fired
// first.
func (c *Client) sleepOrShutdown(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.shutdownCh:
		return false
	case <-timer.C:
		return true
	}
}

// GetCurrentLocation fetches the character's current location. It
// fast-fails with errkind.NeedsReauth if the background loop has
// already determined the session cannot be refreshed.
func (c *Client) GetCurrentLocation(ctx context.Context) (CharacterLocation, error) {
	if c.needsReauth.Load() {
		return CharacterLocation{}, errkind.New("esiclient.GetCurrentLocation", errkind.NeedsReauth, c.ReauthReason())
	}

	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	session, err := c.auth.LoadSession(c.characterID)
	if err != nil {
		return CharacterLocation{}, err
	}
	if session == nil {
		c.setNeedsReauth("session no longer exists")
		return CharacterLocation{}, errkind.New("esiclient.GetCurrentLocation", errkind.NeedsReauth, "session no longer exists")
	}

	return c.fetchLocation(ctx, session.AccessToken)
}

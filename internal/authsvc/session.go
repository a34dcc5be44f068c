package authsvc

import "wormhole-tracker/pkg/ids"

// Session is one character's persisted OAuth session (component C4's
// payload shape).
type Session struct {
	CharacterID     ids.CharacterID
	CharacterName   *string
	Scopes          []string
	AccessToken     string
	AccessExpiresAt ids.Timestamp
	RefreshToken    string
	UpdatedAt       ids.Timestamp
}

// ShouldRefresh reports whether the session's access token should be
// refreshed proactively: true iff access_expires_at <= now + skew.
func (s Session) ShouldRefresh(now ids.Timestamp, skewSeconds int64) bool {
	return s.AccessExpiresAt.AsEpochSeconds() <= now.AsEpochSeconds()+skewSeconds
}

// HasScopes reports whether the session's granted scopes cover every one
// of required.
func (s Session) HasScopes(required []string) bool {
	granted := make(map[string]struct{}, len(s.Scopes))
	for _, scope := range s.Scopes {
		granted[scope] = struct{}{}
	}
	for _, scope := range required {
		if _, ok := granted[scope]; !ok {
			return false
		}
	}
	return true
}

// TokenStore persists and retrieves sessions, keyed by character. A
// missing session loads as (nil, nil).
type TokenStore interface {
	LoadSession(characterID ids.CharacterID) (*Session, error)
	SaveSession(session *Session) error
	ClearSession(characterID ids.CharacterID) error
}

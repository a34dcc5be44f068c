package authsvc

import "wormhole-tracker/pkg/ids"

// LoginRequest is returned from BeginLogin: the URL the operator should
// open, and the state value the subsequent callback must echo back.
type LoginRequest struct {
	AuthorizationURL string
	State            string
}

// InitialAuthTokens is what a successful authorization-code exchange
// yields.
type InitialAuthTokens struct {
	CharacterID     ids.CharacterID
	CharacterName   *string
	Scopes          []string
	AccessToken     string
	AccessExpiresAt ids.Timestamp
	RefreshToken    string
}

// RefreshTokens is what a successful token refresh yields.
type RefreshTokens struct {
	AccessToken     string
	AccessExpiresAt ids.Timestamp
	RefreshToken    string
}

// SsoClient is the single-sign-on transport the auth service drives. A
// production implementation performs the actual PKCE flow and token
// endpoint calls (see PKCEClient); tests substitute a stub.
type SsoClient interface {
	BeginLogin() (LoginRequest, error)
	ExchangeCode(code, callbackState string) (InitialAuthTokens, error)
	Refresh(refreshToken string) (RefreshTokens, error)
}

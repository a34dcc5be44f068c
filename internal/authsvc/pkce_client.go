package authsvc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/pkg/ids"
)

const (
	esiAuthorizeURL = "https://login.eveonline.com/v2/oauth/authorize"
	esiTokenURL     = "https://login.eveonline.com/v2/oauth/token"
)

// EsiClientConfig names the registered application and scope set the
// PKCE client authorizes against, following jaytripper_esi's EsiConfig.
type EsiClientConfig struct {
	ClientID    string
	CallbackURL string
	Scopes      []string
	UserAgent   string
}

// Validate checks that every field required to start a login flow is
// present, following EsiConfig::validate.
func (c EsiClientConfig) Validate() error {
	if c.ClientID == "" {
		return errkind.New("authsvc.EsiClientConfig.Validate", errkind.ConfigInvalid, "client id is empty")
	}
	if c.CallbackURL == "" {
		return errkind.New("authsvc.EsiClientConfig.Validate", errkind.ConfigInvalid, "callback url is empty")
	}
	if len(c.Scopes) == 0 {
		return errkind.New("authsvc.EsiClientConfig.Validate", errkind.ConfigInvalid, "scope list is empty")
	}
	if c.UserAgent == "" {
		return errkind.New("authsvc.EsiClientConfig.Validate", errkind.ConfigInvalid, "user agent is empty")
	}
	return nil
}

// PKCEClient is the production SsoClient: it drives EVE SSO's
// authorization-code-with-PKCE flow directly over HTTP, in place of the
// rfesi crate that jaytripper_esi's RfesiSsoClient (src/client.rs)
// wrapped, since rfesi has no Go equivalent in the reference corpus.
type PKCEClient struct {
	config     EsiClientConfig
	httpClient *http.Client

	mu      sync.Mutex
	pending map[string]pkceChallenge
}

// NewPKCEClient builds a PKCEClient. httpClient may be nil, in which
// case http.DefaultClient is used.
func NewPKCEClient(config EsiClientConfig, httpClient *http.Client) (*PKCEClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PKCEClient{
		config:     config,
		httpClient: httpClient,
		pending:    make(map[string]pkceChallenge),
	}, nil
}

// BeginLogin generates a fresh PKCE verifier/challenge pair and state
// token, remembers the verifier under that state (discarding any login
// still pending from an earlier call), and returns the authorize URL to
// open.
func (c *PKCEClient) BeginLogin() (LoginRequest, error) {
	challenge, err := newPKCEChallenge()
	if err != nil {
		return LoginRequest{}, err
	}
	state, err := randomState()
	if err != nil {
		return LoginRequest{}, err
	}

	c.mu.Lock()
	c.pending = map[string]pkceChallenge{state: challenge}
	c.mu.Unlock()

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("redirect_uri", c.config.CallbackURL)
	query.Set("client_id", c.config.ClientID)
	query.Set("scope", strings.Join(c.config.Scopes, " "))
	query.Set("state", state)
	query.Set("code_challenge", challenge.Challenge)
	query.Set("code_challenge_method", "S256")

	return LoginRequest{
		AuthorizationURL: esiAuthorizeURL + "?" + query.Encode(),
		State:            state,
	}, nil
}

// ExchangeCode redeems an authorization code for tokens, verifying that
// callbackState matches a login this client started and consuming the
// corresponding PKCE verifier.
func (c *PKCEClient) ExchangeCode(code, callbackState string) (InitialAuthTokens, error) {
	c.mu.Lock()
	loginPending := len(c.pending) > 0
	challenge, ok := c.pending[callbackState]
	if ok {
		delete(c.pending, callbackState)
	}
	c.mu.Unlock()

	if !loginPending {
		return InitialAuthTokens{}, errkind.New("authsvc.PKCEClient.ExchangeCode", errkind.LoginNotStarted,
			"no login is in progress")
	}
	if !ok {
		return InitialAuthTokens{}, errkind.New("authsvc.PKCEClient.ExchangeCode", errkind.AuthStateMismatch,
			"callback state does not match an in-progress login")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.config.ClientID)
	form.Set("code_verifier", challenge.Verifier)

	body, err := c.postTokenRequest(form)
	if err != nil {
		return InitialAuthTokens{}, err
	}

	claims, err := parseUnverifiedAccessTokenClaims(body.AccessToken)
	if err != nil {
		return InitialAuthTokens{}, err
	}

	characterID, err := ParseCharacterIDFromSubject(claims.Subject)
	if err != nil {
		return InitialAuthTokens{}, err
	}

	scopes, err := ParseScopeClaim(claims.rawClaims, "scp")
	if err != nil {
		return InitialAuthTokens{}, err
	}

	var characterName *string
	if claims.Name != "" {
		name := claims.Name
		characterName = &name
	}

	return InitialAuthTokens{
		CharacterID:     characterID,
		CharacterName:   characterName,
		Scopes:          scopes,
		AccessToken:     body.AccessToken,
		AccessExpiresAt: ids.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
		RefreshToken:    body.RefreshToken,
	}, nil
}

// Refresh redeems a refresh token for a new access/refresh token pair.
func (c *PKCEClient) Refresh(refreshToken string) (RefreshTokens, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.config.ClientID)

	body, err := c.postTokenRequest(form)
	if err != nil {
		return RefreshTokens{}, err
	}

	return RefreshTokens{
		AccessToken:     body.AccessToken,
		AccessExpiresAt: ids.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
		RefreshToken:    body.RefreshToken,
	}, nil
}

type tokenResponseBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (c *PKCEClient) postTokenRequest(form url.Values) (tokenResponseBody, error) {
	req, err := http.NewRequest(http.MethodPost, esiTokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return tokenResponseBody{}, errkind.Wrap("authsvc.PKCEClient.postTokenRequest", errkind.ApiTransient, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Host", "login.eveonline.com")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tokenResponseBody{}, errkind.Wrap("authsvc.PKCEClient.postTokenRequest", errkind.ApiTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return tokenResponseBody{}, errkind.Wrap("authsvc.PKCEClient.postTokenRequest", errkind.ApiTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return tokenResponseBody{}, errkind.New("authsvc.PKCEClient.postTokenRequest", errkind.ApiTransient,
			fmt.Sprintf("token endpoint returned status %d: %s", resp.StatusCode, string(raw)))
	}

	var body tokenResponseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return tokenResponseBody{}, errkind.Wrap("authsvc.PKCEClient.postTokenRequest", errkind.PayloadSerialization, err)
	}
	return body, nil
}

type accessTokenClaims struct {
	Subject   string
	Name      string
	rawClaims jwt.MapClaims
}

// parseUnverifiedAccessTokenClaims reads the access token's claims
// without verifying its signature: EVE SSO access tokens are meant to
// be presented back to ESI, not re-validated by the client that
// received them, so this only extracts the character subject, display
// name, and scope claims it needs.
func parseUnverifiedAccessTokenClaims(accessToken string) (accessTokenClaims, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return accessTokenClaims{}, errkind.Wrap("authsvc.parseUnverifiedAccessTokenClaims", errkind.InvalidSubject, err)
	}

	subject, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)

	return accessTokenClaims{Subject: subject, Name: name, rawClaims: claims}, nil
}

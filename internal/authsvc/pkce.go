package authsvc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"wormhole-tracker/internal/errkind"
)

// pkceChallenge is a generated PKCE (RFC 7636) verifier/challenge pair.
// There is no complete example repository in the reference corpus that
// imports and exercises an OAuth2/PKCE client library, so this one piece
// is built directly on the standard library's crypto/rand and
// crypto/sha256 rather than a third-party package.
type pkceChallenge struct {
	Verifier  string
	Challenge string
}

// newPKCEChallenge generates a fresh verifier/challenge pair using the
// S256 transform.
func newPKCEChallenge() (pkceChallenge, error) {
	verifier, err := randomURLSafeString(32)
	if err != nil {
		return pkceChallenge{}, errkind.Wrap("authsvc.newPKCEChallenge", errkind.ConfigInvalid, err)
	}

	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	return pkceChallenge{Verifier: verifier, Challenge: challenge}, nil
}

// randomState generates an opaque CSRF state token for the authorize
// request.
func randomState() (string, error) {
	state, err := randomURLSafeString(16)
	if err != nil {
		return "", errkind.Wrap("authsvc.randomState", errkind.ConfigInvalid, err)
	}
	return state, nil
}

func randomURLSafeString(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

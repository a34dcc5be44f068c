package authsvc

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/pkg/ids"
)

// ParseCharacterIDFromSubject parses the "CHARACTER:EVE:{u64}" subject
// claim shape, following jaytripper_esi's parse_character_id.
func ParseCharacterIDFromSubject(subject string) (ids.CharacterID, error) {
	parts := strings.Split(subject, ":")
	if len(parts) != 3 || parts[0] != "CHARACTER" || parts[1] != "EVE" {
		return 0, errkind.New("authsvc.ParseCharacterIDFromSubject", errkind.InvalidSubject,
			"invalid token subject format: "+subject)
	}

	value, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, errkind.New("authsvc.ParseCharacterIDFromSubject", errkind.InvalidSubject,
			"invalid token subject format: "+subject)
	}
	return ids.CharacterID(value), nil
}

// ParseScopeClaim accepts the "scp"/"scope" claim as either a single
// string or an array of strings, following
// ILLUVRSE-Main/reasoning-graph/internal/auth/auth.go's handling of a
// scope claim that may arrive in either shape.
func ParseScopeClaim(claims jwt.MapClaims, claimName string) ([]string, error) {
	raw, ok := claims[claimName]
	if !ok || raw == nil {
		return nil, nil
	}

	switch value := raw.(type) {
	case string:
		if value == "" {
			return nil, nil
		}
		return strings.Fields(value), nil
	case []interface{}:
		scopes := make([]string, 0, len(value))
		for _, item := range value {
			s, ok := item.(string)
			if !ok {
				return nil, errkind.New("authsvc.ParseScopeClaim", errkind.InvalidScopeClaim,
					"scope claim array contains a non-string element")
			}
			scopes = append(scopes, s)
		}
		return scopes, nil
	default:
		return nil, errkind.New("authsvc.ParseScopeClaim", errkind.InvalidScopeClaim,
			"scope claim is neither a string nor an array of strings")
	}
}

// Package vault is the credential vault (component C4): it loads, saves,
// and clears per-character auth sessions in HashiCorp Vault's KV-v2
// secrets engine.
//
// Grounded on sanket-sapate-arc-core's
// packages/go-core/config/vault.go SecretManager, which wraps the same
// github.com/hashicorp/vault/api Logical() client for GetSecret/GetKV2
// reads; SaveSession/ClearSession add the write and delete side this
// repository's vault needs that SecretManager did not.
package vault

import (
	"encoding/json"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"

	"wormhole-tracker/internal/authsvc"
	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/pkg/ids"
)

// Store is a KV-v2-backed authsvc.TokenStore.
type Store struct {
	client *vaultapi.Client
	mount  string
}

// NewStore builds a vault client pointed at address, authenticated with
// token, storing secrets under the given KV-v2 mount.
func NewStore(address, token, mount string) (*Store, error) {
	cfg := vaultapi.DefaultConfig()
	cfg.Address = address

	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, errkind.Wrap("vault.NewStore", errkind.ConfigInvalid, err)
	}
	client.SetToken(token)

	return &Store{client: client, mount: mount}, nil
}

func (s *Store) secretPath(characterID ids.CharacterID) string {
	return fmt.Sprintf("%s/data/character/%s", s.mount, characterID.String())
}

// LoadSession reads the session for characterID. A missing secret is not
// an error: it loads as (nil, nil).
func (s *Store) LoadSession(characterID ids.CharacterID) (*authsvc.Session, error) {
	secret, err := s.client.Logical().Read(s.secretPath(characterID))
	if err != nil {
		return nil, errkind.Wrap("vault.LoadSession", errkind.StorageTransient, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, nil
	}

	raw, ok := data["session"].(string)
	if !ok {
		return nil, nil
	}

	var session authsvc.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, errkind.Wrap("vault.LoadSession", errkind.PayloadSerialization, err)
	}
	return &session, nil
}

// SaveSession writes session, overwriting any existing secret for its
// character.
func (s *Store) SaveSession(session *authsvc.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return errkind.Wrap("vault.SaveSession", errkind.PayloadSerialization, err)
	}

	_, err = s.client.Logical().Write(s.secretPath(session.CharacterID), map[string]interface{}{
		"data": map[string]interface{}{"session": string(raw)},
	})
	if err != nil {
		return errkind.Wrap("vault.SaveSession", errkind.StorageTransient, err)
	}
	return nil
}

// ClearSession deletes the secret for characterID, if any.
func (s *Store) ClearSession(characterID ids.CharacterID) error {
	_, err := s.client.Logical().Delete(s.secretPath(characterID))
	if err != nil {
		return errkind.Wrap("vault.ClearSession", errkind.StorageTransient, err)
	}
	return nil
}

// Package secrets keeps the Google token bundle in the OS keychain.
package secrets

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "jobsheet"
	DefaultAccount = "jobsheet:google:token"
)

var ErrNoToken = errors.New("no token stored")

type TokenBundle struct {
	AccessToken  string    `json:"access_token"`
	Expiry       time.Time `json:"expiry"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}

// ValidAt reports whether the access token is usable at now with margin to spare.
func (b TokenBundle) ValidAt(now time.Time, margin time.Duration) bool {
	return strings.TrimSpace(b.AccessToken) != "" && b.Expiry.After(now.Add(margin))
}

type TokenStore interface {
	Load() (TokenBundle, error)
	Save(TokenBundle) error
	Delete() error
}

// KeyringStore stores one bundle as JSON under a single keychain account.
type KeyringStore struct {
	Service string
	Account string
}

func NewKeyringStore(account string) *KeyringStore {
	if strings.TrimSpace(account) == "" {
		account = DefaultAccount
	}
	return &KeyringStore{Service: KeyringService, Account: account}
}

func (k *KeyringStore) Load() (TokenBundle, error) {
	raw, err := keyring.Get(k.Service, k.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return TokenBundle{}, ErrNoToken
	}
	if err != nil {
		return TokenBundle{}, errors.Wrap(err, "keyring get")
	}
	var b TokenBundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return TokenBundle{}, errors.Wrap(err, "decode token bundle")
	}
	return b, nil
}

func (k *KeyringStore) Save(b TokenBundle) error {
	if strings.TrimSpace(b.AccessToken) == "" && strings.TrimSpace(b.RefreshToken) == "" {
		return errors.New("token bundle is empty")
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return errors.Wrap(keyring.Set(k.Service, k.Account, string(raw)), "keyring set")
}

// Delete is a no-op when nothing is stored.
func (k *KeyringStore) Delete() error {
	err := keyring.Delete(k.Service, k.Account)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return errors.Wrap(err, "keyring delete")
}

// Package cryptox wraps the primitives used to keep credentials encrypted at
// rest: HKDF key derivation and AES-GCM sealing of JSON values.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"

	"github.com/dmitrijs2005/fieldvisit/internal/common"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the AES-256 key length produced by DeriveStorageKey.
const KeySize = 32

const storageKeyInfo = "fieldvisit credential store v1"

// ErrKeySize is returned when a key of the wrong length is supplied.
var ErrKeySize = errors.New("cryptox: key must be 32 bytes")

// DeriveStorageKey expands the install secret into an AES-256 key bound to
// deviceID. The same (secret, deviceID) pair always yields the same key, so a
// store copied to another device cannot be opened with that device's id.
func DeriveStorageKey(secret []byte, deviceID string) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, []byte(deviceID), []byte(storageKeyInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptJSON serializes v to JSON and seals it with AES-GCM under key.
// A fresh random nonce is generated for every call and returned separately.
func EncryptJSON(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(plaintext)

	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = common.GenerateRandByteArray(aead.NonceSize())
	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// DecryptJSON opens ciphertext produced by EncryptJSON and unmarshals the
// plaintext into v. Tampered data, a wrong key or a wrong nonce all fail
// authentication and return an error without touching v.
func DecryptJSON(ciphertext, nonce, key []byte, v any) error {
	aead, err := newGCM(key)
	if err != nil {
		return err
	}
	if len(nonce) != aead.NonceSize() {
		return errors.New("cryptox: invalid nonce size")
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	return json.Unmarshal(plaintext, v)
}

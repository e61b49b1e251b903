// Package cryptox provides the symmetric-crypto primitives used by the
// credential vault: AES-GCM sealing of small payloads and derivation of a
// storage key from a low-entropy machine identifier.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// DeriveStorageKey stretches a machine identifier and salt into a 32-byte
// AES-256 key. The identifier is not a password typed by a human, so the
// argon2id parameters stay on the cheap side.
func DeriveStorageKey(machineID []byte, salt []byte) []byte {
	return argon2.IDKey(machineID, salt, 1, 64*1024, 4, 32)
}

// Seal serializes v to JSON and encrypts it with AES-GCM under key.
// A fresh 12-byte nonce is generated per call and returned alongside the
// ciphertext. The key must be 16, 24, or 32 bytes.
func Seal(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Open decrypts ciphertext produced by Seal and unmarshals the JSON payload
// into v. The key and nonce must match the ones used for sealing.
func Open(ciphertext, nonce, key []byte, v any) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("decryption failed: %w", err)
	}

	return json.Unmarshal(plaintext, v)
}

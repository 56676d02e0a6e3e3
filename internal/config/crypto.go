// Copyright 2026 The Booru Ingest Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidKeySize is returned by ParseKey/NewCryptor when the supplied
// encryption key is not exactly chacha20poly1305.KeySize bytes.
var ErrInvalidKeySize = errors.New("config: encryption key must be 32 bytes")

// errCiphertextTooShort guards Decrypt against truncated/corrupt rows.
var errCiphertextTooShort = errors.New("config: ciphertext shorter than nonce")

// Cryptor seals and opens the Booru and per-site credentials stored in
// the users and site_credentials tables. Credential decryption requires
// an encryption key bootstrap variable; a single process-wide AEAD
// instance is built from it at startup and threaded into Store.
type Cryptor struct {
	aead cipher
}

// cipher is the subset of cipher.AEAD Cryptor needs, named locally so
// this file doesn't have to import crypto/cipher just for the type.
type cipher interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// ParseKey decodes a standard-base64-encoded 32-byte key, the form the
// ENCRYPTION_KEY environment variable is expected to carry.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("config: decode encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeySize
	}

	return key, nil
}

// NewCryptor builds a Cryptor from a raw 32-byte key.
func NewCryptor(key []byte) (*Cryptor, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeySize
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("config: new aead: %w", err)
	}

	return &Cryptor{aead: aead}, nil
}

// Encrypt seals plaintext behind a random nonce and returns a
// base64-encoded "nonce||ciphertext" string suitable for a text column.
func (c *Cryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("config: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Returns an error if stored is malformed or
// the encryption key has changed since the value was sealed.
func (c *Cryptor) Decrypt(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("config: decode ciphertext: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errCiphertextTooShort
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("config: decrypt: %w", err)
	}

	return string(plain), nil
}

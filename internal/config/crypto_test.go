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
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()

	return []byte("01234567890123456789012345678901")
}

func TestEncryptDecryptRoundTrips(t *testing.T) {
	c, err := NewCryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewCryptor: %v", err)
	}

	sealed, err := c.Encrypt("hunter2-booru-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == "hunter2-booru-token" {
		t.Fatalf("Encrypt returned plaintext unchanged")
	}

	plain, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "hunter2-booru-token" {
		t.Errorf("plain = %q, want original", plain)
	}
}

func TestEncryptEmptyStringRoundTrips(t *testing.T) {
	c, err := NewCryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewCryptor: %v", err)
	}

	sealed, err := c.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	plain, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "" {
		t.Errorf("plain = %q, want empty", plain)
	}
}

func TestDecryptEmptyStringIsNoOp(t *testing.T) {
	c, err := NewCryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewCryptor: %v", err)
	}

	plain, err := c.Decrypt("")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "" {
		t.Errorf("plain = %q, want empty", plain)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	c1, err := NewCryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewCryptor: %v", err)
	}
	c2, err := NewCryptor([]byte("98765432109876543210987654321098"))
	if err != nil {
		t.Fatalf("NewCryptor: %v", err)
	}

	sealed, err := c1.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c2.Decrypt(sealed); err == nil {
		t.Fatalf("Decrypt with wrong key succeeded, want error")
	}
}

func TestDecryptRejectsTruncatedCiphertext(t *testing.T) {
	c, err := NewCryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewCryptor: %v", err)
	}

	truncated := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := c.Decrypt(truncated); !errors.Is(err, errCiphertextTooShort) {
		t.Errorf("err = %v, want errCiphertextTooShort", err)
	}
}

func TestNewCryptorRejectsWrongKeySize(t *testing.T) {
	if _, err := NewCryptor([]byte("too-short")); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("err = %v, want ErrInvalidKeySize", err)
	}
}

func TestParseKeyDecodesBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(testKey(t))
	key, err := ParseKey(encoded)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if string(key) != string(testKey(t)) {
		t.Errorf("key mismatch")
	}
}

func TestParseKeyRejectsInvalidBase64(t *testing.T) {
	if _, err := ParseKey("not base64!!"); err == nil {
		t.Fatalf("ParseKey succeeded, want error")
	} else if !strings.Contains(err.Error(), "decode encryption key") {
		t.Errorf("err = %v, want decode error", err)
	}
}

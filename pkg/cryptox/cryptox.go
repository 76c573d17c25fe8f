// Copyright 2025 The imgdock Authors
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

// Package cryptox implements the AES-256-GCM response envelope:
// hex(nonce || ciphertext || tag) under a process-wide static key.
// It obfuscates otherwise plain JSON responses; it is not a security
// boundary against a holder of the key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// NonceSize is the GCM nonce length prepended to every envelope.
	NonceSize = 12
	// KeySize is the required AES-256 key length.
	KeySize = 32
)

// Encrypt seals plaintext under key and returns the hex-encoded
// envelope. A fresh random nonce is generated on every call; reusing a
// nonce under the same key would break the scheme entirely.
func Encrypt(plaintext, key []byte) (string, error) {
	if len(key) != KeySize {
		return "", fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	// Seal appends ciphertext||tag directly after the nonce.
	envelope := aesgcm.Seal(nonce, nonce, plaintext, nil)

	return hex.EncodeToString(envelope), nil
}

// Decrypt opens a hex envelope produced by Encrypt. The first NonceSize
// bytes are the nonce, the remainder is ciphertext||tag.
func Decrypt(envelope string, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	raw, err := hex.DecodeString(envelope)
	if err != nil {
		return nil, err
	}
	if len(raw) < NonceSize {
		return nil, fmt.Errorf("envelope too short: %d bytes", len(raw))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return aesgcm.Open(nil, raw[:NonceSize], raw[NonceSize:], nil)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/widgetsync/internal/util"
)

// Key derivation parameters.
const (
	KeySize          = 32
	SaltSize         = 16
	PBKDF2Iterations = 100_000
)

var (
	// ErrKeyMismatch means the database was sealed under another passphrase.
	ErrKeyMismatch = errors.New("storage key does not match database")

	// ErrInvalidCiphertext means a sealed value is truncated or corrupt.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// sealer encrypts small values with AES-256-GCM. Output is nonce || ct.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(passphrase string, salt []byte) (*sealer, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &sealer{aead: gcm}, nil
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrInvalidCiphertext
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}

func (s *sealer) sealString(v string) ([]byte, error) {
	if v == "" {
		return nil, nil
	}
	return s.seal([]byte(v))
}

func (s *sealer) openString(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	p, err := s.open(b)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// loadOrCreateKeyFile returns the passphrase stored at path, creating a
// random one with 0600 permissions on first use.
func loadOrCreateKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}

	raw, err := randomBytes(KeySize)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	key := hex.EncodeToString(raw)
	if err := util.WriteFileAtomic(path, []byte(key+"\n"), util.PrivateFilePerm); err != nil {
		return "", fmt.Errorf("failed to write key file: %w", err)
	}
	return key, nil
}

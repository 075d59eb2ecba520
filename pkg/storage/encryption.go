// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

// EncryptionKeyEnvVar overrides the session-field encryption key with a
// 32-byte hex-encoded value, bypassing the keyring and machine-derived key.
const EncryptionKeyEnvVar = "LOOM_SESSION_ENCRYPTION_KEY"

// keyDerivationContext is mixed into the machine-identifier hash so the
// derived key is specific to this store, not reusable by anything else that
// happens to hash the same machine id.
const keyDerivationContext = "loom-session-encryption-v1"

// keyringService matches the service name the teacher's CLI already
// registers secrets under, so a single keyring entry namespace is shared.
const keyringService = "loom"

const keyringEncryptionKeyName = "session-encryption-key"

var (
	encryptionKeyOnce sync.Once
	encryptionKey     []byte
	encryptionKeyErr  error
)

// EncryptionKey resolves the 32-byte AES-256 key used for session field
// encryption, in priority order: the LOOM_SESSION_ENCRYPTION_KEY env var (64
// hex chars), a key persisted in the OS keyring, or a key derived from this
// machine's identifier. The result is cached for the process lifetime;
// ResetEncryptionKeyCache clears it for tests.
func EncryptionKey() ([]byte, error) {
	encryptionKeyOnce.Do(func() {
		encryptionKey, encryptionKeyErr = resolveEncryptionKey()
	})
	return encryptionKey, encryptionKeyErr
}

// ResetEncryptionKeyCache clears the cached encryption key (for testing only).
func ResetEncryptionKeyCache() {
	encryptionKeyOnce = sync.Once{}
	encryptionKey = nil
	encryptionKeyErr = nil
}

func resolveEncryptionKey() ([]byte, error) {
	logger, _ := zap.NewProduction()
	if logger == nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	if raw := os.Getenv(EncryptionKeyEnvVar); raw != "" {
		key, err := hex.DecodeString(raw)
		if err == nil && len(key) == 32 {
			logger.Info("using session encryption key from environment")
			return key, nil
		}
		logger.Warn("ignoring invalid session encryption key from environment",
			zap.Int("decoded_len", len(key)), zap.Error(err))
	}

	if stored, err := keyring.Get(keyringService, keyringEncryptionKeyName); err == nil {
		key, decErr := hex.DecodeString(stored)
		if decErr == nil && len(key) == 32 {
			return key, nil
		}
		logger.Warn("ignoring invalid session encryption key from keyring", zap.Error(decErr))
	}

	derived := deriveKeyFromMachine()
	if err := keyring.Set(keyringService, keyringEncryptionKeyName, hex.EncodeToString(derived)); err != nil {
		logger.Warn("failed to persist derived session encryption key to keyring, "+
			"deriving fresh each run", zap.Error(err))
	}
	return derived, nil
}

func deriveKeyFromMachine() []byte {
	sum := sha256.Sum256([]byte(keyDerivationContext + ":" + machineIdentifier()))
	return sum[:]
}

// machineIdentifier reads the platform machine-id file when available,
// falling back to a stable identifier derived from runtime environment
// details when it is not (containers without /etc/machine-id, CI, etc).
func machineIdentifier() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id
			}
		}
	}
	return derivedFallbackIdentifier()
}

func derivedFallbackIdentifier() string {
	hostname, _ := os.Hostname()
	username := "unknown"
	homeDir := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
		homeDir = u.HomeDir
	}
	exe, _ := os.Executable()
	return strings.Join([]string{runtime.GOOS, runtime.GOARCH, hostname, username, homeDir, exe}, "|")
}

// EncryptField encrypts plaintext with AES-256-GCM under EncryptionKey,
// returning "hex(nonce):hex(ciphertext)".
func EncryptField(plaintext string) (string, error) {
	key, err := EncryptionKey()
	if err != nil {
		return "", fmt.Errorf("storage: resolve encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("storage: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("storage: create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("storage: generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptField reverses EncryptField.
func DecryptField(encoded string) (string, error) {
	parts := strings.SplitN(encoded, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("storage: malformed encrypted field")
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("storage: decode nonce: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("storage: decode ciphertext: %w", err)
	}

	key, err := EncryptionKey()
	if err != nil {
		return "", fmt.Errorf("storage: resolve encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("storage: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("storage: create gcm: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("storage: invalid nonce size %d", len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("storage: decrypt: %w", err)
	}
	return string(plaintext), nil
}

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
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEncryptionKeyEnv(t *testing.T, value string) {
	t.Helper()
	t.Setenv(EncryptionKeyEnvVar, value)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ResetEncryptionKeyCache()
	t.Cleanup(ResetEncryptionKeyCache)
	withEncryptionKeyEnv(t, strings.Repeat("ab", 32))

	encoded, err := EncryptField("hello world")
	require.NoError(t, err)
	assert.NotEqual(t, "hello world", encoded)
	assert.Contains(t, encoded, ":")

	decoded, err := DecryptField(encoded)
	require.NoError(t, err)
	assert.Equal(t, "hello world", decoded)
}

func TestEncryptFieldUsesFreshNoncePerCall(t *testing.T) {
	ResetEncryptionKeyCache()
	t.Cleanup(ResetEncryptionKeyCache)
	withEncryptionKeyEnv(t, strings.Repeat("cd", 32))

	first, err := EncryptField("same plaintext")
	require.NoError(t, err)
	second, err := EncryptField("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "nonce must be randomized per encryption")
}

func TestEncryptionKeyPrefersValidEnvKey(t *testing.T) {
	ResetEncryptionKeyCache()
	t.Cleanup(ResetEncryptionKeyCache)

	raw := strings.Repeat("11", 32)
	withEncryptionKeyEnv(t, raw)

	key, err := EncryptionKey()
	require.NoError(t, err)

	want, err := hex.DecodeString(raw)
	require.NoError(t, err)
	assert.Equal(t, want, key)
}

func TestEncryptionKeyIsStableAcrossCallsWithoutEnvVar(t *testing.T) {
	ResetEncryptionKeyCache()
	t.Cleanup(ResetEncryptionKeyCache)
	t.Setenv(EncryptionKeyEnvVar, "")

	first, err := EncryptionKey()
	require.NoError(t, err)

	ResetEncryptionKeyCache()
	second, err := EncryptionKey()
	require.NoError(t, err)

	assert.Equal(t, first, second, "key derived from the machine identifier must be stable")
}

func TestEncryptionKeyIgnoresInvalidEnvKey(t *testing.T) {
	ResetEncryptionKeyCache()
	t.Cleanup(ResetEncryptionKeyCache)
	withEncryptionKeyEnv(t, "not-valid-hex")

	key, err := EncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, 32, "falls back to a derived 32-byte key instead of erroring")
}

func TestDecryptFieldRejectsMalformedInput(t *testing.T) {
	ResetEncryptionKeyCache()
	t.Cleanup(ResetEncryptionKeyCache)
	withEncryptionKeyEnv(t, strings.Repeat("ef", 32))

	_, err := DecryptField("not-the-right-shape")
	assert.Error(t, err)
}

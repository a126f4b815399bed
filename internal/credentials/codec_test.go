package credentials

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodec(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := NewCodec("")
		assert.Error(t, err)
	})

	t.Run("accepts short secret", func(t *testing.T) {
		codec, err := NewCodec("tiny")
		require.NoError(t, err)
		assert.NotNil(t, codec)
	})

	t.Run("accepts secret longer than 32 bytes", func(t *testing.T) {
		codec, err := NewCodec(strings.Repeat("x", 64))
		require.NoError(t, err)
		assert.NotNil(t, codec)
	})
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec("test-encryption-secret")
	require.NoError(t, err)

	plaintexts := []string{
		"sk-proj-abcdefghijklmnopqrstuvwxyz123456",
		"a",
		"exactly-16-bytes",
		strings.Repeat("long", 100),
		"unicode-ключ-🔑",
	}

	for _, plaintext := range plaintexts {
		ciphertext, err := codec.Encrypt(plaintext)
		require.NoError(t, err)

		decrypted, ok := codec.Decrypt(ciphertext)
		require.True(t, ok, "decrypting %q", ciphertext)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestCodec_Encrypt_FreshIVPerCall(t *testing.T) {
	codec, err := NewCodec("test-encryption-secret")
	require.NoError(t, err)

	first, err := codec.Encrypt("sk-same-plaintext")
	require.NoError(t, err)
	second, err := codec.Encrypt("sk-same-plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCodec_Encrypt_Format(t *testing.T) {
	codec, err := NewCodec("test-encryption-secret")
	require.NoError(t, err)

	ciphertext, err := codec.Encrypt("sk-some-key")
	require.NoError(t, err)

	parts := strings.Split(ciphertext, ":")
	require.Len(t, parts, 2)

	iv, err := hex.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, iv, 16)

	payload, err := hex.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Zero(t, len(payload)%16)
}

func TestCodec_Decrypt_MalformedInput(t *testing.T) {
	codec, err := NewCodec("test-encryption-secret")
	require.NoError(t, err)

	valid, err := codec.Encrypt("sk-valid-key")
	require.NoError(t, err)
	validPayload := strings.Split(valid, ":")[1]

	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"no delimiter", "deadbeef"},
		{"missing payload", "deadbeef:"},
		{"missing iv", ":deadbeef"},
		{"too many parts", "aa:bb:cc"},
		{"non-hex iv", "zzzz:" + validPayload},
		{"non-hex payload", strings.Repeat("ab", 16) + ":zzzz"},
		{"short iv", "abcd:" + validPayload},
		{"payload not block aligned", strings.Repeat("ab", 16) + ":abcd"},
		{"garbage padding", strings.Repeat("ab", 16) + ":" + strings.Repeat("cd", 16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decrypted, ok := codec.Decrypt(tt.input)
			assert.False(t, ok)
			assert.Empty(t, decrypted)
		})
	}
}

func TestCodec_Decrypt_WrongSecret(t *testing.T) {
	encrypting, err := NewCodec("secret-one")
	require.NoError(t, err)
	decrypting, err := NewCodec("secret-two")
	require.NoError(t, err)

	ciphertext, err := encrypting.Encrypt("sk-some-key")
	require.NoError(t, err)

	decrypted, ok := decrypting.Decrypt(ciphertext)
	if ok {
		// CBC with random padding bytes can occasionally unpad cleanly under
		// the wrong key, but it must never yield the original plaintext.
		assert.NotEqual(t, "sk-some-key", decrypted)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"typical key", "sk-proj-abcdefghijklmnop", "sk-proj" + "..." + "mnop"},
		{"exactly 8 chars", "12345678", "1234567...5678"},
		{"7 chars redacted", "1234567", "***"},
		{"empty redacted", "", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Mask(tt.input))
		})
	}
}

package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	// ciphertextDelimiter separates the hex-encoded IV from the hex-encoded
	// payload. Hex never contains ':', so splitting is unambiguous.
	ciphertextDelimiter = ":"

	// maskPlaceholder is returned for secrets too short to partially reveal.
	maskPlaceholder = "***"
)

// Codec encrypts and decrypts user API credentials with AES-256-CBC.
// The keying secret is an arbitrary string padded or truncated to 32 bytes,
// so operators can rotate cipher config without regenerating exact-length keys.
type Codec struct {
	key []byte
}

// NewCodec derives the AES key from secret. An empty secret is refused:
// encrypting under an all-zero key would silently protect nothing.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("credential encryption secret must not be empty")
	}

	key := make([]byte, 32)
	copy(key, secret)
	return &Codec{key: key}, nil
}

// Encrypt returns hex(iv) + ":" + hex(payload). The IV is random per call,
// so encrypting the same plaintext twice yields different ciphertexts.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("creating AES cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generating IV: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	return hex.EncodeToString(iv) + ciphertextDelimiter + hex.EncodeToString(encrypted), nil
}

// Decrypt is the inverse of Encrypt. It returns ("", false) for any
// malformed or undecryptable input and never returns an error to the
// caller; failures are logged so operators can spot corrupted rows.
func (c *Codec) Decrypt(ciphertext string) (string, bool) {
	parts := strings.Split(ciphertext, ciphertextDelimiter)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		slog.Warn("credential decrypt failed: malformed ciphertext format")
		return "", false
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		slog.Warn("credential decrypt failed: bad IV", "error", err)
		return "", false
	}

	payload, err := hex.DecodeString(parts[1])
	if err != nil || len(payload) == 0 || len(payload)%aes.BlockSize != 0 {
		slog.Warn("credential decrypt failed: bad payload", "error", err)
		return "", false
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		slog.Warn("credential decrypt failed: cipher init", "error", err)
		return "", false
	}

	decrypted := make([]byte, len(payload))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, payload)

	plaintext, ok := pkcs7Unpad(decrypted, aes.BlockSize)
	if !ok {
		slog.Warn("credential decrypt failed: invalid padding (wrong secret or corrupted data)")
		return "", false
	}

	return string(plaintext), true
}

// Mask returns a display-safe form of a credential: the first 7 characters,
// an ellipsis, and the last 4. Secrets shorter than 8 characters are fully
// redacted rather than partially revealed.
func Mask(plaintext string) string {
	if len(plaintext) < 8 {
		return maskPlaceholder
	}
	return plaintext[:7] + "..." + plaintext[len(plaintext)-4:]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	padLen := int(data[len(data)-1])
	if padLen < 1 || padLen > blockSize || padLen > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, false
		}
	}
	return data[:len(data)-padLen], true
}

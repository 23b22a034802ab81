// Package crypto seals tracker API keys at rest and derives the hashes used
// to authenticate them.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// KeyPrefixLength is how much of an API key may appear in logs and listings.
const KeyPrefixLength = 8

// Sealer encrypts short secrets with AES-256-CBC. The sealed form is
// base64(hex(IV) + hex(ciphertext)).
type Sealer struct {
	block cipher.Block
}

// NewSealer builds a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes for AES-256")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return &Sealer{block: block}, nil
}

// Seal encrypts plainText under a fresh random IV.
func (s *Sealer) Seal(plainText string) (string, error) {
	padding := aes.BlockSize - len(plainText)%aes.BlockSize
	padded := append([]byte(plainText), bytes.Repeat([]byte{byte(padding)}, padding)...)

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed := make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, iv).CryptBlocks(sealed, padded)

	combined := hex.EncodeToString(iv) + hex.EncodeToString(sealed)
	return base64.StdEncoding.EncodeToString([]byte(combined)), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 input: %w", err)
	}
	const ivHexLen = aes.BlockSize * 2
	if len(combined) < ivHexLen {
		return "", errors.New("invalid ciphertext: too short to contain IV")
	}

	iv, err := hex.DecodeString(string(combined[:ivHexLen]))
	if err != nil {
		return "", fmt.Errorf("failed to decode IV from hex: %w", err)
	}
	body, err := hex.DecodeString(string(combined[ivHexLen:]))
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext from hex: %w", err)
	}
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a multiple of the block size")
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(plain, body)

	padding := int(plain[len(plain)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(plain) {
		return "", errors.New("invalid PKCS#7 padding")
	}
	for _, b := range plain[len(plain)-padding:] {
		if int(b) != padding {
			return "", errors.New("invalid PKCS#7 padding bytes")
		}
	}
	return string(plain[:len(plain)-padding]), nil
}

// GenerateAPIKey returns a new random tracker API key.
func GenerateAPIKey() string {
	return uuid.NewString()
}

// HashAPIKey returns the hex SHA-256 digest stored for lookups.
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// APIKeyMatches compares apiKey against a stored hash in constant time.
func APIKeyMatches(apiKey, storedHash string) bool {
	candidate := HashAPIKey(apiKey)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1
}

// KeyPrefix returns the loggable prefix of an API key.
func KeyPrefix(apiKey string) string {
	if len(apiKey) <= KeyPrefixLength {
		return apiKey
	}
	return apiKey[:KeyPrefixLength]
}

// Package secret encrypts sensitive template content at rest.
//
// One authenticated scheme (AES-256-GCM) is used everywhere; the key is a
// single configuration point, never a per-call-site decision.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// scheme is the prefix identifying the sealed-string format:
// gcm:<base64 nonce>:<base64 tag>:<base64 ciphertext>
const scheme = "gcm"

// Redacted is the placeholder returned by display-safe listings instead
// of decrypting sensitive content.
const Redacted = "[encrypted]"

// Codec seals and opens template content with AES-256-GCM. The key is
// derived from the configured secret via SHA-256, which also normalizes
// it to the required length.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a Codec from the configured secret.
func NewCodec(key string) (*Codec, error) {
	if key == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}

	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - c.aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	enc := base64.StdEncoding
	return strings.Join([]string{
		scheme,
		enc.EncodeToString(nonce),
		enc.EncodeToString(tag),
		enc.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens a sealed string produced by Encrypt.
func (c *Codec) Decrypt(sealed string) (string, error) {
	parts := strings.Split(sealed, ":")
	if len(parts) != 4 || parts[0] != scheme {
		return "", fmt.Errorf("malformed sealed content")
	}

	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed nonce: %w", err)
	}
	tag, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("malformed tag: %w", err)
	}
	ciphertext, err := enc.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}
	if len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("malformed sealed content")
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether s carries the sealed-string format.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, scheme+":")
}

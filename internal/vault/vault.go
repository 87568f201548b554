// Package vault protects candidate phone numbers: reversible encryption for
// outbound messaging, deterministic hashing for lookups.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

var (
	// ErrInvalidCiphertext is returned when a stored value does not have
	// the expected iv:ciphertext shape. Callers must treat this as data
	// corruption, not a transient fault.
	ErrInvalidCiphertext = errors.New("INVALID_CIPHERTEXT")
)

// Vault derives an AES-256 key from the configured secret once and reuses
// it for every call.
type Vault struct {
	key      []byte
	hashSalt string
}

// New derives the encryption key from the secret.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is required")
	}

	key, err := scrypt.Key([]byte(secret), []byte("salt"), 32768, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	salt := secret
	if len(salt) > 16 {
		salt = salt[:16]
	}

	return &Vault{key: key, hashSalt: salt}, nil
}

// Encrypt encrypts plaintext with AES-256-CBC under a random IV and returns
// "ivHex:ciphertextHex". Two encryptions of the same value never collide.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. A value without exactly one ":" separator, or
// with non-hex parts, fails with ErrInvalidCiphertext.
func (v *Vault) Decrypt(value string) (string, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return "", ErrInvalidCiphertext
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrInvalidCiphertext
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	return string(unpadded), nil
}

// HashPhone returns a deterministic, non-reversible digest of the
// normalized phone number, suitable for equality lookups.
func (v *Vault) HashPhone(phone string) string {
	sum := sha256.Sum256([]byte(NormalizePhone(phone) + v.hashSalt))
	return hex.EncodeToString(sum[:])
}

// NormalizePhone strips whitespace, "+", parentheses and dashes so that
// different renderings of the same number hash identically.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '+', '-', '(', ')':
			return -1
		}
		return r
	}, phone)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}

// Package secure covers the two crypto touchpoints of the share pipeline:
// AES-256-CBC album id encryption (the "<ivHex>:<cipherHex>" format the
// clients exchange) and random share-token generation.
package secure

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// NewShareToken generates a 128-bit cryptographically random token encoded
// as 32 hex characters.
func NewShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type IDCipher struct {
	key []byte
}

// NewIDCipher expects a 32-byte key (AES-256).
func NewIDCipher(key []byte) (*IDCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("secure.NewIDCipher: key must be 32 bytes, got %d", len(key))
	}
	return &IDCipher{key: key}, nil
}

// Encrypt produces "<ivHex>:<cipherHex>" with a fresh random IV per value.
func (c *IDCipher) Encrypt(id int64) (string, error) {
	const op = "secure.Encrypt"

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}

	plain := pkcs7Pad([]byte(strconv.FormatInt(id, 10)), aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}

	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

func (c *IDCipher) Decrypt(value string) (int64, error) {
	const op = "secure.Decrypt"

	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%s: malformed value", op)
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return 0, fmt.Errorf("%s: bad iv", op)
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return 0, fmt.Errorf("%s: bad ciphertext", op)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", op, err)
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", op, err)
	}

	id, err := strconv.ParseInt(string(plain), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", op, err)
	}
	return id, nil
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("corrupt padding")
		}
	}
	return data[:len(data)-n], nil
}

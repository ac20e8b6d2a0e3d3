package strategy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/credstack/rotor/internal/secure"
)

// GenerateHexKey returns byteLen cryptographically random bytes hex-encoded,
// sealed in an enclave.
func GenerateHexKey(byteLen int) (*secure.Buffer, error) {
	raw := make([]byte, byteLen)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := make([]byte, hex.EncodedLen(byteLen))
	hex.Encode(encoded, raw)
	for i := range raw {
		raw[i] = 0
	}
	return secure.NewBuffer(encoded), nil
}

// GeneratePassword returns a random alphanumeric password of the given
// length, sealed in an enclave.
func GeneratePassword(length int) (*secure.Buffer, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	password := make([]byte, length)
	for i := 0; i < length; i++ {
		password[i] = charset[randomBytes[i]%byte(len(charset))]
	}
	for i := range randomBytes {
		randomBytes[i] = 0
	}
	return secure.NewBuffer(password), nil
}

package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const ResetTokenBytes = 32

// RandomHex returns n bytes of crypto/rand output, hex encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func GenerateResetToken() (string, error) {
	return RandomHex(ResetTokenBytes)
}

// HashToken is the digest persisted in place of a raw refresh or reset token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenMatches compares a presented token with a stored digest.
func TokenMatches(token string, storedHash *string) bool {
	if storedHash == nil || *storedHash == "" || token == "" {
		return false
	}
	presented := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(*storedHash)) == 1
}

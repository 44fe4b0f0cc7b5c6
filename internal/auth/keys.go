package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const (
	apiKeyPrefix       = "sk_"
	clientKeyPrefix    = "ck_"
	clientSecretPrefix = "cs_"
)

func NewAPIKey() (string, error) {
	return randomToken(apiKeyPrefix, 32)
}

func NewClientKey() (string, error) {
	return randomToken(clientKeyPrefix, 16)
}

func NewClientSecret() (string, error) {
	return randomToken(clientSecretPrefix, 32)
}

func randomToken(prefix string, n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}

// HashAPIKey is unsalted so the hash can be looked up directly.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// HashSecret returns "salt_hex$hash_hex".
func HashSecret(raw string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(saltedHash(salt, []byte(raw))), nil
}

// VerifySecret compares raw against a HashSecret value in constant time.
func VerifySecret(stored, raw string) bool {
	saltHex, hashHex, ok := strings.Cut(stored, "$")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil || len(want) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(want, saltedHash(salt, []byte(raw))) == 1
}

func saltedHash(salt, secret []byte) []byte {
	h := sha256.New()
	_, _ = h.Write(salt)
	_, _ = h.Write(secret)
	return h.Sum(nil)
}

func subtleEq(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

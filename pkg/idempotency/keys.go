package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateKey checks an idempotency key against the allowed characters and length
func ValidateKey(key string, maxLength int) error {
	if key == "" {
		return ErrKeyRequired
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxKeyLength
	}
	if len(key) > maxLength {
		return ErrKeyTooLong
	}
	if !keyPattern.MatchString(key) {
		return ErrKeyInvalid
	}
	return nil
}

// ComputeFingerprint computes a SHA256 fingerprint of the request target and body.
// Path parameters identify the resource, so a key reused on another path never matches.
func ComputeFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeKey trims surrounding whitespace
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}

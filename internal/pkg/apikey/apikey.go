package apikey

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const cost = 12

// Hash hashes an API key using bcrypt. Used by the ops CLI to produce
// SEPAY_WEBHOOK_KEY_HASH.
func Hash(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	return string(bytes), err
}

// Verify compares key with hash
func Verify(key, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}

// FromRequest extracts the key from an "Authorization: Apikey <key>" header.
func FromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Apikey") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

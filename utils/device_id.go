package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// DeviceID derives a stable-looking device identifier from the client's
// user agent plus a random salt, so two devices with identical user agents
// still get distinct ids. With no user agent at all it falls back to a
// plain UUID.
func DeviceID(userAgent string) string {
	if userAgent == "" {
		return uuid.New().String()
	}

	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return uuid.New().String()
	}

	h := sha256.New()
	h.Write([]byte(userAgent))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// RequestID returns a short random token used to correlate outbound
// gateway calls in logs and provider dashboards. Falls back to a
// timestamp when the entropy source is unavailable.
func RequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// GenerateCode returns n random bytes as a hex string. Used for
// one-off confirmation codes surfaced to users.
func GenerateCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

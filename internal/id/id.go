// Package id provides unique identifier generation for requests.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique identifier with the given prefix.
// Format: <prefix>-<timestamp>-<random>
// Example: req-1701432000-a1b2c3d4e5f6
func Generate(prefix string) string {
	timestamp := time.Now().Unix()
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		// Fallback to nanoseconds if crypto/rand fails
		return fmt.Sprintf("%s-%d-%d", prefix, timestamp, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, timestamp, hex.EncodeToString(random))
}

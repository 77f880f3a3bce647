// Package fingerprint derives deterministic cache keys from generation inputs.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest over the given parts.
// Parts are separated by a NUL byte so adjacent parts cannot collide
// ("ab"+"c" vs "a"+"bc").
func Sum(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

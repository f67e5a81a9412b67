package helpers

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Sha256String calculates the SHA256 hash of the parts joined by "|" and
// returns its hex representation.
func Sha256String(parts ...string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(parts, "|"))))
}

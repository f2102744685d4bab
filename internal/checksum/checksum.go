// Package checksum computes the content checksums used for If-Match.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Match reports whether ifMatch accepts a file with checksum sum. An empty
// ifMatch and "*" accept anything; surrounding quotes are ignored.
func Match(ifMatch, sum string) bool {
	if ifMatch == "" || ifMatch == "*" {
		return true
	}
	if len(ifMatch) >= 2 && ifMatch[0] == '"' && ifMatch[len(ifMatch)-1] == '"' {
		ifMatch = ifMatch[1 : len(ifMatch)-1]
	}
	return ifMatch == sum
}

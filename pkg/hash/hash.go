package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// DefaultIterations is the number of rounds used for user and IP identifiers.
const DefaultIterations = 5000

// SHA256Hex returns the hex-encoded SHA256 hash of the input string.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// VideoHashPrefix returns the first prefixLen characters of SHA256(videoId).
// Used for privacy-preserving video lookups (k-anonymity).
func VideoHashPrefix(videoID string, prefixLen int) string {
	full := SHA256Hex(videoID)
	if prefixLen > len(full) {
		return full
	}
	return full[:prefixLen]
}

// IteratedSHA256 re-hashes the hex digest of the previous round n times.
// Each round hashes the hex text, not the raw digest bytes, so values stay
// compatible with identifiers already stored by sibling services.
// Zero or negative iterations yield an empty string.
func IteratedSHA256(input string, iterations int) string {
	if iterations <= 0 {
		return ""
	}
	value := input
	for range iterations {
		value = SHA256Hex(value)
	}
	return value
}

// HashUserID hashes a raw user identifier into the public user ID.
func HashUserID(rawUserID string) string {
	return IteratedSHA256(rawUserID, DefaultIterations)
}

// HashSegmentVoter derives the per-segment voter identity. Vote rows are keyed
// by it so one vote record cannot be correlated across segments.
func HashSegmentVoter(rawUserID, segmentID string) string {
	return IteratedSHA256(rawUserID+segmentID, DefaultIterations)
}

// HashIP hashes an IP address with the global salt.
func HashIP(ip, salt string) string {
	return IteratedSHA256(ip+salt, DefaultIterations)
}

package middleware

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Field length limits matching database schema constraints.
const (
	MaxVideoIDLen   = 16
	MaxSegmentIDLen = 128
	MaxUserIDLen    = 256
	MaxServiceLen   = 32
	MaxCategoryLen  = 32
	MinHashPrefix   = 4
	MaxHashPrefix   = 32
)

var (
	// videoIDRe matches YouTube video IDs: alphanumeric, dash, underscore.
	videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// hexRe matches lowercase hex strings (SHA256 hash prefix or full hash).
	hexRe = regexp.MustCompile(`^[0-9a-f]+$`)
	// segmentIDRe matches segment UUIDs: hex hashes or dashed UUIDs.
	segmentIDRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	// categoryRe matches category names like "music_offtopic".
	categoryRe = regexp.MustCompile(`^[a-z_]+$`)
	serviceRe  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// ValidateVideoID checks that a video ID is well-formed and within DB limits.
func ValidateVideoID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "videoID is required"
	}
	if len(id) > MaxVideoIDLen {
		return "", "videoID must be at most 16 characters"
	}
	if !videoIDRe.MatchString(id) {
		return "", "videoID contains invalid characters"
	}
	return id, ""
}

// ValidateHashPrefix checks the hash prefix format.
func ValidateHashPrefix(prefix string) (string, string) {
	prefix = strings.TrimSpace(strings.ToLower(prefix))
	if len(prefix) < MinHashPrefix || len(prefix) > MaxHashPrefix {
		return "", "Hash prefix must be 4-32 characters"
	}
	if !hexRe.MatchString(prefix) {
		return "", "Hash prefix must be hexadecimal"
	}
	return prefix, ""
}

// ValidateSegmentID checks a segment UUID. Empty is left to the vote path,
// which answers it with its own message.
func ValidateSegmentID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if len(id) > MaxSegmentIDLen {
		return "", "UUID must be at most 128 characters"
	}
	if id != "" && !segmentIDRe.MatchString(id) {
		return "", "UUID contains invalid characters"
	}
	return id, ""
}

// ValidateUserID bounds the raw (unhashed) user ID. Its content is opaque.
func ValidateUserID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if len(id) > MaxUserIDLen {
		return "", "userID must be at most 256 characters"
	}
	return id, ""
}

// ValidateCategory checks the shape of a category name. Whether it is a
// known category is decided by the vote path.
func ValidateCategory(category string) (string, string) {
	category = strings.TrimSpace(category)
	if len(category) > MaxCategoryLen {
		return "", "category must be at most 32 characters"
	}
	if category != "" && !categoryRe.MatchString(category) {
		return "", "category contains invalid characters"
	}
	return category, ""
}

// ValidateService checks the service name. Empty means YouTube.
func ValidateService(service string) (string, string) {
	service = strings.TrimSpace(service)
	if len(service) > MaxServiceLen {
		return "", "service must be at most 32 characters"
	}
	if service != "" && !serviceRe.MatchString(service) {
		return "", "service contains invalid characters"
	}
	return service, ""
}

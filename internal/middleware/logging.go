package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Services derive component loggers from it.
var Logger zerolog.Logger

// InitLogger configures JSON logging to stdout at the given level. Unknown
// levels fall back to info.
func InitLogger(level, service string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true

	Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger()
}

const segmentsByPrefix = "/api/skipSegments/"

// redactPath hides the hash prefix of k-anonymous lookups.
func redactPath(path string) string {
	if rest, ok := strings.CutPrefix(path, segmentsByPrefix); ok && rest != "" {
		return segmentsByPrefix + ":hashPrefix"
	}
	return path
}

// ipToken is a short one-way token for correlating requests from one client.
func ipToken(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:6])
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= fiber.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= fiber.StatusBadRequest:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// NewRequestLogger logs one line per request. Query strings are never logged
// because vote requests carry the raw user ID there.
func NewRequestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()

		Logger.WithLevel(levelFor(status)).
			Str("method", c.Method()).
			Str("path", redactPath(c.Path())).
			Int("status", status).
			Dur("duration_ms", time.Since(start)).
			Str("client", ipToken(c.IP())).
			Msg("request")
		return err
	}
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

const corsMaxAge = 24 * 60 * 60

// parseOrigins splits a comma-separated origin list. Empty or "*" allows any
// origin.
func parseOrigins(list string) []string {
	var origins []string
	for _, o := range strings.Split(list, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return []string{"*"}
	}
	return origins
}

// NewCORS allows browser extensions to call the vote and lookup endpoints.
// Clients read the rate limit headers to back off.
func NewCORS(corsOrigins string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  parseOrigins(corsOrigins),
		AllowMethods:  []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions},
		AllowHeaders:  []string{fiber.HeaderContentType},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        corsMaxAge,
	})
}

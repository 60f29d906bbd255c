package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
)

// Pinger is a dependency the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check names one dependency of the readiness probe. A nil Pinger reports
// "disabled" and never degrades readiness.
type Check struct {
	Name   string
	Pinger Pinger
}

type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

// RedisPinger adapts a redis client. A nil client yields a nil Pinger.
func RedisPinger(rdb *redis.Client) Pinger {
	if rdb == nil {
		return nil
	}
	return redisPinger{rdb: rdb}
}

type HealthHandler struct {
	checks  []Check
	startAt time.Time
}

func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		startAt: time.Now(),
	}
}

// Live handles GET /health/live — liveness probe.
func (h *HealthHandler) Live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /health/ready — readiness probe with dependency checks.
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	checks := make(fiber.Map, len(h.checks))
	overallStatus := "healthy"
	for _, chk := range h.checks {
		result := ping(ctx, chk.Pinger)
		checks[chk.Name] = result
		if s := result["status"]; s != "up" && s != "disabled" {
			overallStatus = "degraded"
		}
	}

	resp := fiber.Map{
		"status":         overallStatus,
		"checks":         checks,
		"uptime_seconds": int(time.Since(h.startAt).Seconds()),
	}

	status := fiber.StatusOK
	if overallStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

func ping(ctx context.Context, p Pinger) fiber.Map {
	if p == nil {
		return fiber.Map{"status": "disabled"}
	}

	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return fiber.Map{
			"status":     "down",
			"latency_ms": latency,
			"error":      "connection failed",
		}
	}
	return fiber.Map{
		"status":     "up",
		"latency_ms": latency,
	}
}

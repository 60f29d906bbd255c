package router

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mathieu-neron/segvote/internal/handler"
	"github.com/mathieu-neron/segvote/internal/metrics"
	"github.com/mathieu-neron/segvote/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Vote     *handler.VoteHandler
	Segments *handler.SegmentHandler
	Health   *handler.HealthHandler
}

// Options configures the middleware stack.
type Options struct {
	CORSOrigins string
	VoteRateMax int
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
}

// NewApp creates the Fiber app with the JSON codec used across the service.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:     "segvote",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, opts Options) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(middleware.NewCORS(opts.CORSOrigins))
	app.Use(handler.MetricsMiddleware(opts.Metrics))

	// Health check (before API group, no auth needed)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	if opts.Gatherer != nil {
		app.Get("/metrics", handler.MetricsHandler(opts.Gatherer))
	}

	api := app.Group("/api")

	votes := api.Group("/voteOnSponsorTime", middleware.NewVoteRateLimiter(opts.VoteRateMax).Handler())
	votes.Post("", h.Vote.Submit)
	votes.Get("", h.Vote.Submit)

	segments := api.Group("/skipSegments", middleware.NewSegmentsRateLimiter().Handler())
	segments.Get("", h.Segments.GetByVideoID)
	segments.Get("/:hashPrefix", h.Segments.GetByHashPrefix)
}

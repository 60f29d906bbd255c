package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/mathieu-neron/segvote/internal/config"
	"github.com/mathieu-neron/segvote/internal/db"
	"github.com/mathieu-neron/segvote/internal/handler"
	"github.com/mathieu-neron/segvote/internal/lock"
	"github.com/mathieu-neron/segvote/internal/metrics"
	"github.com/mathieu-neron/segvote/internal/middleware"
	"github.com/mathieu-neron/segvote/internal/repository"
	"github.com/mathieu-neron/segvote/internal/router"
	"github.com/mathieu-neron/segvote/internal/service"
	"github.com/mathieu-neron/segvote/internal/videoapi"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create missing tables before serving")
	return cmd
}

func serve(parent context.Context, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	middleware.InitLogger(cfg.Log.Level, "segvote")
	logger := middleware.Logger

	pools, err := db.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pools.Close()

	if migrate {
		if err := db.Migrate(ctx, pools); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("schema up to date")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	metrics.RegisterPool(reg, "public", pools.Public)
	if pools.Replica != pools.Public {
		metrics.RegisterPool(reg, "replica", pools.Replica)
	}
	metrics.RegisterPool(reg, "private", pools.Private)

	rdb := service.OpenRedis(ctx, cfg.Redis.Enabled, cfg.Redis.URL, logger)
	runner := service.NewTaskRunner(cfg.Tasks.MaxConcurrent, logger)
	cache := service.NewCacheService(rdb, runner, logger, m)
	defer cache.Close()

	// Repositories
	segments := repository.NewSegmentRepo(pools.Public, pools.Replica)
	lockCats := repository.NewLockCategoryRepo(pools.Public)
	users := repository.NewUserRepo(pools.Public)
	catVotes := repository.NewCategoryVoteRepo(pools.Public)
	votes := repository.NewVoteRepo(pools.Private)

	// Services
	videos := videoapi.New(cfg.VideoAPI, logger)
	durations := service.NewDurationService(segments, lockCats, videos, cache, logger, m)
	worker := service.NewDurationWorker(durations, cfg.Duration.BatchInterval, logger)
	categories := service.NewCategoryService(segments, lockCats, votes, catVotes, users, cache, cfg.Categories.Support, logger)

	voteSvc := service.NewVoteService(service.VoteDeps{
		Segments:   segments,
		LockCats:   lockCats,
		Users:      users,
		Votes:      votes,
		Hasher:     service.NewHasher(cfg.Hash.GlobalSalt, cfg.Hash.MemoSizeMB),
		Trust:      service.NewTrustService(users, rdb, videos, logger),
		Locker:     lock.New(rdb, logger, m),
		Cache:      cache,
		Categories: categories,
		Durations:  worker,
		Refresher:  durations,
		Metrics:    m,
		Logger:     logger,
	}, service.VoteOptions{
		MinUserIDLength:   cfg.Vote.MinUserIDLength,
		MaxActiveWarnings: cfg.Vote.MaxActiveWarnings,
		WarningExpiry:     cfg.Vote.WarningExpiry,
		LockTimeout:       cfg.Lock.Timeout,
	})
	segmentSvc := service.NewSegmentService(segments, cache, cfg.Cache.TTL)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(workerCtx)
	}()

	app := router.NewApp()
	router.Setup(app, &router.Handlers{
		Vote:     handler.NewVoteHandler(voteSvc),
		Segments: handler.NewSegmentHandler(segmentSvc),
		Health: handler.NewHealthHandler(
			handler.Check{Name: "database", Pinger: pools.Public},
			handler.Check{Name: "private_database", Pinger: pools.Private},
			handler.Check{Name: "redis", Pinger: handler.RedisPinger(rdb)},
		),
	}, router.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		VoteRateMax: cfg.Server.VoteRateMax,
		Metrics:     m,
		Gatherer:    reg,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Server.Port).Str("env", cfg.Server.Environment).Msg("segvote starting")
		listenErr <- app.Listen(":"+cfg.Server.Port, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-listenErr:
		stopWorker()
		<-workerDone
		runner.Stop(shutdownTimeout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	stopWorker()
	<-workerDone
	if !runner.Stop(shutdownTimeout) {
		logger.Warn().Msg("background tasks did not finish before shutdown")
	}
	return nil
}

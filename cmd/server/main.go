package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/airline-checkin/internal/checkin"
	"github.com/iliyamo/airline-checkin/internal/config"
	"github.com/iliyamo/airline-checkin/internal/database"
	"github.com/iliyamo/airline-checkin/internal/handler"
	"github.com/iliyamo/airline-checkin/internal/lease"
	"github.com/iliyamo/airline-checkin/internal/middleware"
	"github.com/iliyamo/airline-checkin/internal/queue"
	"github.com/iliyamo/airline-checkin/internal/realtime"
	"github.com/iliyamo/airline-checkin/internal/realtime/hub"
	"github.com/iliyamo/airline-checkin/internal/realtime/rawsock"
	"github.com/iliyamo/airline-checkin/internal/realtime/wsock"
	"github.com/iliyamo/airline-checkin/internal/repository"
	"github.com/iliyamo/airline-checkin/internal/router"
	"github.com/iliyamo/airline-checkin/internal/seatgate"
	"github.com/iliyamo/airline-checkin/internal/service"
	"github.com/iliyamo/airline-checkin/internal/utils"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	coord := config.LoadCoordinatorConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig(), logger)
	if rdb != nil {
		defer rdb.Close()
	}

	// realtime fan-out: one registry per transport kind
	opts := realtime.Options{
		QueueSize:   coord.QueueSize,
		SendTimeout: coord.SendTimeout,
		Retry:       realtime.RetryPolicy{Attempts: coord.RetryAttempts, Backoff: coord.RetryBackoff},
	}
	hubs := realtime.NewRegistry(realtime.KindHub, opts, logger)
	duplex := realtime.NewRegistry(realtime.KindDuplex, opts, logger)
	raw := realtime.NewRegistry(realtime.KindRaw, opts, logger)
	broadcaster := realtime.NewBroadcaster(logger, hubs, duplex, raw)

	var relay *realtime.Relay
	if rdb != nil {
		relay = realtime.NewRelay(rdb, coord.RelayChannel, broadcaster, logger)
		broadcaster.AddSink(relay)
	}

	// coordination core
	table := lease.NewTable(broadcaster, lease.WithLogger(logger))
	janitor := lease.NewJanitor(table, coord.JanitorInterval, logger)
	pruner := realtime.NewPruner(table, coord.HeartbeatWindow, coord.PruneInterval, nil, logger, hubs, duplex, raw)
	gate := seatgate.New(coord.SeatGateTimeout)
	engine := checkin.NewEngine(checkin.SQLStore(repository.NewCheckInStore(db)), table, gate, broadcaster, logger)

	svc := service.NewCheckInService(service.Deps{
		Seats:     repository.NewSeatRepo(db),
		Flights:   repository.NewFlightRepo(db),
		Bookings:  repository.NewBookingRepo(db),
		Engine:    engine,
		Leases:    table,
		Events:    broadcaster,
		Publisher: service.NewAMQPPublisher(cfg.AMQPURL, logger),
		LeaseTTL:  coord.LeaseTTL,
		Logger:    logger,
	})

	verify := func(token string) (string, error) {
		claims, err := utils.ParseAccessToken(cfg.JWTSecret, token)
		if err != nil {
			return "", err
		}
		return claims.StaffID(), nil
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewStaffRepo(db), repository.NewTokenRepo(db)), cfg.JWTSecret)
	router.RegisterCheckIn(e, router.CheckIn{
		Handler:   handler.NewCheckInHandler(svc),
		Hub:       hub.NewHandler(hubs, middleware.StaffID, hub.DefaultKeepAlive, logger),
		Socket:    wsock.NewHandler(duplex, svc, verify, logger),
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return janitor.Run(gctx) })
	g.Go(func() error { return pruner.Run(gctx) })
	g.Go(func() error { return queue.NewConsumer(cfg.AMQPURL, queue.DefaultLogPath, logger).Run(gctx) })
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil {
				// a lost relay only isolates this instance
				logger.Error("relay stopped", "error", err)
			}
			return nil
		})
	}
	if coord.RawSocketAddr != "" {
		rs := rawsock.NewServer(raw, svc, verify, logger)
		g.Go(func() error { return rs.ListenAndServe(gctx, coord.RawSocketAddr) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		// closing the registries ends open streams so Shutdown does not wait on them
		broadcaster.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	svc.Wait()
	return err
}

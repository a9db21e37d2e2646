package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-pos/internal/config"
	"github.com/iliyamo/bus-pos/internal/database"
	"github.com/iliyamo/bus-pos/internal/handler"
	"github.com/iliyamo/bus-pos/internal/logger"
	"github.com/iliyamo/bus-pos/internal/metrics"
	"github.com/iliyamo/bus-pos/internal/middleware"
	"github.com/iliyamo/bus-pos/internal/model"
	"github.com/iliyamo/bus-pos/internal/queue"
	"github.com/iliyamo/bus-pos/internal/repository"
	"github.com/iliyamo/bus-pos/internal/repository/memory"
	"github.com/iliyamo/bus-pos/internal/router"
	"github.com/iliyamo/bus-pos/internal/service"
	"github.com/iliyamo/bus-pos/internal/telemetry"
)

const serviceName = "bus-pos"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.ConfigFor(cfg.Env, cfg.LogLevel, cfg.LogFormat))
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint, cfg.OTLPInsecure, log)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	m := metrics.New()

	// Storage.
	var (
		db    *sql.DB
		store repository.Store
	)
	switch cfg.Store {
	case "memory":
		mem := memory.NewStore()
		mem.PutTerminal(model.POSTerminal{ID: "demo-1", Identifier: "DEMO-01", Location: "local", IsActive: true})
		store = mem
		log.Warn("using in-memory store; data is lost on exit", zap.String("terminal_id", "demo-1"))
	default:
		var err error
		db, err = database.Open(ctx, database.Config{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if cfg.Migrate {
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			log.Info("schema migrated")
		}
		store = repository.NewMySQLStore(db)
	}

	// Redis backs rate limiting, the report cache and optionally seat leases.
	var rdb *redis.Client
	if c, err := config.NewRedisClient(ctx, config.LoadRedisConfig()); err != nil {
		log.Warn("redis unavailable; rate limiting and report cache disabled", zap.Error(err))
	} else {
		rdb = c
		defer rdb.Close()
	}

	var locks repository.SeatLockStore
	switch {
	case cfg.SeatLockBackend == "redis":
		if rdb == nil {
			return errors.New("SEAT_LOCK_BACKEND=redis but redis is unavailable")
		}
		locks = repository.NewRedisSeatLockStore(rdb, "seatlock")
	case cfg.Store == "memory":
		locks = memory.NewSeatLocks()
	default:
		locks = repository.NewSeatLockRepo(db)
	}

	// Change events.
	var notifier service.Notifier = service.NopNotifier{}
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.RabbitURL, cfg.EventsExchange, log)
		defer pub.Close()
		notifier = pub
	}
	if cfg.AuditEnabled {
		consumer := &queue.AuditConsumer{URL: cfg.RabbitURL, Exchange: cfg.EventsExchange, Path: cfg.AuditLogPath, Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	opts := service.Options{Logger: log, Metrics: m, Notifier: notifier}
	seats := service.NewSeatLockManager(locks, store.Stores().Tickets, cfg.SeatLockTTL, opts)
	reports := service.NewReportService(store, cfg.CashTolerance)
	register := service.NewCashRegisterService(store, reports, cfg.CashTolerance, opts)
	sales := service.NewSaleService(store, seats, opts)
	tickets := service.NewTicketService(store, opts)

	if cfg.SeatLockSweepInterval > 0 {
		go seats.RunSweeper(ctx, cfg.SeatLockSweepInterval)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.RequestLogger(log, m))

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	router.RegisterRoutes(e, handler.Health(pinger), m.Handler())

	pos := router.POS{
		JWTSecret: cfg.JWTSecret,
		Terminals: handler.NewTerminalHandler(register, reports),
		Sales:     handler.NewSaleHandler(sales),
		Seats:     handler.NewSeatHandler(seats),
		Tickets:   handler.NewTicketHandler(tickets),
	}
	if rdb != nil {
		pos.RateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
		pos.ReportCache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}
	router.RegisterPOS(e, pos)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("store", cfg.Store), zap.String("seat_lock_backend", cfg.SeatLockBackend))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}

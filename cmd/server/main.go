package main // Entry point package

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/rs/zerolog"

    "github.com/iliyamo/live-event-booking/internal/clock"
    "github.com/iliyamo/live-event-booking/internal/config"
    "github.com/iliyamo/live-event-booking/internal/database"
    "github.com/iliyamo/live-event-booking/internal/handler"
    "github.com/iliyamo/live-event-booking/internal/logging"
    "github.com/iliyamo/live-event-booking/internal/middleware"
    "github.com/iliyamo/live-event-booking/internal/queue"
    "github.com/iliyamo/live-event-booking/internal/repository"
    "github.com/iliyamo/live-event-booking/internal/repository/memory"
    "github.com/iliyamo/live-event-booking/internal/router"
    "github.com/iliyamo/live-event-booking/internal/service"
)

func main() {
    _ = godotenv.Load() // .env is optional; real env vars win

    cfg := config.Load()
    log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
    logging.SetGlobal(log)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    health := map[string]handler.Pinger{}
    clk := clock.NewSystem()

    var store service.Store
    switch cfg.Storage {
    case config.StorageMemory:
        store = memory.New(memory.WithClock(clk))
        log.Warn().Msg("using in-memory storage; data is lost on restart")
    default:
        db := openMySQL(ctx, cfg, log)
        defer db.Close()
        health["mysql"] = db
        store = repository.NewMySQLStore(db)
    }

    rdb := config.NewRedisClient(config.LoadRedisConfig())
    if rdb == nil {
        log.Warn().Msg("redis unavailable; rate limiting and seat cache disabled")
    } else {
        defer rdb.Close()
        health["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
    }
    cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log)

    var publisher service.Publisher = service.NopPublisher()
    if cfg.RabbitMQURL != "" {
        async := service.NewAsyncPublisher(service.NewAMQPPublisher(cfg.RabbitMQURL, log), 1024, log)
        defer async.Close()
        publisher = async

        consumer := &queue.Consumer{URL: cfg.RabbitMQURL, LogDir: "logs", Log: log}
        go func() {
            if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
                log.Error().Err(err).Msg("booking consumer stopped")
            }
        }()
    } else {
        log.Warn().Msg("RABBITMQ_URL not set; domain messages are not published")
    }

    opts := []service.Option{
        service.WithLogger(log),
        service.WithPublisher(publisher),
        service.WithCacheInvalidator(cache),
        service.WithNegotiationTTL(cfg.NegotiationTTL),
        service.WithTokenCost(cfg.TokenBcryptCost),
    }
    layout := service.NewLayoutService(store, clk, opts...)
    lifecycle := service.NewLifecycleService(store, clk, opts...)
    booking := service.NewBookingService(store, clk, opts...)
    ledger := service.NewLedgerService(store, clk, opts...)

    go lifecycle.RunNegotiationSweeper(ctx, cfg.NegotiationSweepInterval)

    e := echo.New()
    e.HideBanner = true
    e.HidePort = true
    e.Use(echomw.Recover())
    e.Use(middleware.RequestLogger(log))

    router.RegisterRoutes(e, router.Handlers{
        Venues:   handler.NewVenueHandler(layout, log),
        Events:   handler.NewEventHandler(lifecycle, log),
        Bookings: handler.NewBookingHandler(booking, log),
        Tickets:  handler.NewTicketHandler(ledger, log),
        Health:   handler.Health(health),
    }, router.Middleware{
        JWTSecret: cfg.JWTSecret,
        RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
        SeatCache: cache.Middleware(),
    })

    addr := ":" + cfg.Port
    go func() {
        log.Info().Str("addr", addr).Str("env", cfg.Env).Str("storage", cfg.Storage).Msg("listening")
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal().Err(err).Msg("server failed")
        }
    }()

    <-ctx.Done()
    log.Info().Msg("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Error().Err(err).Msg("graceful shutdown failed")
    }
}

func openMySQL(ctx context.Context, cfg config.Config, log zerolog.Logger) *sql.DB {
    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatal().Err(err).Msg("connect mysql")
    }
    if err := database.Migrate(ctx, db); err != nil {
        log.Fatal().Err(err).Msg("apply schema")
    }
    return db
}

package main

import (
    "context"
    "errors"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/rs/zerolog"
    "github.com/spf13/cobra"
    "golang.org/x/sync/errgroup"

    "github.com/iliyamo/trunk-player/internal/config"
    "github.com/iliyamo/trunk-player/internal/database"
    "github.com/iliyamo/trunk-player/internal/handler"
    "github.com/iliyamo/trunk-player/internal/live"
    "github.com/iliyamo/trunk-player/internal/logger"
    "github.com/iliyamo/trunk-player/internal/metrics"
    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/queue"
    "github.com/iliyamo/trunk-player/internal/repository"
    "github.com/iliyamo/trunk-player/internal/router"
    "github.com/iliyamo/trunk-player/internal/service"
    "github.com/iliyamo/trunk-player/internal/utils"
)

func serveCommand() *cobra.Command {
    var migrate bool
    cmd := &cobra.Command{
        Use:   "serve",
        Short: "Start the HTTP server",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := config.Load()
            if err != nil {
                return err
            }
            log := logger.New(cfg.LogLevel)
            ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
            defer stop()
            return serve(ctx, cfg, log, migrate)
        },
    }
    cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
    return cmd
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger, migrate bool) error {
    db, err := database.Open(ctx, cfg)
    if err != nil {
        return err
    }
    defer db.Close()
    if migrate {
        if err := database.Migrate(ctx, db, database.MySQL); err != nil {
            return err
        }
    }

    reg := prometheus.NewRegistry()
    reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    m, err := metrics.New(reg)
    if err != nil {
        return err
    }

    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Warn().Msg("redis unavailable: cache, rate limit and cross-process live delivery disabled")
    } else {
        defer rdb.Close()
    }

    hub := live.NewHub(m)
    bridge := live.NewBridge(hub, rdb, cfg.LivePrefix, logger.Component(log, "live-bridge"))

    resolver := service.NewAccessResolver(
        repository.NewTalkGroupRepo(db),
        repository.NewAccessRepo(db),
        service.AccessOptions{Restrict: cfg.AccessRestrict, AnonymousTime: cfg.AnonymousTime},
    )

    ingestor := service.NewIngestor(db, service.IngestOptions{
        ImportToken:  cfg.ImportToken,
        FixAudioName: cfg.FixAudioName,
        HookTimeout:  cfg.FanoutTimeout,
    }, logger.Component(log, "ingest"), m)
    fanout := service.NewRouter(repository.NewScanListRepo(db), bridge, cfg.FanoutTimeout, logger.Component(log, "fanout"), m)
    ingestor.AddHook(fanout.Hook())

    var consumer *queue.UsageConsumer
    if url := config.AMQPURL(); url != "" {
        pub := queue.NewPublisher(url, log)
        defer pub.Close()
        ingestor.AddHook(service.Hook{Name: "queue", Run: pub.PublishImported})
        consumer = queue.NewUsageConsumer(url, repository.NewTalkGroupRepo(db), cfg.RecentWindow(), log)
    } else {
        log.Info().Msg("no broker configured: import events and recent usage disabled")
    }

    gateway := live.NewGateway(hub,
        func(token string) (model.Principal, error) {
            claims, err := utils.ParseAccessToken(cfg.JWTSecret, token)
            if err != nil {
                return model.Principal{}, err
            }
            return model.UserPrincipal(claims.UserID, claims.Role), nil
        },
        resolver.TalkGroupFilter,
        live.GatewayConfig{WriteWait: cfg.LiveWriteWait, Buffer: cfg.LiveBuffer},
        logger.Component(log, "live"), m,
    )

    e := echo.New()
    e.HideBanner = true
    e.HidePort = true
    e.Use(echomw.Recover())
    e.Use(echomw.RequestID())
    e.Use(requestLogger(log))

    router.Register(e, router.Deps{
        DB: db,
        API: handler.NewAPI(db, resolver, handler.Options{
            AudioURLBase: cfg.AudioURLBase,
            Location:     cfg.Location,
        }, log),
        Import:    &handler.ImportHandler{Ingestor: ingestor, Metrics: m, Log: logger.Component(log, "import")},
        Gateway:   gateway,
        JWTSecret: cfg.JWTSecret,
        Redis:     rdb,
        Cache:     config.LoadCacheConfig(),
        RateLimit: config.LoadRateLimitConfig(),
        Gatherer:  reg,
    })

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error {
        addr := ":" + cfg.Port
        log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            return err
        }
        return nil
    })
    g.Go(func() error { return bridge.Run(gctx) })
    if consumer != nil {
        g.Go(func() error { return consumer.Run(gctx) })
    }
    g.Go(func() error {
        <-gctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        log.Info().Msg("shutting down")
        return e.Shutdown(shutdownCtx)
    })
    return g.Wait()
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogURI:       true,
        LogStatus:    true,
        LogMethod:    true,
        LogLatency:   true,
        LogRequestID: true,
        LogError:     true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            ev := log.Info()
            if v.Error != nil || v.Status >= http.StatusInternalServerError {
                ev = log.Error().Err(v.Error)
            }
            ev.Str("method", v.Method).
                Str("uri", v.URI).
                Int("status", v.Status).
                Dur("latency", v.Latency).
                Str("request_id", v.RequestID).
                Msg("request")
            return nil
        },
    })
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"postback-relay/internal/config"
	"postback-relay/internal/controller"
	"postback-relay/internal/db"
	"postback-relay/internal/delivery"
	httpserver "postback-relay/internal/http"
	"postback-relay/internal/keylock"
	"postback-relay/internal/ratelimit"
	"postback-relay/internal/render"
	"postback-relay/internal/repository"
	"postback-relay/internal/routing"
	"postback-relay/internal/service"
)

const shutdownTimeout = 10 * time.Second

// stores bundles the persistence side of the pipeline.
type stores struct {
	profiles repository.ProfileRepository
	routes   repository.RouteRepository
	events   repository.EventRepository
	pingers  []repository.Pinger
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("open stores", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	locker, err := newLocker(ctx, cfg, st)
	if err != nil {
		slog.Error("init key lock", "error", err)
		os.Exit(1)
	}

	renderer, err := render.NewTemplateRenderer()
	if err != nil {
		slog.Error("compile templates", "error", err)
		os.Exit(1)
	}

	analytics, err := startAnalytics(ctx, cfg, st)
	if err != nil {
		slog.Error("init analytics", "error", err)
		os.Exit(1)
	}

	if cfg.FiberPrefork {
		slog.Warn("prefork enabled; rate limits are enforced per process, so the effective per-profile limit is multiplied by the worker count")
	}

	deps := service.Dependencies{
		Profiles:  st.profiles,
		Events:    st.events,
		Router:    routing.NewRouter(st.routes),
		Renderer:  renderer,
		Sender:    newSender(cfg),
		Limiter:   ratelimit.NewSlidingWindow(),
		Locker:    locker,
		Analytics: analytics,
	}

	postbackService := service.NewPostbackService(deps)
	postbackController := controller.NewPostbackController(postbackService, cfg, st.pingers...)
	server := httpserver.NewServer(cfg, postbackController)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if err := server.Shutdown(shutdownTimeout); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	slog.Info("starting server", "addr", cfg.HTTPPort, "store", cfg.StoreDriver, "kinds", cfg.PostbackKind)
	if err := server.Listen(cfg.HTTPPort); err != nil {
		slog.Error("server stopped", "error", err)
	}

	if analytics != nil {
		analytics.Shutdown()
	}
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler).With("service", cfg.ServiceName))
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, pool.Close)
		if err := db.MigratePostgres(ctx, pool); err != nil {
			st.close()
			return nil, err
		}
		st.profiles = repository.NewPostgresProfileRepository(pool)
		st.routes = repository.NewPostgresRouteRepository(pool)
		st.events = repository.NewPostgresEventRepository(pool)
		st.pingers = append(st.pingers, pool)
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = sqlDB.Close() })
		st.profiles = repository.NewSQLiteProfileRepository(sqlDB)
		st.routes = repository.NewSQLiteRouteRepository(sqlDB)
		st.events = repository.NewSQLiteEventRepository(sqlDB)
		st.pingers = append(st.pingers, repository.NewSQLPinger(sqlDB))
	}

	if cfg.ProfilesFile != "" {
		fileStore, err := repository.NewFileStore(cfg.ProfilesFile)
		if err != nil {
			st.close()
			return nil, err
		}
		stopWatch, err := fileStore.Watch()
		if err != nil {
			slog.Warn("profiles file watch disabled", "path", cfg.ProfilesFile, "error", err)
		} else {
			st.closers = append(st.closers, stopWatch)
		}
		st.profiles = fileStore
		st.routes = fileStore
		slog.Info("profiles and routes loaded from file", "path", cfg.ProfilesFile)
	}

	return st, nil
}

func newLocker(ctx context.Context, cfg *config.Config, st *stores) (keylock.Locker, error) {
	if cfg.RedisURL == "" {
		return keylock.NewMemoryLocker(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	locker := keylock.NewRedisLocker(client, cfg.LockTTL, cfg.LockRetryEvery)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := locker.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, err
	}

	st.closers = append(st.closers, func() { _ = client.Close() })
	st.pingers = append(st.pingers, locker)
	slog.Info("redis key lock enabled", "addr", opts.Addr)
	return locker, nil
}

func newSender(cfg *config.Config) delivery.Sender {
	if cfg.TelegramBotToken == "" {
		slog.Warn("TELEGRAM_BOT_TOKEN not set; messages are logged instead of delivered")
		return delivery.LogSender{}
	}
	return delivery.NewTelegramSender(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.DeliveryTimeout)
}

func startAnalytics(ctx context.Context, cfg *config.Config, st *stores) (service.AnalyticsWorker, error) {
	if cfg.ClickHouseDSN == "" {
		return nil, nil
	}

	conn, err := db.NewClickHouse(ctx, cfg.ClickHouseDSN)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateClickHouse(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	st.closers = append(st.closers, func() { _ = conn.Close() })

	repo := repository.NewConversionRepository(conn)
	return service.NewAnalyticsWorker(repo, cfg.AnalyticsBufferSize, cfg.AnalyticsBatchSize, cfg.AnalyticsFlushEvery), nil
}

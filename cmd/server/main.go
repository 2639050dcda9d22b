// @title Clicker API
// @version 1.0
// @description 点击计数、排行榜、装扮商店与在线状态
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/clicker/config"
	"github.com/d60-Lab/clicker/internal/api"
	"github.com/d60-Lab/clicker/internal/api/handler"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/pkg/cache"
	"github.com/d60-Lab/clicker/pkg/database"
	"github.com/d60-Lab/clicker/pkg/logger"
	"github.com/d60-Lab/clicker/pkg/monitor"
	"github.com/d60-Lab/clicker/pkg/tracing"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if enabled, err := monitor.Init(cfg.Sentry, version); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	} else if enabled {
		defer monitor.Flush()
	}

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	store := repository.NewStore(db)
	if cfg.Database.AutoMigrate {
		if err := store.InitSchema(); err != nil {
			logger.Fatal("migrate failed", zap.Error(err))
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
	}

	snapshots, err := snapshotCache(cfg, rdb)
	if err != nil {
		logger.Fatal("snapshot cache init failed", zap.Error(err))
	}
	stats := service.NewStatsService(store, cache.NewLoader(snapshots).WithFillTimeout(cfg.Stats.FillTimeout), service.StatsOptionsFromConfig(cfg.Stats))

	var presence *service.PresenceService
	var notifier service.PresenceNotifier
	stopPresence := func(context.Context) error { return nil }
	if rdb != nil {
		presence = service.NewPresenceService(rdb, store, stats, service.PresenceOptionsFromConfig(cfg.Presence))
		stopPresence = presence.Start()
		notifier = presence
	} else {
		logger.Warn("redis disabled, presence endpoints unavailable")
	}

	catalog := service.NewCatalogService(store)
	if cfg.Catalog.SeedDefaults {
		if n, err := catalog.SeedDefaults(ctx); err != nil {
			logger.Error("seed catalog failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("default catalog installed", zap.Int("items", n))
		}
	}

	h := handler.New(handler.Deps{
		Clicks:      service.NewClickService(store, cfg.Clicks.Window, notifier, nil),
		Stats:       stats,
		Economy:     service.NewEconomyService(store, notifier, nil),
		Catalog:     catalog,
		Presence:    presence,
		Store:       store,
		Redis:       rdb,
		ClickWindow: cfg.Clicks.Window,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      api.NewRouter(cfg, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := stopPresence(shutdownCtx); err != nil {
		logger.Warn("presence queue not drained", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

// snapshotCache 多实例部署时快照放在 Redis，否则用进程内 LRU
func snapshotCache(cfg *config.Config, rdb *redis.Client) (cache.Cache, error) {
	if rdb != nil && cfg.Stats.UseRedisSnapshots {
		return cache.NewRedis(rdb, "clicker:snapshot:"), nil
	}
	mem, err := cache.NewMemory(cfg.Stats.MemoryCacheSize, time.Now)
	if err != nil {
		return nil, err
	}
	return mem, nil
}

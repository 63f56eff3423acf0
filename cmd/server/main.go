package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"zhutan/internal/config"
	"zhutan/internal/db"
	"zhutan/internal/middleware"
	"zhutan/internal/router"
	"zhutan/internal/services"
	"zhutan/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "optional TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Server.Debug)

	// Initialize Database
	gdb, err := db.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		slog.Error("open database failed", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(gdb); err != nil {
		slog.Error("migrate failed", "error", err)
		os.Exit(1)
	}
	if err := db.SeedCategories(gdb); err != nil {
		slog.Error("seed categories failed", "error", err)
		os.Exit(1)
	}

	cache, closeCache := newCache(cfg.Cache)
	defer closeCache()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 聚合补算：队列 worker + 每日全量巡检
	reconciler := services.NewReconciler(gdb)
	go reconciler.Run(ctx)
	reconciler.StartScheduledSweep(ctx)

	directory := services.NewStoreDirectory(gdb, cache, cfg.Cache.TTL())
	polls := services.NewPollService(gdb, reconciler)
	engagement := services.NewEngagementService(gdb)
	discussions := services.NewDiscussionService(gdb, polls, engagement, directory)
	discussions.SetPageLimits(cfg.Listing.DefaultPageSize, cfg.Listing.MaxPageSize)

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())

	// Setup Sessions
	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 30 * 24 * 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("zhutan_session", store))
	r.Use(middleware.LoadUser(gdb))

	router.RegisterRoutes(r, router.Services{
		Discussions: discussions,
		Comments:    services.NewCommentService(gdb),
		Votes:       services.NewVoteService(gdb, reconciler),
		Polls:       polls,
		Engagement:  engagement,
		Directory:   directory,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("zhutan server starting", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	// 处理完队列中剩余的补算任务
	reconciler.Drain(shutdownCtx)

	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
}

func setupLogger(debug bool) {
	var handler slog.Handler
	if debug {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

// newCache 配置了 REDIS_URL 时使用 Redis，连接失败回退到进程内 LRU
func newCache(cfg config.CacheConfig) (utils.Cache, func()) {
	if cfg.RedisURL != "" {
		rc, err := utils.NewRedisCache(cfg.RedisURL)
		if err == nil {
			slog.Info("using redis cache")
			return rc, func() { rc.Close() }
		}
		slog.Warn("redis unavailable, falling back to local cache", "error", err)
	}

	lc, err := utils.NewLocalCache(cfg.Size)
	if err != nil {
		slog.Error("create local cache failed", "error", err)
		os.Exit(1)
	}
	return lc, func() {}
}

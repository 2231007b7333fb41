package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nitesh/social_agent/internal/api"
	"github.com/nitesh/social_agent/internal/config"
	"github.com/nitesh/social_agent/internal/hashtag"
	"github.com/nitesh/social_agent/internal/lock"
	"github.com/nitesh/social_agent/internal/logging"
	"github.com/nitesh/social_agent/internal/news"
	"github.com/nitesh/social_agent/internal/service"
	"github.com/nitesh/social_agent/internal/store"
	"github.com/nitesh/social_agent/internal/summary"
	"github.com/nitesh/social_agent/internal/twitter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	repo, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer repo.Close()

	// simple ping + wait (db might be starting in docker)
	for i := 0; i < 10; i++ {
		if err = repo.Ping(context.Background()); err == nil {
			break
		}
		logger.Warn("waiting for db", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("could not connect to db: %v", err)
	}
	if err := repo.RunMigrations(context.Background()); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	locker := newLocker(cfg, logger)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	newsClient := news.NewClient(cfg.NewsAPIURL, httpClient, logger)
	twitterClient := twitter.NewClient(cfg.TwitterAPIURL, cfg.Twitter, httpClient, logger)
	if !cfg.Twitter.Complete() {
		logger.Warn("twitter credentials incomplete; publishing will fail until they are set")
	}

	extractor := hashtag.NewExtractor(cfg.Hashtags, cfg.MaxHashtags)
	summarizer := summary.New(extractor, cfg.SoftCap)

	svc := service.NewService(repo, newsClient, twitterClient, summarizer, locker, logger)
	handler := api.NewHandler(svc, repo, logger)
	router := api.NewRouter(handler, logger, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// newLocker prefers Redis so approvals stay exclusive across replicas, and
// falls back to an in-process lock when Redis is not configured or down.
func newLocker(cfg *config.Config, logger *slog.Logger) lock.Locker {
	if cfg.RedisAddr == "" {
		return lock.NewLocalLocker()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed, using in-process approval lock", "addr", cfg.RedisAddr, "error", err)
		rdb.Close()
		return lock.NewLocalLocker()
	}
	return lock.NewRedisLocker(rdb, cfg.LockTTL)
}

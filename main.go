package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Bazaar/middleware"
	"Bazaar/pkg/cache"
	"Bazaar/pkg/config"
	"Bazaar/pkg/database"
	"Bazaar/pkg/logger"
	"Bazaar/pkg/realtime"
	"Bazaar/pkg/repository"
	"Bazaar/pkg/services"
	"Bazaar/pkg/token"
	"Bazaar/routes"
)

const tokenIssuer = "bazaar"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var revocations token.RevocationStore = token.NewMemoryStore()
	if cfg.RedisURL != "" {
		rs, err := token.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rs.Close()
		revocations = rs
		zl.Info("token revocations stored in redis")
	}

	products := cache.New(cfg.ProductCacheMaxItems)
	go products.RunJanitor(ctx, time.Minute)

	limiter := middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitCapacity)
	go limiter.RunJanitor(ctx, time.Minute)

	hub := realtime.NewHub(zl.Named("realtime"))
	chat := services.NewChatService(repository.New(db), hub, products, cfg.ProductCacheTTL, zl.Named("chat"))

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(routes.Deps{
		DB:          db,
		Tokens:      token.NewManager(cfg.JWTSecret, tokenIssuer, cfg.TokenTTL),
		Revocations: revocations,
		Hub:         hub,
		Chat:        chat,
		Limiter:     limiter,
		Log:         zl,
		CORSOrigins: cfg.CORSOrigins,
		WSSendQueue: cfg.WSSendQueue,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv), zap.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// websocket connections are hijacked and not tracked by Shutdown
	hub.Close()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"nutritrack/docs"
	"nutritrack/internal/auth"
	"nutritrack/internal/cache"
	"nutritrack/internal/config"
	"nutritrack/internal/db"
	"nutritrack/internal/handler"
	"nutritrack/internal/logger"
	"nutritrack/internal/metrics"
	"nutritrack/internal/repository"
	"nutritrack/internal/router"
	"nutritrack/internal/service"
)

// @title Nutritrack API
// @version 1.0
// @description Nutrition tracking API: product catalog, consumption log and daily summaries behind cookie-based JWT authentication.
// @host localhost:8080
// @BasePath /
// @schemes http
func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gormDB, err := db.Open(cfg)
	if err != nil {
		log.Fatal("database init", "error", err)
	}

	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			log.Fatal("reset database", "error", err)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("auto-migrate", "error", err)
	}

	rdb := cache.NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.StorageTimeout)
	redisErr := rdb.Ping(pingCtx).Err()
	cancel()
	if redisErr != nil {
		log.Warn("redis unreachable, product cache and rate limiter degrade", "addr", cfg.RedisAddr, "error", redisErr)
	}

	// Repositories
	userRepo := repository.NewUserRepository(gormDB)
	productRepo := repository.NewProductRepository(gormDB)
	userProductRepo := repository.NewUserProductRepository(gormDB)

	// Auth components
	jwtService := auth.NewJWTService(cfg.TokenSecret, cfg.RefreshTokenSecret, cfg.RefreshTokenTTL)
	var ledger auth.Ledger
	switch cfg.LedgerBackend {
	case config.LedgerSQL:
		ledger = repository.NewRefreshTokenRepository(gormDB)
	case config.LedgerRedis:
		if redisErr != nil {
			log.Fatal("redis token ledger unavailable", "error", redisErr)
		}
		ledger = auth.NewRedisLedger(rdb)
	default:
		log.Fatal("unsupported LEDGER_BACKEND", "value", cfg.LedgerBackend)
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// Services
	cacheClient := cache.New(rdb)
	authService := service.NewAuthService(userRepo, jwtService, ledger, cfg.StorageTimeout)
	userService := service.NewUserService(userRepo, authService, cacheClient, cfg.StorageTimeout)
	productService := service.NewProductService(productRepo, cacheClient, cfg.StorageTimeout)
	consumptionService := service.NewConsumptionService(userProductRepo, productRepo, cfg.DayLocation, cfg.StorageTimeout)

	e := echo.New()
	e.HideBanner = true
	router.Register(
		e,
		cfg,
		log,
		authService,
		rdb,
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(userService),
		handler.NewProductHandler(productService),
		handler.NewSeedHandler(productService),
		handler.NewConsumptionHandler(consumptionService),
	)

	if cfg.SwaggerHost != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
		docs.SwaggerInfo.Host = host
	}
	log.Info("swagger documentation available", "url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server starting", "addr", addr, "db", cfg.DBDriver, "ledger", cfg.LedgerBackend)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
}

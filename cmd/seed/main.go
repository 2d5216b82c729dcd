package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"nutritrack/internal/auth"
	"nutritrack/internal/config"
	"nutritrack/internal/db"
	"nutritrack/internal/logger"
	"nutritrack/internal/repository"
	"nutritrack/internal/service"
)

// Seeds the product catalog from a JSON array of products, read from a file
// path or an http(s) URL, and optionally bootstraps an admin account from
// SEED_ADMIN_USERNAME, SEED_ADMIN_PASSWORD and SEED_ADMIN_EMAIL.
func main() {
	source := flag.String("products", os.Getenv("SEED_PRODUCTS"), "path or URL of a JSON array of products")
	flag.Parse()

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
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("auto-migrate", "error", err)
	}
	log.Info("database ready", "driver", cfg.DBDriver)

	ctx := context.Background()
	userRepo := repository.NewUserRepository(gormDB)
	productService := service.NewProductService(repository.NewProductRepository(gormDB), nil, cfg.StorageTimeout)

	if username := os.Getenv("SEED_ADMIN_USERNAME"); username != "" {
		// Registration never issues tokens, so the ledger is never touched here.
		jwtService := auth.NewJWTService(cfg.TokenSecret, cfg.RefreshTokenSecret, cfg.RefreshTokenTTL)
		authService := service.NewAuthService(userRepo, jwtService, repository.NewRefreshTokenRepository(gormDB), cfg.StorageTimeout)
		userService := service.NewUserService(userRepo, authService, nil, cfg.StorageTimeout)

		admin, err := userService.EnsureAdmin(ctx, username, os.Getenv("SEED_ADMIN_PASSWORD"), os.Getenv("SEED_ADMIN_EMAIL"))
		if err != nil {
			log.Fatal("bootstrap admin", "username", username, "error", err)
		}
		log.Info("admin ready", "username", admin.Username, "id", admin.ID.String())
	}

	if *source == "" {
		log.Info("no product source given, skipping catalog seed")
		return
	}

	log.Info("fetching products", "source", *source)
	products, err := loadProducts(ctx, *source)
	if err != nil {
		log.Fatal("load products", "error", err)
	}

	count, err := productService.Seed(ctx, products)
	if err != nil {
		log.Fatal("seed products", "created", count, "error", err)
	}
	log.Info("seed completed", "created", count)
}

// loadProducts reads the product array from a URL or a local file.
func loadProducts(ctx context.Context, source string) ([]service.ProductInput, error) {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch products: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("products source returned status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		r = f
	}
	defer r.Close()

	var products []service.ProductInput
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("parse products: %w", err)
	}
	return products, nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/example/bank-manager/internal/api"
	"github.com/example/bank-manager/internal/config"
	"github.com/example/bank-manager/internal/ledger"
	"github.com/example/bank-manager/internal/security"
	"github.com/example/bank-manager/internal/users"
	"github.com/example/bank-manager/pkg/audit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	ledgerStore, userStore, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var rateLimiter *security.RedisTokenBucket
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		rateLimiter = &security.RedisTokenBucket{
			Redis:      redisClient,
			Prefix:     "bank_api",
			Capacity:   getenvInt("API_RATE_LIMIT_CAPACITY", 20),
			RefillRate: float64(getenvInt("API_RATE_LIMIT_REFILL_PER_SEC", 10)),
		}
	}

	router, err := api.NewRouter(api.Dependencies{
		Logger:       logger,
		Ledger:       ledger.NewService(ledgerStore),
		Users:        users.NewService(userStore),
		Auditor:      audit.NewChainLogger(),
		RateLimiter:  rateLimiter,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("bank api listening", "addr", cfg.ListenAddr, "env", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStores builds the ledger and user stores for the configured backend
// and returns a cleanup func closing whatever was opened.
func openStores(ctx context.Context, cfg *config.Config) (ledger.Store, users.Store, func(), error) {
	switch {
	case cfg.UseMemory():
		return ledger.NewMemoryStore(), users.NewMemoryStore(), func() {}, nil

	case cfg.UsePostgres():
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		ls := ledger.NewPostgresStore(pool)
		us := users.NewPostgresStore(pool)
		if err := ls.SetupSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		if err := us.SetupSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return ls, us, pool.Close, nil

	default:
		db, err := ledger.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		ls := ledger.NewSQLiteStore(db)
		us := users.NewSQLiteStore(db)
		if err := ls.SetupSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		if err := us.SetupSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return ls, us, func() { _ = db.Close() }, nil
	}
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitcore/internal/auth"
	"github.com/mmynk/splitcore/internal/config"
	"github.com/mmynk/splitcore/internal/ledger"
	"github.com/mmynk/splitcore/internal/lock"
	"github.com/mmynk/splitcore/internal/metrics"
	"github.com/mmynk/splitcore/internal/middleware"
	"github.com/mmynk/splitcore/internal/service"
	"github.com/mmynk/splitcore/internal/storage/sqlite"
	"github.com/mmynk/splitcore/pkg/api/apiconnect"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Connect RPC server",
		Long: `Serve the expense, group and settlement services over Connect (HTTP/1.1
and h2c), with Prometheus metrics on /metrics.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("lock", config.LockMemory, "group lock backend (memory, redis)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("lock.backend", cmd.Flags().Lookup("lock"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireSecret(); err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	locker, closeLocker, err := newLocker(cmd.Context(), cfg.Lock)
	if err != nil {
		return err
	}
	defer closeLocker()

	m := metrics.New()
	l := ledger.New(store, locker, m)
	jwtManager := auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// Metrics see every call, including rejected ones; logging sees the caller.
	interceptors := connect.WithInterceptors(
		middleware.MetricsInterceptor(m),
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewExpenseServiceHandler(service.NewExpenseService(store, l), interceptors))
	mux.Handle(apiconnect.NewGroupServiceHandler(service.NewGroupService(store, l), interceptors))
	mux.Handle(apiconnect.NewSettlementServiceHandler(service.NewSettlementService(store, l), interceptors))
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	handler := h2c.NewHandler(loggingMiddleware(corsMiddleware(cfg.Server.CORSOrigin, mux)), &http2.Server{})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		slog.Info("Connect server starting", "address", cfg.Server.Addr, "lock", cfg.Lock.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down server", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newLocker builds the configured group locker. The returned func releases
// its resources.
func newLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, func(), error) {
	if cfg.Backend != config.LockRedis {
		return lock.NewMemoryLocker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	opts := lock.DefaultRedisOptions()
	opts.Prefix = cfg.Prefix
	opts.Expiry = cfg.Expiry
	opts.Tries = cfg.Tries

	locker, err := lock.NewRedisLocker(client, opts)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	slog.Info("Using redis group locks", "addr", cfg.RedisAddr, "prefix", cfg.Prefix)
	return locker, func() { _ = client.Close() }, nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"scribedesk/internal/api"
	"scribedesk/internal/auth"
	"scribedesk/internal/backend"
	"scribedesk/internal/config"
	"scribedesk/internal/intake"
	"scribedesk/internal/redis"
	"scribedesk/internal/storage"
	"scribedesk/internal/worker"
	"scribedesk/internal/workspace"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// a missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(os.Getenv("SCRIBEDESK_CONFIG"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbType := os.Getenv("SCRIBEDESK_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	logger.Info("opening database", "driver", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		return err
	}
	history, err := storage.NewHistory(db, dbType)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.BasicConfig.EnableRedis {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	client, err := backend.New(cfg.Backend)
	if err != nil {
		return err
	}
	reader, err := intake.NewTextReader(ctx)
	if err != nil {
		return err
	}

	manager, err := workspace.NewManager(workspace.Options{
		Backend: client,
		Reader:  reader,
		History: history,
		Redis:   rdb,
		TTL:     time.Duration(cfg.BasicConfig.WorkspaceTTL) * time.Minute,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	dispatcher := worker.NewDispatcher(
		cfg.BasicConfig.MinWorkers,
		cfg.BasicConfig.MaxWorkers,
		cfg.BasicConfig.QueueSize,
		time.Duration(cfg.BasicConfig.WorkerIdleTimeout)*time.Minute,
	)
	defer dispatcher.Close()
	manager.OnEvict(dispatcher.CancelKey)

	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger), api.CORS(cfg.BasicConfig.AllowedOrigins), api.MaxBodySize(api.MaxRequestBytes))
	handler := api.NewHandler(manager, dispatcher, history, auth.NewGateway(cfg.BasicConfig.GatewayAPIKey), logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

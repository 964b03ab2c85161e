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

	"golang.org/x/sync/errgroup"

	"github.com/quoteflow-erp/quoteflow/internal/app"
	"github.com/quoteflow-erp/quoteflow/internal/catalog"
	"github.com/quoteflow-erp/quoteflow/internal/platform/cache"
	"github.com/quoteflow-erp/quoteflow/internal/platform/db"
	"github.com/quoteflow-erp/quoteflow/internal/purchaseorders"
	"github.com/quoteflow-erp/quoteflow/internal/quotes"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var cat catalog.Catalog = catalog.NewRepository(pool)
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
	} else {
		cat = catalog.NewCached(cat, redisClient, cfg.CatalogCacheTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	quoteRepo := quotes.NewRepository(pool)
	quoteService := quotes.NewService(quoteRepo, cat, logger)
	quoteHandler := quotes.NewHandler(logger, quoteService)

	poRepo := purchaseorders.NewRepository(pool)
	poService := purchaseorders.NewService(poRepo, logger)
	poHandler := purchaseorders.NewHandler(logger, poService)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		QuoteHandler:         quoteHandler,
		PurchaseOrderHandler: poHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

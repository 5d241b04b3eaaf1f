package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/agfood/agfood/internal/app"
	"github.com/agfood/agfood/internal/auth"
	"github.com/agfood/agfood/internal/business"
	"github.com/agfood/agfood/internal/catalog/locations"
	"github.com/agfood/agfood/internal/catalog/products"
	"github.com/agfood/agfood/internal/catalog/suppliers"
	"github.com/agfood/agfood/internal/clients"
	"github.com/agfood/agfood/internal/invoicing"
	"github.com/agfood/agfood/internal/ledger"
	"github.com/agfood/agfood/internal/migrate"
	"github.com/agfood/agfood/internal/observability"
	"github.com/agfood/agfood/internal/platform/db"
	"github.com/agfood/agfood/internal/reports"
	"github.com/agfood/agfood/internal/shared"
)

func main() {
	_ = godotenv.Load()

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

	if err := migrate.Run(ctx, pool, logger); err != nil {
		logger.Error("migrate schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "agfood_session", cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, logger)
	if err := authService.SeedAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logger.Error("seed admin", slog.Any("error", err))
		os.Exit(1)
	}
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, metrics)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	invoicingRepo := invoicing.NewRepository(pool)
	invoicingService := invoicing.NewService(invoicingRepo, auditLogger, metrics)
	invoicingHandler := invoicing.NewHandler(logger, invoicingService)

	productRepo := products.NewRepository(pool)
	productService := products.NewService(productRepo, ledgerService)
	productHandler := products.NewHandler(logger, productService)

	supplierService := suppliers.NewService(suppliers.NewRepository(pool))
	supplierHandler := suppliers.NewHandler(logger, supplierService)

	locationService := locations.NewService(locations.NewRepository(pool))
	locationHandler := locations.NewHandler(logger, locationService)

	clientService := clients.NewService(clients.NewRepository(pool))
	clientHandler := clients.NewHandler(logger, clientService)

	businessService := business.NewService(pool)
	businessHandler := business.NewHandler(logger, businessService)

	reportsService := reports.NewService(reports.NewRepository(pool), ledgerService)
	reportsHandler := reports.NewHandler(logger, reportsService)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		ProductHandler:   productHandler,
		SupplierHandler:  supplierHandler,
		LocationHandler:  locationHandler,
		ClientHandler:    clientHandler,
		LedgerHandler:    ledgerHandler,
		InvoicingHandler: invoicingHandler,
		BusinessHandler:  businessHandler,
		ReportsHandler:   reportsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

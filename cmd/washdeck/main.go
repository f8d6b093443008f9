package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/washdeck/washdeck/pkg/api"
	"github.com/washdeck/washdeck/pkg/billing"
	"github.com/washdeck/washdeck/pkg/bookings"
	"github.com/washdeck/washdeck/pkg/catalog"
	"github.com/washdeck/washdeck/pkg/config"
	"github.com/washdeck/washdeck/pkg/fleet"
	"github.com/washdeck/washdeck/pkg/observability"
	"github.com/washdeck/washdeck/pkg/promos"
	"github.com/washdeck/washdeck/pkg/reconcile"
	"github.com/washdeck/washdeck/pkg/storage/postgres"
	"github.com/washdeck/washdeck/pkg/vehicles"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	skipMigrations := flag.Bool("skip-migrations", false, "Skip running schema migrations on startup")
	flag.Parse()

	// .env is optional; env vars win either way.
	_ = godotenv.Load()

	if err := run(*configPath, *skipMigrations); err != nil {
		fmt.Fprintf(os.Stderr, "washdeck: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, skipMigrations bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := observability.NewLogger(observability.ParseLogLevel(cfg.LogLevel), os.Stdout)

	// Stripe-facing services log through logrus for field-rich entries.
	serviceLog := logrus.New()
	serviceLog.SetFormatter(&logrus.JSONFormatter{})

	db, err := postgres.Connect(postgres.ConnectionConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if !skipMigrations {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := postgres.RunMigrations(ctx, db)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	var cache *postgres.Cache
	if cfg.Redis.URL != "" {
		cache, err = postgres.NewCache(cfg.Redis.URL, cfg.Redis.CacheTTL)
		if err != nil {
			// The cache is an optimization; refuse only hard failures.
			log.Warn("redis unavailable, plan cache disabled", "error", err)
			cache = nil
		}
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	health := observability.NewHealth()
	health.Register("postgres", func(ctx context.Context) error { return db.PingContext(ctx) })
	if cache != nil {
		health.Register("redis", cache.Ping)
	}

	// Domain services
	stripeClient := billing.InstrumentStripeClient(
		billing.NewStripeClient(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret),
		metrics.StripeErrorsTotal)
	planCatalog := catalog.NewPostgresService(db, cache)
	registrar := vehicles.NewPostgresRegistrar(db)
	promoService := promos.NewPostgresService(db)

	billingService, err := billing.NewStripeService(db, stripeClient, planCatalog, registrar, cfg.Server.BaseURL, serviceLog)
	if err != nil {
		return fmt.Errorf("failed to create billing service: %w", err)
	}

	var archive fleet.Archive
	if cfg.S3.Bucket != "" {
		s3Archive, err := fleet.NewS3Archive(context.Background(), fleet.S3ArchiveConfig{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to create invoice archive: %w", err)
		}
		health.Register("s3", s3Archive.HealthCheck)
		archive = s3Archive
	}
	fleetService := fleet.NewPostgresService(db, archive, serviceLog)

	feed := bookings.NewFeed(serviceLog, metrics.FeedClientsActive)
	bookingService := bookings.NewPostgresService(db, feed, serviceLog, metrics.BookingsCreatedTotal)

	// HTTP surface
	server := api.NewServer(cfg.Server.Addr, log, metrics, health,
		api.NewBillingHandlers(billingService, promoService, log, metrics),
		api.NewCatalogHandlers(planCatalog, log),
		api.NewBookingHandlers(bookingService, feed, log),
		api.NewPromoHandlers(promoService, log),
		api.NewFleetHandlers(fleetService, log),
	)

	metricsSrv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	reconciler := reconcile.New(db, stripeClient, fleetService, serviceLog)
	if err := reconciler.Start(cfg.Reconcile.Schedule); err != nil {
		return err
	}
	defer reconciler.Stop()

	// Config hot-reload adjusts the log level without a restart.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
			log.Info("config reloaded", "log_level", updated.LogLevel)
		})
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sample the connection pool for the db gauges.
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.ObserveDBStats(db.Stats())
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		log.Info("metrics server listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("api shutdown failed", "error", err)
		}
		return metricsSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

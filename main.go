package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"car-price-app/config"
	"car-price-app/engine"
	"car-price-app/features"
	"car-price-app/mapping"
	"car-price-app/models"
	"car-price-app/scraper"
	"car-price-app/server"
	"car-price-app/services"
	"car-price-app/storage"
	"car-price-app/utils"
)

func main() {
	cfg := config.Load()
	logger, err := utils.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Car Price App starting ===")
	logger.Info("Config: model %s (%s) | columns %s | listings %s | in-flight %d",
		cfg.ModelType, modelLocation(cfg), cfg.ColumnsPath, cfg.ListingsSource, cfg.MaxInFlight)

	table, err := loadMapping(cfg.MappingPath)
	if err != nil {
		return fmt.Errorf("mapping: %w", err)
	}

	columns, err := engine.LoadColumns(cfg.ColumnsPath)
	if err != nil {
		return fmt.Errorf("failed to load model columns: %w", err)
	}
	logger.Info("Loaded %d model columns", len(columns))

	model, err := engine.Load(engine.ModelConfig{
		Type:    cfg.ModelType,
		Path:    cfg.ModelPath,
		URL:     cfg.ModelURL,
		Timeout: time.Duration(cfg.ModelTimeoutMs) * time.Millisecond,
	}, columns)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	builder, err := features.NewBuilder(table, columns)
	if err != nil {
		return err
	}

	var store *storage.SQLStore
	if cfg.NeedsDB() {
		retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger}
		store, err = storage.Open(ctx, cfg.DBDriver, cfg.DSN(), retry)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", cfg.DBDriver, err)
		}
		defer store.Close()
		logger.Info("Connected to %s", cfg.DBDriver)
	}

	listings, err := loadListings(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("listings: %w", err)
	}
	logger.Info("Loaded %d reference listings from %s", len(listings), cfg.ListingsSource)

	var sinks []storage.EstimateWriter
	if cfg.EstimateLogCSV != "" {
		w, err := storage.NewCSVWriter(cfg.EstimateLogCSV)
		if err != nil {
			return err
		}
		defer w.Close()
		sinks = append(sinks, w)
		logger.Info("Logging estimates to %s", cfg.EstimateLogCSV)
	}
	if cfg.EstimateLogDB {
		sinks = append(sinks, store)
		logger.Info("Logging estimates to %s table estimates", cfg.DBDriver)
	}

	estimator := services.NewEstimator(builder, model, listings, logger)
	opts := server.Options{
		Currency:        cfg.Currency,
		MaxRequestBytes: cfg.MaxRequestBytes,
		CORSOrigins:     cfg.CORSOrigins,
	}
	if store != nil {
		opts.Ready = store.Ping
	}
	srv, err := server.New(estimator, table, utils.NewGate(cfg.MaxInFlight), logger, opts, sinks...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutMs)*time.Millisecond)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func loadMapping(path string) (*mapping.Table, error) {
	if path == "" {
		return mapping.Default()
	}
	return mapping.Load(path)
}

// loadListings reads the reference listings once. They are never reloaded.
func loadListings(ctx context.Context, cfg *config.Config, store *storage.SQLStore, logger *utils.Logger) ([]*models.Listing, error) {
	switch cfg.ListingsSource {
	case "static", "":
		return storage.StaticListings{}.FetchListings(ctx)

	case "csv":
		return readAndClean(ctx, storage.NewCSVListingReader(cfg.ListingsCSVPath), logger)

	case "scrape":
		s, err := scraper.New(scraper.Options{
			URL:         cfg.ScrapeURL,
			Pages:       cfg.PagesToScrape,
			PerPage:     cfg.ListingsPerPage,
			RateLimit:   time.Duration(cfg.RateLimitMs) * time.Millisecond,
			PageTimeout: time.Duration(cfg.ScrapeTimeoutMs) * time.Millisecond,
			ChromeBin:   cfg.ChromeBin,
			Selectors: scraper.Selectors{
				Card:        cfg.ScrapeCardSelector,
				Label:       cfg.ScrapeLabelSelector,
				Price:       cfg.ScrapePriceSelector,
				Description: cfg.ScrapeDetailsSelector,
				Next:        cfg.ScrapeNextSelector,
			},
		}, logger, &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger})
		if err != nil {
			return nil, err
		}
		return readAndClean(ctx, s, logger)

	case "db":
		if cfg.ListingsSeed {
			n, err := store.SeedListings(ctx, storage.DefaultListings())
			if err != nil {
				return nil, err
			}
			if n > 0 {
				logger.Info("[listings] seeded %d default listings", n)
			}
		}
		return store.FetchListings(ctx)

	default:
		return nil, fmt.Errorf("unknown LISTINGS_SOURCE %q (want static, csv, scrape or db)", cfg.ListingsSource)
	}
}

func readAndClean(ctx context.Context, r storage.RawListingReader, logger *utils.Logger) ([]*models.Listing, error) {
	raw, err := r.ReadRaw(ctx)
	if err != nil {
		return nil, err
	}
	listings := services.NewCleaner(logger).Clean(raw)
	if len(listings) == 0 {
		logger.Warn("[listings] no usable rows out of %d", len(raw))
	}
	return listings, nil
}

func modelLocation(cfg *config.Config) string {
	if cfg.ModelType == engine.TypeHTTP {
		return cfg.ModelURL
	}
	return cfg.ModelPath
}

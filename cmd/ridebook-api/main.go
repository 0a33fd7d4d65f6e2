// README: Entry point; loads config, wires stores, notification sinks and services, starts HTTP server and the archive scheduler.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ridebook/internal/config"
	httptransport "ridebook/internal/http"
	"ridebook/internal/http/middleware"
	"ridebook/internal/infra"
	"ridebook/internal/logging"
	"ridebook/internal/modules/archive"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/notify"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
)

const shutdownTimeout = 15 * time.Second

type stores struct {
	rides   ride.Store
	drivers driver.Store
	rates   pricing.Store
	ledger  archive.Store
	records notify.RecordStore
	guard   archive.Guard
	db      *pgxpool.Pool
	redis   *redis.Client
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("ridebook-api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	loc := cfg.Service.Location()
	quiet, err := ride.ParseQuietHours(cfg.Service.QuietFrom, cfg.Service.QuietTo)
	if err != nil {
		return err
	}

	if cfg.Firebase.ProjectID == "" {
		return errors.New("RIDEBOOK_FIREBASE_PROJECT_ID is required")
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}
	if st.redis != nil {
		defer st.redis.Close()
	}

	sinks, closeSinks, err := buildSinks(ctx, cfg, app, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	driverSvc := driver.NewService(st.drivers)
	pricingSvc := pricing.NewService(st.rates)
	if n, err := pricingSvc.EnsureRates(ctx, pricing.DefaultRateTable(pricing.DefaultYears(time.Now()))); err != nil {
		return err
	} else if n > 0 {
		log.Info("seeded default rates", "count", n)
	}

	dispatcher := notify.NewDispatcher(st.records, driverSvc, log, sinks...).
		WithAdmins(cfg.Service.AdminEmails, cfg.Service.AdminPhones)
	defer dispatcher.Wait()

	rideSvc := ride.NewService(st.rides, driverSvc, pricingSvc, dispatcher, ride.Options{
		Location: loc,
		Quiet:    quiet,
		Logger:   log,
	})
	archiveSvc := archive.NewService(st.rides, st.ledger, st.guard, driverSvc, archive.Options{
		Location: loc,
		LockTTL:  cfg.Archive.LockTTL,
		Logger:   log,
	})

	var limiter *middleware.RateLimiter
	if st.redis != nil {
		limiter = middleware.NewRateLimiter(st.redis, cfg.HTTP.RateLimit, time.Minute)
	}

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Rides:       rideSvc,
		Drivers:     driverSvc,
		Pricing:     pricingSvc,
		Archive:     archiveSvc,
		Records:     st.records,
		Verifier:    verifier,
		Logger:      log,
		RateLimiter: limiter,
		NewRelic:    infra.NewNewRelic(cfg.NewRelic.Enabled, cfg.NewRelic.AppName, cfg.NewRelic.LicenseKey, log),
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go archiveSvc.RunScheduler(ctx, cfg.Archive.Tick)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTP.Addr, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.Store.Driver == "memory" {
		return stores{
			rides:   ride.NewMemStore(),
			drivers: driver.NewMemStore(),
			rates:   pricing.NewStaticStore(nil),
			ledger:  archive.NewMemStore(),
			records: notify.NewMemRecordStore(),
			guard:   archive.NewMemGuard(),
		}, nil
	}

	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return stores{}, err
	}
	rdb := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password)
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		return stores{}, err
	}
	return stores{
		rides:   ride.NewPGStore(db),
		drivers: driver.NewPGStore(db),
		rates:   pricing.NewPGStore(db),
		ledger:  archive.NewPGStore(db),
		records: notify.NewPGRecordStore(db),
		guard:   archive.NewRedisGuard(rdb),
		db:      db,
		redis:   rdb,
	}, nil
}

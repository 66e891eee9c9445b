package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"flightbook/internal/adapters/flightapi"
	server "flightbook/internal/adapters/http_server"
	"flightbook/internal/adapters/observability"
	redisad "flightbook/internal/adapters/redis"
	"flightbook/internal/app"
	"flightbook/internal/domain"
	"flightbook/internal/shared"
	mysqlrepo "flightbook/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// backend
	client, err := flightapi.New(cfg.FlightAPIBase, cfg.FlightAPIRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize flight API client")
	}

	// redis
	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
	defer rc.Close()
	cache := redisad.NewFromClient(rc)

	// db (optional)
	var repo *mysqlrepo.Repo
	if cfg.MySQLDSN != "" {
		dsn, err := mysqlrepo.DSN(cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid MYSQL_DSN")
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		defer db.Close()
		log.Info().Msg("database connection ok")
		repo = mysqlrepo.New(db)
	}

	var slot domain.OfferSlot
	switch cfg.SlotBackend {
	case shared.SlotRedis:
		slot = redisad.NewOfferSlot(rc)
	case shared.SlotMySQL:
		slot = repo
	}

	var catalog domain.AirportRepository
	if repo != nil {
		catalog = repo
	}

	l := log.Logger
	h := &server.Handlers{
		Resolver: app.NewResolver(client, l),
		Search:   app.NewSearchService(client, cache, cfg.CacheTTL, l),
		Airports: app.NewAirportDirectory(client, catalog, cache, 24*time.Hour, l),
		Backend:  client,
		Carrier:  app.NewCarrier(slot, cfg.SlotTTL, l),
		Log:      l,
	}

	// http
	srv := server.New(l, 30*time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("backend", cfg.FlightAPIBase).
		Str("slot", cfg.SlotBackend).
		Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

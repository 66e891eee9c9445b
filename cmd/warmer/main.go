package main

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"flightbook/internal/adapters/flightapi"
	"flightbook/internal/adapters/observability"
	redisad "flightbook/internal/adapters/redis"
	"flightbook/internal/app"
	"flightbook/internal/domain"
	"flightbook/internal/shared"
	mysqlrepo "flightbook/internal/storage/mysql"
)

const batchSize = 20

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("base", cfg.FlightAPIBase).
		Int("workers", cfg.WarmWorkers).
		Int("airports", len(cfg.WarmAirports)).
		Msg("warmer starting")

	if cfg.MySQLDSN == "" {
		log.Fatal().Msg("MYSQL_DSN is required")
	}
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
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := flightapi.New(cfg.FlightAPIBase, cfg.FlightAPIRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize flight API client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	dir := app.NewAirportDirectory(client, repo, cache, 24*time.Hour, log.Logger)

	sem := semaphore.NewWeighted(int64(max(cfg.WarmWorkers, 1)))
	var wg sync.WaitGroup

	for _, batch := range batches(cfg.WarmAirports, batchSize) {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(codes []string) {
			defer wg.Done()
			defer sem.Release(1)

			found, err := client.Airports(ctx, codes)
			if err != nil {
				log.Warn().Strs("codes", codes).Err(err).Msg("airport fetch failed")
				return
			}
			as := make([]domain.Airport, 0, len(found))
			for _, a := range found {
				as = append(as, a)
			}
			if err := repo.UpsertAirports(ctx, as); err != nil {
				log.Warn().Strs("codes", codes).Err(err).Msg("airport upsert failed")
				return
			}
			dir.Invalidate(ctx, codes)
			log.Info().Strs("codes", codes).Int("found", len(found)).Msg("warm ok")
		}(batch)
	}
	wg.Wait()

	n, err := repo.PurgeExpiredSlots(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("slot purge failed")
	} else {
		log.Info().Int64("purged", n).Msg("expired offer slots removed")
	}
	log.Info().Msg("warming completed")
}

func batches(codes []string, size int) [][]string {
	var out [][]string
	for len(codes) > 0 {
		n := min(size, len(codes))
		out = append(out, codes[:n])
		codes = codes[n:]
	}
	return out
}

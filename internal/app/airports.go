package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flightbook/internal/domain"
)

// AirportSource is the backend's /api/airports.
type AirportSource interface {
	Airports(ctx context.Context, codes []string) (map[string]domain.Airport, error)
}

// AirportDirectory resolves IATA codes through the cache, then the local
// catalog, then the backend, writing back to both on the way out.
type AirportDirectory struct {
	src   AirportSource
	repo  domain.AirportRepository // optional
	cache domain.Cache             // optional
	ttl   time.Duration
	log   zerolog.Logger
}

func NewAirportDirectory(src AirportSource, repo domain.AirportRepository, c domain.Cache, ttl time.Duration, l zerolog.Logger) *AirportDirectory {
	return &AirportDirectory{src: src, repo: repo, cache: c, ttl: ttl, log: l}
}

func AirportCacheKey(code string) string { return "airport:" + strings.ToUpper(code) }

func (d *AirportDirectory) Lookup(ctx context.Context, codes []string) (map[string]domain.Airport, error) {
	want := uniqueCodes(codes)
	out := make(map[string]domain.Airport, len(want))

	// 1) cache
	var missing []string
	for _, c := range want {
		var a domain.Airport
		if d.cache != nil {
			if ok, _ := d.cache.Get(ctx, AirportCacheKey(c), &a); ok {
				out[c] = a
				continue
			}
		}
		missing = append(missing, c)
	}
	if len(missing) == 0 {
		return out, nil
	}

	// 2) catalog
	if d.repo != nil {
		found, err := d.repo.GetAirports(ctx, missing)
		if err != nil {
			d.log.Warn().Err(err).Msg("airport catalog read failed")
		}
		missing = d.absorb(ctx, out, missing, found)
		if len(missing) == 0 {
			return out, nil
		}
	}

	// 3) backend
	found, err := d.src.Airports(ctx, missing)
	if err != nil {
		return out, fmt.Errorf("resolve airports: %w", err)
	}
	if d.repo != nil && len(found) > 0 {
		as := make([]domain.Airport, 0, len(found))
		for c, a := range found {
			if a.Code == "" {
				a.Code = c
			}
			as = append(as, a)
		}
		if err := d.repo.UpsertAirports(ctx, as); err != nil {
			d.log.Warn().Err(err).Msg("airport catalog write failed")
		}
	}
	d.absorb(ctx, out, missing, found)
	return out, nil
}

// absorb copies hits into out, caches them, and returns the codes still missing.
func (d *AirportDirectory) absorb(ctx context.Context, out map[string]domain.Airport, want []string, found map[string]domain.Airport) []string {
	var still []string
	for _, c := range want {
		a, ok := found[c]
		if !ok {
			still = append(still, c)
			continue
		}
		if a.Code == "" {
			a.Code = c
		}
		out[c] = a
		if d.cache != nil {
			_ = d.cache.Set(ctx, AirportCacheKey(c), a, int(d.ttl.Seconds()))
		}
	}
	return still
}

// Invalidate drops cached airport records, e.g. after the catalog is refreshed.
func (d *AirportDirectory) Invalidate(ctx context.Context, codes []string) {
	if d.cache == nil {
		return
	}
	for _, c := range uniqueCodes(codes) {
		_ = d.cache.Del(ctx, AirportCacheKey(c))
	}
}

func uniqueCodes(codes []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

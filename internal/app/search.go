package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"

	"flightbook/internal/domain"
)

const (
	defaultMaxResults = 10
	defaultCurrency   = "USD"
)

// FlightSource is the slice of the backend the search service needs.
type FlightSource interface {
	Flights(ctx context.Context, q domain.SearchQuery) ([]domain.RawOffer, error)
}

// SearchService runs validated queries with a read-through results cache.
type SearchService struct {
	src      FlightSource
	cache    domain.Cache
	cacheTTL time.Duration
	log      zerolog.Logger
}

func NewSearchService(src FlightSource, c domain.Cache, ttl time.Duration, l zerolog.Logger) *SearchService {
	return &SearchService{src: src, cache: c, cacheTTL: ttl, log: l}
}

func (s *SearchService) Search(ctx context.Context, q domain.SearchQuery) ([]domain.RawOffer, error) {
	q = withDefaults(q)
	key := searchKey(q)

	// offers are cached as strings so their bytes survive the round trip
	var cached []string
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &cached); ok && err == nil {
			out := make([]domain.RawOffer, len(cached))
			for i, o := range cached {
				out[i] = domain.RawOffer(o)
			}
			return out, nil
		} else if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("search cache read failed")
		}
	}

	offers, err := s.src.Flights(ctx, q)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(offers) > 0 {
		raw := make([]string, len(offers))
		for i, o := range offers {
			raw[i] = string(o)
		}
		if err := s.cache.Set(ctx, key, raw, int(s.cacheTTL.Seconds())); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("search cache write failed")
		}
	}
	return offers, nil
}

func withDefaults(q domain.SearchQuery) domain.SearchQuery {
	if q.MaxResults == nil {
		n := defaultMaxResults
		q.MaxResults = &n
	}
	if q.CurrencyCode == nil {
		c := defaultCurrency
		q.CurrencyCode = &c
	}
	return q
}

// searchKey hashes the provider-visible query. NonstopOnly is a display
// filter and does not change what the provider returns.
func searchKey(q domain.SearchQuery) string {
	data := []byte(q.Values().Encode())
	sum := sha256.Sum256(data)
	return "flights:" + hex.EncodeToString(sum[:])
}

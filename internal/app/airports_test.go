package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"flightbook/internal/app"
	"flightbook/internal/domain"
)

type fakeAirportSource struct {
	calls [][]string
	data  map[string]domain.Airport
	err   error
}

func (f *fakeAirportSource) Airports(_ context.Context, codes []string) (map[string]domain.Airport, error) {
	f.calls = append(f.calls, codes)
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]domain.Airport{}
	for _, c := range codes {
		if a, ok := f.data[c]; ok {
			out[c] = a
		}
	}
	return out, nil
}

type memCatalog struct {
	data  map[string]domain.Airport
	reads int
}

func (m *memCatalog) UpsertAirports(_ context.Context, as []domain.Airport) error {
	for _, a := range as {
		m.data[a.Code] = a
	}
	return nil
}

func (m *memCatalog) GetAirports(_ context.Context, codes []string) (map[string]domain.Airport, error) {
	m.reads++
	out := map[string]domain.Airport{}
	for _, c := range codes {
		if a, ok := m.data[c]; ok {
			out[c] = a
		}
	}
	return out, nil
}

func TestAirportDirectory_Layers(t *testing.T) {
	src := &fakeAirportSource{data: map[string]domain.Airport{
		"JFK": {CityName: city("New York")},
	}}
	repo := &memCatalog{data: map[string]domain.Airport{
		"HOU": {Code: "HOU", CityName: city("Houston")},
	}}
	c := newMemCache()
	d := app.NewAirportDirectory(src, repo, c, time.Hour, zerolog.Nop())

	got, err := d.Lookup(context.Background(), []string{"hou", "JFK", "HOU", "ZZZ"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if *got["HOU"].CityName != "Houston" || *got["JFK"].CityName != "New York" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got["JFK"].Code != "JFK" {
		t.Fatalf("code should be filled from the key")
	}
	if _, ok := got["ZZZ"]; ok {
		t.Fatalf("unknown code should be absent")
	}
	if len(src.calls) != 1 || len(src.calls[0]) != 2 {
		t.Fatalf("backend should only see catalog misses, got %v", src.calls)
	}
	if _, ok := repo.data["JFK"]; !ok {
		t.Fatalf("backend hits should be written to the catalog")
	}

	// second pass is served from the cache
	if _, err := d.Lookup(context.Background(), []string{"HOU", "JFK"}); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(src.calls) != 1 || repo.reads != 1 {
		t.Fatalf("cache should answer, backend=%d catalog=%d", len(src.calls), repo.reads)
	}

	d.Invalidate(context.Background(), []string{"hou"})
	if _, err := d.Lookup(context.Background(), []string{"HOU"}); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if repo.reads != 2 {
		t.Fatalf("invalidated code should be re-read from the catalog, reads=%d", repo.reads)
	}
}

func TestAirportDirectory_BackendFailureKeepsPartial(t *testing.T) {
	src := &fakeAirportSource{err: errors.New("down")}
	repo := &memCatalog{data: map[string]domain.Airport{"HOU": {Code: "HOU"}}}
	d := app.NewAirportDirectory(src, repo, nil, time.Hour, zerolog.Nop())

	got, err := d.Lookup(context.Background(), []string{"HOU", "JFK"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := got["HOU"]; !ok {
		t.Fatalf("catalog hits should survive a backend failure: %+v", got)
	}
}

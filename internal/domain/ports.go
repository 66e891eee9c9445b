package domain

import (
	"context"
	"encoding/json"
	"time"
)

// FlightBackend is the proxy REST surface.
type FlightBackend interface {
	// Locations returns the undecoded body; its shape varies.
	Locations(ctx context.Context, keyword string) (json.RawMessage, error)
	Flights(ctx context.Context, q SearchQuery) ([]RawOffer, error)
	Airports(ctx context.Context, codes []string) (map[string]Airport, error)
	ConfirmPrice(ctx context.Context, offer RawOffer) (json.RawMessage, error)
	CreateTraveler(ctx context.Context, t TravelerInput) (json.RawMessage, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// OfferSlot is the durable single-key fallback for carrying a selected offer.
type OfferSlot interface {
	Put(ctx context.Context, key string, env SlotEnvelope, ttl time.Duration) error
	// Take reads and removes the slot. ok=false when nothing is stored.
	Take(ctx context.Context, key string) (env SlotEnvelope, ok bool, err error)
}

// SlotEnvelope is the persisted shape of a selected offer.
type SlotEnvelope struct {
	Version int       `json:"v"`
	Offer   RawOffer  `json:"offer"`
	SavedAt time.Time `json:"saved_at"`
}

const SlotSchemaVersion = 1

// AirportRepository is the local airport reference catalog.
type AirportRepository interface {
	UpsertAirports(ctx context.Context, as []Airport) error
	GetAirports(ctx context.Context, codes []string) (map[string]Airport, error)
}

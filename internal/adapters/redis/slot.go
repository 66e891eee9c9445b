package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"flightbook/internal/adapters/observability"
	"flightbook/internal/domain"
)

// OfferSlot keeps the selected-offer envelope under one key per session.
type OfferSlot struct{ c *redis.Client }

func NewOfferSlot(c *redis.Client) *OfferSlot { return &OfferSlot{c: c} }

// slotRecord is the stored form. The offer is a string so its bytes are kept
// exactly; marshaling it as JSON would compact and escape it.
type slotRecord struct {
	Version int       `json:"v"`
	Offer   string    `json:"offer"`
	SavedAt time.Time `json:"saved_at"`
}

func (s *OfferSlot) Put(ctx context.Context, key string, env domain.SlotEnvelope, ttl time.Duration) error {
	b, err := json.Marshal(slotRecord{Version: env.Version, Offer: string(env.Offer), SavedAt: env.SavedAt})
	if err != nil {
		return err
	}
	observability.ObserveCache("offer_slot", "set")
	return s.c.Set(ctx, key, b, ttl).Err()
}

// Take is GETDEL so a slot is consumed by exactly one reader.
func (s *OfferSlot) Take(ctx context.Context, key string) (domain.SlotEnvelope, bool, error) {
	b, err := s.c.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("offer_slot", "miss")
		return domain.SlotEnvelope{}, false, nil
	}
	if err != nil {
		return domain.SlotEnvelope{}, false, err
	}
	observability.ObserveCache("offer_slot", "hit")
	var rec slotRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		// version 0: present but unreadable
		return domain.SlotEnvelope{}, true, nil
	}
	return domain.SlotEnvelope{Version: rec.Version, Offer: domain.RawOffer(rec.Offer), SavedAt: rec.SavedAt}, true, nil
}

package redisad_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "flightbook/internal/adapters/redis"
	"flightbook/internal/domain"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestCache_SetGetDel(t *testing.T) {
	_, c := newClient(t)
	cache := redisad.NewFromClient(c)
	ctx := context.Background()

	var miss []string
	if ok, err := cache.Get(ctx, "k", &miss); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, "k", []string{"JFK", "HOU"}, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got []string
	ok, err := cache.Get(ctx, "k", &got)
	if !ok || err != nil || len(got) != 2 || got[1] != "HOU" {
		t.Fatalf("get: ok=%v err=%v got=%v", ok, err, got)
	}
	if err := cache.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if ok, _ := cache.Get(ctx, "k", &got); ok {
		t.Fatalf("expected miss after del")
	}
}

func TestCache_TTL(t *testing.T) {
	mr, c := newClient(t)
	cache := redisad.NewFromClient(c)
	ctx := context.Background()

	if err := cache.Set(ctx, "ttl", 1, 10); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(11 * time.Second)
	var v int
	if ok, _ := cache.Get(ctx, "ttl", &v); ok {
		t.Fatalf("expected expiry")
	}
}

func TestOfferSlot_TakeConsumesOnce(t *testing.T) {
	_, c := newClient(t)
	slot := redisad.NewOfferSlot(c)
	ctx := context.Background()

	raw := domain.RawOffer(`{"id":"1","price":{"total":"312.45"}}`)
	env := domain.SlotEnvelope{Version: domain.SlotSchemaVersion, Offer: raw, SavedAt: time.Unix(1700000000, 0).UTC()}
	if err := slot.Put(ctx, "selectedOffer:s1", env, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := slot.Take(ctx, "selectedOffer:s1")
	if err != nil || !ok {
		t.Fatalf("take: ok=%v err=%v", ok, err)
	}
	if string(got.Offer) != string(raw) || got.Version != 1 {
		t.Fatalf("unexpected envelope: %+v", got)
	}

	if _, ok, _ := slot.Take(ctx, "selectedOffer:s1"); ok {
		t.Fatalf("slot should be empty after first take")
	}
}

func TestOfferSlot_ExpiresAndUnreadable(t *testing.T) {
	mr, c := newClient(t)
	slot := redisad.NewOfferSlot(c)
	ctx := context.Background()

	env := domain.SlotEnvelope{Version: domain.SlotSchemaVersion, Offer: domain.RawOffer(`{"id":"9"}`)}
	if err := slot.Put(ctx, "selectedOffer:s2", env, 30*time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(31 * time.Second)
	if _, ok, err := slot.Take(ctx, "selectedOffer:s2"); ok || err != nil {
		t.Fatalf("expected expired slot, ok=%v err=%v", ok, err)
	}

	if err := mr.Set("selectedOffer:s3", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, ok, err := slot.Take(ctx, "selectedOffer:s3")
	if err != nil || !ok || got.Version != 0 {
		t.Fatalf("unreadable slot should come back as version 0, got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestOfferSlot_KeepsOfferBytes(t *testing.T) {
	_, c := newClient(t)
	slot := redisad.NewOfferSlot(c)
	ctx := context.Background()

	raw := domain.RawOffer("{\"id\": \"7\",\n  \"note\": \"a<b & c>d\"}")
	if err := slot.Put(ctx, "selectedOffer:s4", domain.SlotEnvelope{Version: domain.SlotSchemaVersion, Offer: raw}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := slot.Take(ctx, "selectedOffer:s4")
	if err != nil || !ok {
		t.Fatalf("take: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Offer, raw) {
		t.Fatalf("offer bytes changed: %q", got.Offer)
	}
}

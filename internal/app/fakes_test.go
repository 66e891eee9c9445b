package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"flightbook/internal/domain"
)

// memCache is a JSON-round-tripping domain.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = b
	return nil
}

func (c *memCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// memSlot is an in-memory domain.OfferSlot.
type memSlot struct {
	mu   sync.Mutex
	data map[string]domain.SlotEnvelope
	err  error
}

func newMemSlot() *memSlot { return &memSlot{data: map[string]domain.SlotEnvelope{}} }

func (s *memSlot) Put(_ context.Context, key string, env domain.SlotEnvelope, _ time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = env
	return nil
}

func (s *memSlot) Take(_ context.Context, key string) (domain.SlotEnvelope, bool, error) {
	if s.err != nil {
		return domain.SlotEnvelope{}, false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	env, ok := s.data[key]
	delete(s.data, key)
	return env, ok, nil
}

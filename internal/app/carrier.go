package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flightbook/internal/domain"
)

// ErrNoSelection means a stage was reached without a selected offer. Callers
// show a way back to search; it is not a failure.
var ErrNoSelection = errors.New("no selected offer")

// SlotKeyPrefix names the durable fallback slot.
const SlotKeyPrefix = "selectedOffer"

// NavigationPayload is handed from one stage to the next. Priced is set once
// the confirmation stage has re-priced the offer.
type NavigationPayload struct {
	Offer  domain.RawOffer     `json:"offer"`
	Priced *domain.PricedOffer `json:"priced,omitempty"`
}

// Carrier moves a selected offer between stages. With a slot it also keeps a
// copy for stages reached directly (reload, shared link).
type Carrier struct {
	slot domain.OfferSlot
	ttl  time.Duration
	now  func() time.Time
	log  zerolog.Logger
}

// NewCarrier builds a Carrier; slot may be nil to disable the fallback.
func NewCarrier(slot domain.OfferSlot, ttl time.Duration, l zerolog.Logger) *Carrier {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Carrier{slot: slot, ttl: ttl, now: time.Now, log: l}
}

func SlotKey(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SlotKeyPrefix
	}
	return SlotKeyPrefix + ":" + sessionID
}

// Handoff captures offer at selection time.
func (c *Carrier) Handoff(ctx context.Context, sessionID string, offer domain.RawOffer) (NavigationPayload, error) {
	if offer.Empty() {
		return NavigationPayload{}, ErrNoSelection
	}
	p := NavigationPayload{Offer: offer.Clone()}
	if c.slot == nil {
		return p, nil
	}
	env := domain.SlotEnvelope{Version: domain.SlotSchemaVersion, Offer: p.Offer, SavedAt: c.now().UTC()}
	if err := c.slot.Put(ctx, SlotKey(sessionID), env, c.ttl); err != nil {
		return p, fmt.Errorf("persist selected offer: %w", err)
	}
	return p, nil
}

// Receive returns the payload to use at stage entry. An in-memory payload wins;
// otherwise the slot is read once.
func (c *Carrier) Receive(ctx context.Context, sessionID string, in *NavigationPayload) (NavigationPayload, error) {
	if in != nil && !in.Offer.Empty() {
		return *in, nil
	}
	if c.slot == nil {
		return NavigationPayload{}, ErrNoSelection
	}
	env, ok, err := c.slot.Take(ctx, SlotKey(sessionID))
	if err != nil {
		return NavigationPayload{}, fmt.Errorf("read selected offer: %w", err)
	}
	if !ok {
		return NavigationPayload{}, ErrNoSelection
	}
	if env.Version != domain.SlotSchemaVersion || env.Offer.Empty() {
		c.log.Warn().Int("version", env.Version).Str("session", sessionID).Msg("discarding unreadable offer slot")
		return NavigationPayload{}, ErrNoSelection
	}
	return NavigationPayload{Offer: env.Offer}, nil
}

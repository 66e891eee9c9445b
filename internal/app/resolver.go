package app

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"flightbook/internal/adapters/observability"
	"flightbook/internal/domain"
)

// DefaultDebounce is the quiet period after the last keystroke before a
// location lookup is issued.
const DefaultDebounce = 250 * time.Millisecond

const minQueryLen = 2

// LocationSource is the slice of the backend the resolver needs.
type LocationSource interface {
	Locations(ctx context.Context, keyword string) (json.RawMessage, error)
}

type Resolver struct {
	src LocationSource
	log zerolog.Logger
}

func NewResolver(src LocationSource, l zerolog.Logger) *Resolver {
	return &Resolver{src: src, log: l}
}

// Lookup resolves free text to airport suggestions in provider order. Short
// queries and failures both yield an empty list; failures are only logged.
func (r *Resolver) Lookup(ctx context.Context, query string) []domain.LocationSuggestion {
	out, _ := r.lookup(ctx, query)
	return out
}

func (r *Resolver) lookup(ctx context.Context, query string) ([]domain.LocationSuggestion, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < minQueryLen {
		return []domain.LocationSuggestion{}, nil
	}
	body, err := r.src.Locations(ctx, q)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn().Err(err).Str("query", q).Str("err_type", observability.LabelErr(err)).Msg("location lookup failed")
		}
		return []domain.LocationSuggestion{}, err
	}
	return mapLocations(body), nil
}

// Session is search-as-you-type over a Resolver. Each Type restarts the
// debounce timer and invalidates every earlier request; only the newest
// request's results reach OnResults, and nothing does after Close.
type Session struct {
	r         *Resolver
	window    time.Duration
	onResults func(query string, s []domain.LocationSuggestion)

	ctx  context.Context
	stop context.CancelFunc

	latest atomic.Uint64
	closed atomic.Bool

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc // in-flight lookup
	memo   map[string][]domain.LocationSuggestion

	deliver sync.Mutex // held while OnResults runs
}

// NewSession starts a debounced session. window <= 0 uses DefaultDebounce.
func (r *Resolver) NewSession(parent context.Context, window time.Duration, onResults func(query string, s []domain.LocationSuggestion)) *Session {
	if window <= 0 {
		window = DefaultDebounce
	}
	ctx, stop := context.WithCancel(parent)
	return &Session{
		r:         r,
		window:    window,
		onResults: onResults,
		ctx:       ctx,
		stop:      stop,
		memo:      map[string][]domain.LocationSuggestion{},
	}
}

// Type records a keystroke's full input text.
func (s *Session) Type(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return
	}
	id := s.latest.Add(1)
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	q := strings.TrimSpace(text)
	s.timer = time.AfterFunc(s.window, func() { s.fire(id, q) })
}

func (s *Session) fire(id uint64, q string) {
	s.mu.Lock()
	if s.closed.Load() || s.latest.Load() != id {
		s.mu.Unlock()
		return
	}
	if utf8.RuneCountInString(q) < minQueryLen {
		s.mu.Unlock()
		s.commit(id, q, []domain.LocationSuggestion{}, "skipped")
		return
	}
	if hit, ok := s.memo[q]; ok {
		s.mu.Unlock()
		s.commit(id, q, hit, "committed")
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.mu.Unlock()

	res, err := s.r.lookup(ctx, q)
	cancel()

	s.mu.Lock()
	if err == nil && !s.closed.Load() {
		s.memo[q] = res
	}
	s.mu.Unlock()

	s.commit(id, q, res, "committed")
}

// commit delivers results if id is still the newest request.
func (s *Session) commit(id uint64, q string, res []domain.LocationSuggestion, outcome string) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	if s.closed.Load() || s.latest.Load() != id {
		observability.ObserveLookup("discarded")
		return
	}
	observability.ObserveLookup(outcome)
	if s.onResults != nil {
		s.onResults(q, res)
	}
}

// Close tears the session down. Once it returns, OnResults is never called
// again. Close is idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.stop()

	// wait out a delivery that passed its checks before closed was set
	s.deliver.Lock()
	s.deliver.Unlock()
}

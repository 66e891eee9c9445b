// internal/adapters/flightapi/client.go
package flightapi

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"flightbook/internal/adapters/observability"
	"flightbook/internal/domain"
)

const service = "flightapi"

type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base string, rps int) (*Client, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, fmt.Errorf("flight API base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("flight API base URL: %w", err)
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API ----

func (c *Client) Locations(ctx context.Context, keyword string) (json.RawMessage, error) {
	u := c.base + "/api/locations?" + url.Values{"keyword": {keyword}}.Encode()
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "locations", u, nil, &out)
	return out, err
}

func (c *Client) Flights(ctx context.Context, q domain.SearchQuery) ([]domain.RawOffer, error) {
	u := c.base + "/api/flights?" + q.Values().Encode()
	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, "flights", u, nil, &body); err != nil {
		return nil, err
	}
	return decodeOffers(body)
}

func (c *Client) Airports(ctx context.Context, codes []string) (map[string]domain.Airport, error) {
	if len(codes) == 0 {
		return map[string]domain.Airport{}, nil
	}
	u := c.base + "/api/airports?" + url.Values{"codes": {strings.Join(codes, ",")}}.Encode()
	out := map[string]domain.Airport{}
	if err := c.do(ctx, http.MethodGet, "airports", u, nil, &out); err != nil {
		return nil, err
	}
	for k, a := range out {
		if a.Code == "" {
			a.Code = k
			out[k] = a
		}
	}
	return out, nil
}

func (c *Client) ConfirmPrice(ctx context.Context, offer domain.RawOffer) (json.RawMessage, error) {
	if offer.Empty() {
		return nil, domain.ErrEmptyOffer
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "confirm", c.base+"/api/flights/confirm", []byte(offer), &out)
	return out, err
}

func (c *Client) CreateTraveler(ctx context.Context, t domain.TravelerInput) (json.RawMessage, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	err = c.do(ctx, http.MethodPost, "traveler", c.base+"/api/traveler", b, &out)
	return out, err
}

func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (json.RawMessage, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	err = c.do(ctx, http.MethodPost, "order", c.base+"/api/bookings/order", b, &out)
	return out, err
}

// ---- Internals ----

// do performs one logical call with client-side rate limiting, retries and JSON
// decode into out. Only GETs are retried on 429/5xx; a POST that reached the
// server may have had effects (orders), so it is tried once.
func (c *Client) do(ctx context.Context, method, endpoint, target string, body []byte, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = 4
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "flightbook/1.0")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < attempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(service, endpoint, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err

		case retryable(resp.StatusCode) && i < attempts-1:
			wait := retryAfter(resp)
			lastErr = readAPIError(resp)
			if wait == 0 {
				wait = backoff(i)
			}
			if sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			return readAPIError(resp)
		}
	}
	return lastErr
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// readAPIError consumes and closes the body. The proxy answers either
// {"error": "...", "details": "..."} or plain text.
func readAPIError(resp *http.Response) *domain.APIError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	resp.Body.Close()
	raw := strings.TrimSpace(string(b))
	e := &domain.APIError{Status: resp.StatusCode, Raw: raw}

	var shaped struct {
		Error   json.RawMessage `json:"error"`
		Details json.RawMessage `json:"details"`
		Errors  []string        `json:"errors"`
	}
	if raw != "" && raw[0] == '{' && json.Unmarshal(b, &shaped) == nil {
		e.Message = textOf(shaped.Error)
		e.Details = textOf(shaped.Details)
		if e.Message == "" && len(shaped.Errors) > 0 {
			e.Message = strings.Join(shaped.Errors, "; ")
		}
	}
	return e
}

// textOf returns a JSON string's value, or the compact JSON for anything else.
func textOf(b json.RawMessage) string {
	if len(b) == 0 || string(b) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	return string(b)
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	server "flightbook/internal/adapters/http_server"
	redisad "flightbook/internal/adapters/redis"
	"flightbook/internal/app"
	"flightbook/internal/domain"
)

const offerJSON = `{"id":"1","itineraries":[{"duration":"PT3H","segments":[{"departure":{"iataCode":"HOU","at":"2025-09-01T08:30:00"},"arrival":{"iataCode":"JFK","at":"2025-09-01T11:30:00"},"carrierCode":"UA","number":"100"}]}],"price":{"currency":"USD","total":"312.45"}}`

type fakeBackend struct {
	orderErr error
}

func (f *fakeBackend) Locations(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{"data":[{"iataCode":"HOU","name":"William P Hobby","address":{"cityName":"Houston","countryName":"United States"}}]}`), nil
}

func (f *fakeBackend) Flights(context.Context, domain.SearchQuery) ([]domain.RawOffer, error) {
	return []domain.RawOffer{domain.RawOffer(offerJSON)}, nil
}

func (f *fakeBackend) Airports(_ context.Context, codes []string) (map[string]domain.Airport, error) {
	return map[string]domain.Airport{}, nil
}

func (f *fakeBackend) ConfirmPrice(_ context.Context, o domain.RawOffer) (json.RawMessage, error) {
	return json.RawMessage(`{"data":{"flightOffers":[` + string(o) + `]}}`), nil
}

func (f *fakeBackend) CreateTraveler(context.Context, domain.TravelerInput) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"1"}`), nil
}

func (f *fakeBackend) PlaceOrder(context.Context, domain.OrderRequest) (json.RawMessage, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return json.RawMessage(`{"data":{"id":"ORDER-1"}}`), nil
}

func newTestServer(t *testing.T, be *fakeBackend) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	l := zerolog.Nop()
	srv := server.New(l, 5*time.Second)
	srv.MountHandlers(&server.Handlers{
		Resolver: app.NewResolver(be, l),
		Search:   app.NewSearchService(be, redisad.NewFromClient(rc), time.Minute, l),
		Airports: app.NewAirportDirectory(be, nil, nil, 0, l),
		Backend:  be,
		Carrier:  app.NewCarrier(redisad.NewOfferSlot(rc), time.Minute, l),
		Log:      l,
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, session string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if session != "" {
		req.Header.Set(server.SessionHeader, session)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

type problemBody struct {
	Type   string            `json:"type"`
	Status int               `json:"status"`
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors"`
	Links  map[string]string `json:"links"`
}

func decode(t *testing.T, res *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestSearch_ValidationIs422(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	res := do(t, http.MethodPost, ts.URL+"/v1/search", "", map[string]any{
		"tripType":   "one-way",
		"origin":     map[string]string{"text": "Hous"},
		"departDate": "2025-09-01",
	})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", res.StatusCode)
	}
	var p problemBody
	decode(t, res, &p)
	if p.Errors["origin"] == "" || p.Errors["destination"] == "" {
		t.Fatalf("expected origin and destination errors, got %+v", p)
	}
}

func TestSearch_ReturnsCardsWithRawOffer(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	res := do(t, http.MethodPost, ts.URL+"/v1/search", "s1", map[string]any{
		"tripType":    "one-way",
		"origin":      map[string]string{"code": "hou"},
		"destination": map[string]string{"code": "JFK"},
		"departDate":  "2025-09-01",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var v struct {
		NonStop []struct {
			Display domain.DisplayOffer `json:"display"`
			Offer   json.RawMessage     `json:"offer"`
		} `json:"nonStop"`
	}
	decode(t, res, &v)
	if len(v.NonStop) != 1 || v.NonStop[0].Display.PriceText != "$312.45" {
		t.Fatalf("unexpected view: %+v", v)
	}
	if string(v.NonStop[0].Offer) != offerJSON {
		t.Fatalf("raw offer changed: %s", v.NonStop[0].Offer)
	}
}

func TestConfirmation_NoSelection(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	res := do(t, http.MethodGet, ts.URL+"/v1/confirmation", "s1", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type %q", ct)
	}
	var p problemBody
	decode(t, res, &p)
	if p.Type != "/problems/no-selection" || p.Links["search"] != "/booking" || p.Detail != app.NoSelectionMessage {
		t.Fatalf("unexpected problem: %+v", p)
	}
}

func TestSelection_ThenConfirmation(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	if res := do(t, http.MethodPost, ts.URL+"/v1/selection", "s1", offerJSON); res.StatusCode != http.StatusNoContent {
		t.Fatalf("selection status %d", res.StatusCode)
	}
	if res := do(t, http.MethodGet, ts.URL+"/v1/confirmation", "other", nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("another session must not see the selection, status %d", res.StatusCode)
	}

	res := do(t, http.MethodGet, ts.URL+"/v1/confirmation", "s1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirmation status %d", res.StatusCode)
	}
	var body struct {
		Summary domain.DisplayOffer `json:"summary"`
		Offer   json.RawMessage     `json:"offer"`
	}
	decode(t, res, &body)
	if body.Summary.PriceText != "$312.45" || string(body.Offer) != offerJSON {
		t.Fatalf("unexpected confirmation: %+v", body)
	}
}

func TestSelection_EmptyOfferRejected(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	if res := do(t, http.MethodPost, ts.URL+"/v1/selection", "s1", `{}`); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", res.StatusCode)
	}
	if res := do(t, http.MethodPost, ts.URL+"/v1/selection", "s1", `not json`); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", res.StatusCode)
	}
}

func TestOrder_Errors(t *testing.T) {
	be := &fakeBackend{orderErr: &domain.APIError{Status: 400, Message: "Order failed", Details: "SEGMENT SELL FAILURE"}}
	ts := newTestServer(t, be)
	traveler := map[string]string{"fname": "Ann", "lname": "Doe", "dob": "1990-04-12"}

	res := do(t, http.MethodPost, ts.URL+"/v1/orders", "", map[string]any{
		"offer":     json.RawMessage(offerJSON),
		"travelers": []map[string]string{traveler},
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", res.StatusCode)
	}
	var p problemBody
	decode(t, res, &p)
	if p.Detail != "Order failed: SEGMENT SELL FAILURE" {
		t.Fatalf("server text not surfaced verbatim: %+v", p)
	}

	res = do(t, http.MethodPost, ts.URL+"/v1/orders", "", map[string]any{
		"offer":     json.RawMessage(offerJSON),
		"travelers": []map[string]string{{"fname": "Ann"}},
	})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", res.StatusCode)
	}
	decode(t, res, &p)
	if p.Errors["travelers[0].lname"] == "" || p.Errors["travelers[0].dob"] == "" {
		t.Fatalf("expected traveler field errors, got %+v", p.Errors)
	}

	res = do(t, http.MethodPost, ts.URL+"/v1/orders", "", map[string]any{"travelers": []map[string]string{traveler}})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("order without an offer should be no-selection, status %d", res.StatusCode)
	}
}

func TestLocations_ETag(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	res := do(t, http.MethodGet, ts.URL+"/v1/locations?q=hou", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var got []domain.LocationSuggestion
	decode(t, res, &got)
	if len(got) != 1 || got[0].Display != "Houston, United States (HOU)" {
		t.Fatalf("unexpected suggestions: %+v", got)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/locations?q=hou", nil)
	req.Header.Set("If-None-Match", res.Header.Get("ETag"))
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", res2.StatusCode)
	}
}

func TestSessionRoutes_RequireHeader(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})

	for _, rt := range []struct{ method, path, body string }{
		{http.MethodPost, "/v1/selection", offerJSON},
		{http.MethodGet, "/v1/confirmation", ""},
		{http.MethodPost, "/v1/offers/detail", offerJSON},
	} {
		res := do(t, rt.method, ts.URL+rt.path, "", rt.body)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s %s without session: status %d", rt.method, rt.path, res.StatusCode)
		}
	}
}

func TestDetail_ViewsAreKeptPerSession(t *testing.T) {
	ts := newTestServer(t, &fakeBackend{})
	form := map[string]any{
		"tripType":    "one-way",
		"origin":      map[string]string{"text": "Houston (HOU)", "code": "HOU"},
		"destination": map[string]string{"text": "New York (JFK)", "code": "JFK"},
		"departDate":  "2025-09-01",
		"adults":      1,
	}
	// an anonymous search renders but leaves no view behind
	if res := do(t, http.MethodPost, ts.URL+"/v1/search", "", form); res.StatusCode != http.StatusOK {
		t.Fatalf("anonymous search status %d", res.StatusCode)
	}

	toggle := func(session string) app.DetailView {
		t.Helper()
		res := do(t, http.MethodPost, ts.URL+"/v1/offers/detail", session, offerJSON)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("detail status %d", res.StatusCode)
		}
		var v app.DetailView
		decode(t, res, &v)
		return v
	}
	if v := toggle("s1"); !v.Expanded {
		t.Fatalf("s1 should open the detail: %+v", v)
	}
	if v := toggle("s2"); !v.Expanded {
		t.Fatalf("s2 has its own view and should open the detail: %+v", v)
	}
	if v := toggle("s1"); v.Expanded {
		t.Fatalf("second toggle in s1 should collapse: %+v", v)
	}
}

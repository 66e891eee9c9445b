package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
)

// SearchQuery is what the search form emits. Immutable once sent.
type SearchQuery struct {
	Origin       string  `json:"origin"`
	Destination  string  `json:"destination"`
	DepartDate   string  `json:"departDate"`
	ReturnDate   *string `json:"returnDate,omitempty"`
	Adults       int     `json:"adults"`
	Children     *int    `json:"children,omitempty"`
	Infants      *int    `json:"infants,omitempty"`
	TravelClass  *string `json:"travelClass,omitempty"`
	NonstopOnly  *bool   `json:"nonstopOnly,omitempty"`
	MaxResults   *int    `json:"maxResults,omitempty"`
	CurrencyCode *string `json:"currencyCode,omitempty"`
}

// Values builds the /api/flights query string. Absent optionals are never sent.
func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	v.Set("origin", q.Origin)
	v.Set("destination", q.Destination)
	v.Set("departDate", q.DepartDate)
	v.Set("adults", strconv.Itoa(q.Adults))
	setStr := func(k string, p *string) {
		if p != nil && *p != "" {
			v.Set(k, *p)
		}
	}
	setInt := func(k string, p *int) {
		if p != nil {
			v.Set(k, strconv.Itoa(*p))
		}
	}
	setStr("returnDate", q.ReturnDate)
	setInt("maxResults", q.MaxResults)
	setStr("currencyCode", q.CurrencyCode)
	setInt("children", q.Children)
	setInt("infants", q.Infants)
	setStr("travelClass", q.TravelClass)
	return v
}

// RawOffer is a provider flight-offer record kept byte-for-byte as received.
// Re-pricing and ordering need the exact original shape, so nothing here
// mutates it.
type RawOffer json.RawMessage

var ErrEmptyOffer = errors.New("empty offer")

func (r RawOffer) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawOffer) UnmarshalJSON(b []byte) error {
	if r == nil {
		return errors.New("RawOffer: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[0:0], b...)
	return nil
}

// Empty reports whether there is no usable offer (absent, null, {}).
func (r RawOffer) Empty() bool {
	t := bytes.TrimSpace(r)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte("{}"))
}

// ID returns the provider "id" field, or "" when absent.
func (r RawOffer) ID() string {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(r, &head); err != nil || len(head.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(head.ID, &s); err == nil {
		return s
	}
	// numeric ids
	return string(head.ID)
}

// Clone returns an independent copy of the bytes.
func (r RawOffer) Clone() RawOffer {
	if r == nil {
		return nil
	}
	return append(RawOffer(nil), r...)
}

// DisplayOffer is the render-only projection of a RawOffer. It is never sent
// back to the provider.
type DisplayOffer struct {
	OfferID         string `json:"offerId"`
	OriginCode      string `json:"originCode"`
	DestinationCode string `json:"destinationCode"`
	DepartureTime   string `json:"departureTime"`
	ArrivalTime     string `json:"arrivalTime"`
	DurationText    string `json:"durationText"`
	NumberOfStops   int    `json:"numberOfStops"`
	StopsText       string `json:"stopsText"`
	StopsTone       string `json:"stopsTone"`
	AirlineName     string `json:"airlineName"`
	FlightNumber    string `json:"flightNumber"`
	CabinText       string `json:"cabinText"`
	PriceTotal      string `json:"priceTotal"`
	PriceCurrency   string `json:"priceCurrency"`
	PriceText       string `json:"priceText"`
}

// PricedOffer is the authoritative re-pricing result for a RawOffer.
type PricedOffer struct {
	Offer    RawOffer `json:"offer"`
	Total    string   `json:"total"`
	Currency string   `json:"currency"`
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"flightbook/internal/domain"
)

var (
	// ErrInFlight rejects a second trigger while the first is still running.
	ErrInFlight = errors.New("request already in progress")
	ErrNoPrice  = errors.New("re-pricing response carried no price")
)

const (
	GenericFailureMessage = "Something went wrong. Please try again."
	NoSelectionMessage    = "No selection. Go back and search again."
)

// UserMessage is the text a stage shows for err: the backend's own words when
// it sent any, otherwise a generic message.
func UserMessage(err error) string {
	var apiErr *domain.APIError
	var fe FieldErrors
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSelection):
		return NoSelectionMessage
	case errors.As(err, &fe):
		return fe.Error()
	case errors.As(err, &apiErr) && apiErr.UserMessage() != "":
		return apiErr.UserMessage()
	default:
		return GenericFailureMessage
	}
}

// busyFlag guards a single in-flight request per stage.
type busyFlag struct {
	mu   sync.Mutex
	busy bool
}

func (b *busyFlag) begin() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy {
		return false
	}
	b.busy = true
	return true
}

func (b *busyFlag) end() {
	b.mu.Lock()
	b.busy = false
	b.mu.Unlock()
}

func (b *busyFlag) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy
}

/********** confirmation **********/

type ConfirmStage struct {
	src DetailSource

	mu      sync.Mutex
	payload NavigationPayload

	busyFlag
}

func NewConfirmStage(src DetailSource, p NavigationPayload) (*ConfirmStage, error) {
	if p.Offer.Empty() {
		return nil, ErrNoSelection
	}
	return &ConfirmStage{src: src, payload: p}, nil
}

// Summary is the card projection of the carried offer, so the price matches
// what the results page showed before any re-pricing.
func (s *ConfirmStage) Summary() domain.DisplayOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Normalize(s.payload.Offer)
}

// Reprice asks the backend for the authoritative price of the carried offer.
func (s *ConfirmStage) Reprice(ctx context.Context) (domain.PricedOffer, error) {
	if !s.begin() {
		return domain.PricedOffer{}, ErrInFlight
	}
	defer s.end()

	s.mu.Lock()
	offer := s.payload.Offer
	s.mu.Unlock()

	body, err := s.src.ConfirmPrice(ctx, offer)
	if err != nil {
		return domain.PricedOffer{}, err
	}
	priced, err := parsePriced(body, offer)
	if err != nil {
		return domain.PricedOffer{}, err
	}

	s.mu.Lock()
	s.payload.Priced = &priced
	s.mu.Unlock()
	return priced, nil
}

// Next is the payload for the order stage.
func (s *ConfirmStage) Next() NavigationPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// parsePriced reads the price from data.flightOffers[0].price, data.price or
// price. When the response carries a priced offer, that offer replaces the
// searched one for ordering.
func parsePriced(body []byte, searched domain.RawOffer) (domain.PricedOffer, error) {
	m := decodeObject(body)
	if m == nil {
		return domain.PricedOffer{}, ErrNoPrice
	}
	var price map[string]any
	for _, path := range []string{"data.flightOffers.0.price", "data.price", "price"} {
		if price = lookupMap(m, path); price != nil {
			break
		}
	}
	total := firstOf(lookupText(price, "grandTotal"), lookupText(price, "total"))
	if total == "" {
		return domain.PricedOffer{}, ErrNoPrice
	}

	out := domain.PricedOffer{
		Offer:    searched,
		Total:    total,
		Currency: firstOf(lookupText(price, "currency"), "USD"),
	}
	var env struct {
		Data struct {
			FlightOffers []json.RawMessage `json:"flightOffers"`
		} `json:"data"`
	}
	if json.Unmarshal(body, &env) == nil && len(env.Data.FlightOffers) > 0 {
		if o := domain.RawOffer(env.Data.FlightOffers[0]); !o.Empty() {
			out.Offer = o
		}
	}
	return out, nil
}

// PriceText formats a priced total the same way offer cards do.
func PriceText(p domain.PricedOffer) string { return priceText(p.Total, p.Currency) }

/********** order **********/

// OrderBackend is the slice of the backend the order stage needs.
type OrderBackend interface {
	CreateTraveler(ctx context.Context, t domain.TravelerInput) (json.RawMessage, error)
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (json.RawMessage, error)
}

type OrderStage struct {
	api      OrderBackend
	payload  NavigationPayload
	validate *validator.Validate

	busyFlag
}

func NewOrderStage(api OrderBackend, p NavigationPayload) (*OrderStage, error) {
	if p.Offer.Empty() {
		return nil, ErrNoSelection
	}
	return &OrderStage{api: api, payload: p, validate: newTravelerValidator()}, nil
}

func newTravelerValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

var travelerMessages = map[string]string{
	"required":         "is required",
	"datetime":         "must be a date as YYYY-MM-DD",
	"numeric":          "must contain digits only",
	"min":              "must be 7 to 20 digits",
	"max":              "must be 7 to 20 digits",
	"iso3166_1_alpha2": "must be a 2-letter country code",
	"alphanum":         "must contain letters and digits only",
}

// ValidateTravelers checks the required traveler fields (first name, last
// name, date of birth) and the format of any optional field that was filled.
func (s *OrderStage) ValidateTravelers(ts []domain.TravelerInput) FieldErrors {
	errs := FieldErrors{}
	if len(ts) == 0 {
		errs["travelers"] = "at least one traveler is required"
		return errs
	}
	for i, t := range ts {
		err := s.validate.Struct(t)
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			continue
		}
		for _, fe := range ves {
			msg, ok := travelerMessages[fe.Tag()]
			if !ok {
				msg = "is invalid"
			}
			key := fmt.Sprintf("travelers[%d].%s", i, fe.Field())
			if _, dup := errs[key]; !dup {
				errs[key] = msg
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// PlaceOrder creates the travelers and submits the order for the carried
// offer, preferring its re-priced form.
func (s *OrderStage) PlaceOrder(ctx context.Context, ts []domain.TravelerInput) (json.RawMessage, error) {
	if errs := s.ValidateTravelers(ts); errs != nil {
		return nil, errs
	}
	if !s.begin() {
		return nil, ErrInFlight
	}
	defer s.end()

	travelers := make([]json.RawMessage, 0, len(ts))
	for i, t := range ts {
		rec, err := s.api.CreateTraveler(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("create traveler %d: %w", i+1, err)
		}
		travelers = append(travelers, withTravelerID(rec, i+1))
	}

	offer := s.payload.Offer
	if s.payload.Priced != nil && !s.payload.Priced.Offer.Empty() {
		offer = s.payload.Priced.Offer
	}
	return s.api.PlaceOrder(ctx, domain.NewOrderRequest(offer, travelers))
}

// withTravelerID numbers traveler records 1..n; the proxy hands every record
// id "1", which the order endpoint rejects for more than one traveler.
func withTravelerID(rec json.RawMessage, n int) json.RawMessage {
	m := decodeObject(rec)
	if m == nil {
		return rec
	}
	m["id"] = strconv.Itoa(n)
	b, err := json.Marshal(m)
	if err != nil {
		return rec
	}
	return b
}

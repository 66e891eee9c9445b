package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"flightbook/internal/domain"
)

// EmptyResultsMessage is shown instead of a blank list.
const EmptyResultsMessage = "Sorry, No flights to show for this route."

// AirportLookup resolves IATA codes to airport records.
type AirportLookup interface {
	Lookup(ctx context.Context, codes []string) (map[string]domain.Airport, error)
}

// DetailSource fetches the expanded detail (a re-pricing call) for one offer.
type DetailSource interface {
	ConfirmPrice(ctx context.Context, offer domain.RawOffer) (json.RawMessage, error)
}

// OfferCard pairs the display projection with the offer it came from.
// Selection always hands on Offer, never Display.
type OfferCard struct {
	Display         domain.DisplayOffer `json:"display"`
	OriginCity      string              `json:"originCity,omitempty"`
	DestinationCity string              `json:"destinationCity,omitempty"`
	Offer           domain.RawOffer     `json:"offer"`
}

type ResultsView struct {
	NonStop      []OfferCard `json:"nonStop"`
	Other        []OfferCard `json:"other"`
	Empty        bool        `json:"empty"`
	EmptyMessage string      `json:"emptyMessage,omitempty"`
}

// DetailView is the state of one offer's detail panel.
type DetailView struct {
	OfferKey string          `json:"offerKey"`
	Expanded bool            `json:"expanded"`
	Detail   json.RawMessage `json:"detail,omitempty"`
}

// Presenter renders result lists for one results view. Its caches live as long
// as the Presenter does.
type Presenter struct {
	airports AirportLookup
	details  DetailSource
	onSelect func(domain.RawOffer)
	log      zerolog.Logger

	mu        sync.Mutex
	lastCodes string
	cities    map[string]string
	detail    map[string]json.RawMessage
	expanded  string

	sf singleflight.Group
}

func NewPresenter(a AirportLookup, d DetailSource, onSelect func(domain.RawOffer), l zerolog.Logger) *Presenter {
	return &Presenter{
		airports: a,
		details:  d,
		onSelect: onSelect,
		log:      l,
		cities:   map[string]string{},
		detail:   map[string]json.RawMessage{},
	}
}

// Render normalizes offers and splits them into non-stop and connecting
// buckets. nonstopOnly hides the connecting bucket.
func (p *Presenter) Render(ctx context.Context, offers []domain.RawOffer, nonstopOnly bool) ResultsView {
	cards := make([]OfferCard, 0, len(offers))
	for _, o := range offers {
		cards = append(cards, OfferCard{Display: Normalize(o), Offer: o})
	}

	cities := p.resolveCities(ctx, cards)

	v := ResultsView{NonStop: []OfferCard{}, Other: []OfferCard{}}
	for _, c := range cards {
		c.OriginCity = cities[c.Display.OriginCode]
		c.DestinationCity = cities[c.Display.DestinationCode]
		if c.Display.NumberOfStops == 0 {
			v.NonStop = append(v.NonStop, c)
		} else if !nonstopOnly {
			v.Other = append(v.Other, c)
		}
	}
	if len(v.NonStop)+len(v.Other) == 0 {
		v.Empty = true
		v.EmptyMessage = EmptyResultsMessage
	}
	return v
}

// resolveCities fetches city names only when the set of codes on screen
// changed, and then only for codes not seen before.
func (p *Presenter) resolveCities(ctx context.Context, cards []OfferCard) map[string]string {
	set := map[string]struct{}{}
	for _, c := range cards {
		for _, code := range []string{c.Display.OriginCode, c.Display.DestinationCode} {
			if iataRe.MatchString(code) {
				set[code] = struct{}{}
			}
		}
	}
	codes := make([]string, 0, len(set))
	for c := range set {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	key := strings.Join(codes, ",")

	p.mu.Lock()
	var missing []string
	if key != p.lastCodes {
		p.lastCodes = key
		for _, c := range codes {
			if _, ok := p.cities[c]; !ok {
				missing = append(missing, c)
			}
		}
	}
	p.mu.Unlock()

	if len(missing) > 0 && p.airports != nil {
		found, err := p.airports.Lookup(ctx, missing)
		p.mu.Lock()
		if err != nil {
			// nothing is remembered, so the next render asks again
			p.lastCodes = ""
		} else {
			for _, c := range missing {
				// remember misses too, so an unknown code is not asked for again
				p.cities[c] = deref(found[c].CityName)
			}
		}
		p.mu.Unlock()
		if err != nil {
			p.log.Warn().Err(err).Strs("codes", missing).Msg("airport lookup failed")
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(codes))
	for _, c := range codes {
		out[c] = p.cities[c]
	}
	return out
}

// Select hands the card's original offer to the selection callback.
func (p *Presenter) Select(card OfferCard) {
	if p.onSelect != nil {
		p.onSelect(card.Offer)
	}
}

// ToggleDetail opens the detail panel for offer, or closes it if it is the
// open one. Opening fetches at most once per offer; opening another offer
// closes the current one but keeps its detail cached.
func (p *Presenter) ToggleDetail(ctx context.Context, offer domain.RawOffer) (DetailView, error) {
	key := OfferKey(offer)

	p.mu.Lock()
	if p.expanded == key {
		p.expanded = ""
		d := p.detail[key]
		p.mu.Unlock()
		return DetailView{OfferKey: key, Expanded: false, Detail: d}, nil
	}
	p.expanded = key
	if d, ok := p.detail[key]; ok {
		p.mu.Unlock()
		return DetailView{OfferKey: key, Expanded: true, Detail: d}, nil
	}
	p.mu.Unlock()

	v, err, _ := p.sf.Do(key, func() (any, error) {
		p.mu.Lock()
		if d, ok := p.detail[key]; ok {
			p.mu.Unlock()
			return d, nil
		}
		p.mu.Unlock()

		d, err := p.details.ConfirmPrice(ctx, offer)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.detail[key] = d
		p.mu.Unlock()
		return d, nil
	})
	if err != nil {
		p.log.Warn().Err(err).Str("offer", key).Msg("offer detail fetch failed")
		p.mu.Lock()
		if p.expanded == key {
			p.expanded = ""
		}
		p.mu.Unlock()
		return DetailView{OfferKey: key}, err
	}
	return DetailView{OfferKey: key, Expanded: true, Detail: v.(json.RawMessage)}, nil
}

// OfferKey identifies an offer. Provider ids restart at "1" for every search,
// so the id is qualified with a content hash.
func OfferKey(offer domain.RawOffer) string {
	sum := sha1.Sum(offer)
	h := hex.EncodeToString(sum[:])
	if id := offer.ID(); id != "" {
		return id + "-" + h[:12]
	}
	return h
}

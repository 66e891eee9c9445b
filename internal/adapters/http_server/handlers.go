package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"flightbook/internal/app"
	"flightbook/internal/domain"
)

// SessionHeader identifies the browser session a selection belongs to.
const SessionHeader = "X-Session-ID"

const (
	maxBody     = 1 << 20
	maxSessions = 1024
)

// Backend is what the handlers call on the flight API besides search.
type Backend interface {
	app.DetailSource
	app.OrderBackend
}

type Handlers struct {
	Resolver *app.Resolver
	Search   *app.SearchService
	Airports app.AirportLookup
	Backend  Backend
	Carrier  *app.Carrier
	Log      zerolog.Logger

	mu    sync.Mutex
	views map[string]*app.Presenter // per session; replaced on each search
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
	Links  map[string]string `json:"links,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/locations", h.locations)
		r.Post("/search", h.search)
		r.Post("/confirmation/price", h.price)
		r.Post("/orders", h.order)

		// routes that read or write per-session state
		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/selection", h.selection)
			r.Get("/confirmation", h.confirmation)
			r.Post("/offers/detail", h.detail)
		})
	})
}

func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionID(r) == "" {
			writeProblem(w, http.StatusBadRequest, "Missing session", SessionHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeError maps the app's error taxonomy onto HTTP.
func writeError(w http.ResponseWriter, err error) {
	var fe app.FieldErrors
	var apiErr *domain.APIError
	switch {
	case errors.Is(err, app.ErrNoSelection):
		writeProblemBody(w, problem{
			Type:   "/problems/no-selection",
			Title:  "No selection",
			Status: http.StatusNotFound,
			Detail: app.NoSelectionMessage,
			Links:  map[string]string{"search": "/booking"},
		})
	case errors.As(err, &fe):
		writeProblemBody(w, problem{
			Type:   "/problems/validation",
			Title:  "Invalid input",
			Status: http.StatusUnprocessableEntity,
			Errors: fe,
		})
	case errors.Is(err, app.ErrInFlight):
		writeProblem(w, http.StatusConflict, "In progress", err.Error())
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		writeProblem(w, status, "Upstream error", app.UserMessage(err))
	default:
		writeProblem(w, http.StatusBadGateway, "Upstream error", app.UserMessage(err))
	}
}

func sessionID(r *http.Request) string { return strings.TrimSpace(r.Header.Get(SessionHeader)) }

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	return dec.Decode(dst)
}

// readOffer reads a raw offer body unchanged.
func readOffer(r *http.Request) (domain.RawOffer, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if !json.Valid(b) {
		return nil, errors.New("body is not JSON")
	}
	return domain.RawOffer(b), nil
}

// presenter returns the session's results view, creating it when fresh is set
// or none exists yet. Without a session the view is built for one request and
// never stored.
func (h *Handlers) presenter(sid string, fresh bool) *app.Presenter {
	if sid == "" {
		return app.NewPresenter(h.Airports, h.Backend, nil, h.Log)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.views == nil {
		h.views = map[string]*app.Presenter{}
	}
	if p, ok := h.views[sid]; ok && !fresh {
		return p
	}
	if len(h.views) >= maxSessions {
		for k := range h.views {
			delete(h.views, k)
			break
		}
	}
	p := app.NewPresenter(h.Airports, h.Backend, nil, h.Log)
	h.views[sid] = p
	return p
}

/********** handlers **********/

func (h *Handlers) locations(w http.ResponseWriter, r *http.Request) {
	out := h.Resolver.Lookup(r.Context(), r.URL.Query().Get("q"))

	etag, body := calcETagAndBody(out)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write locations body")
	}
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	form := app.NewSearchForm()
	if err := decodeBody(r, form); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected a search form")
		return
	}

	var q domain.SearchQuery
	if errs := form.Submit(func(sq domain.SearchQuery) { q = sq }); errs != nil {
		writeError(w, errs)
		return
	}
	offers, err := h.Search.Search(r.Context(), q)
	if err != nil {
		h.Log.Warn().Err(err).Str("origin", q.Origin).Str("destination", q.Destination).Msg("search failed")
		writeError(w, err)
		return
	}
	view := h.presenter(sessionID(r), true).Render(r.Context(), offers, form.NonstopOnly)
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) selection(w http.ResponseWriter, r *http.Request) {
	offer, err := readOffer(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected the selected offer")
		return
	}
	if _, err := h.Carrier.Handoff(r.Context(), sessionID(r), offer); err != nil {
		if errors.Is(err, app.ErrNoSelection) {
			writeProblem(w, http.StatusBadRequest, "Invalid body", "the selected offer is empty")
			return
		}
		h.Log.Error().Err(err).Msg("selection not stored")
		writeProblem(w, http.StatusServiceUnavailable, "Selection not stored", app.GenericFailureMessage)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmationResponse struct {
	Summary domain.DisplayOffer `json:"summary"`
	Offer   domain.RawOffer     `json:"offer"`
}

func (h *Handlers) confirmation(w http.ResponseWriter, r *http.Request) {
	p, err := h.Carrier.Receive(r.Context(), sessionID(r), nil)
	if err != nil {
		if !errors.Is(err, app.ErrNoSelection) {
			h.Log.Error().Err(err).Msg("read selection failed")
		}
		writeError(w, err)
		return
	}
	st, err := app.NewConfirmStage(h.Backend, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse{Summary: st.Summary(), Offer: p.Offer})
}

type priceResponse struct {
	Total     string          `json:"total"`
	Currency  string          `json:"currency"`
	PriceText string          `json:"price_text"`
	Offer     domain.RawOffer `json:"offer"`
}

func (h *Handlers) price(w http.ResponseWriter, r *http.Request) {
	offer, err := readOffer(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected the selected offer")
		return
	}
	st, err := app.NewConfirmStage(h.Backend, app.NavigationPayload{Offer: offer})
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := st.Reprice(r.Context())
	if err != nil {
		h.Log.Warn().Err(err).Str("offer", offer.ID()).Msg("re-price failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Total: p.Total, Currency: p.Currency, PriceText: app.PriceText(p), Offer: p.Offer})
}

func (h *Handlers) detail(w http.ResponseWriter, r *http.Request) {
	offer, err := readOffer(r)
	if err != nil || offer.Empty() {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected an offer")
		return
	}
	v, err := h.presenter(sessionID(r), false).ToggleDetail(r.Context(), offer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type orderRequest struct {
	Offer       domain.RawOffer        `json:"offer"`
	PricedOffer domain.RawOffer        `json:"priced_offer,omitempty"`
	Travelers   []domain.TravelerInput `json:"travelers"`
}

func (h *Handlers) order(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected offer and travelers")
		return
	}
	p := app.NavigationPayload{Offer: req.Offer}
	if !req.PricedOffer.Empty() {
		p.Priced = &domain.PricedOffer{Offer: req.PricedOffer}
	}
	st, err := app.NewOrderStage(h.Backend, p)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := st.PlaceOrder(r.Context(), req.Travelers)
	if err != nil {
		h.Log.Warn().Err(err).Str("offer", req.Offer.ID()).Msg("order failed")
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if _, err := w.Write(out); err != nil {
		log.Error().Err(err).Msg("failed to write order body")
	}
}

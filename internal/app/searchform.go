package app

import (
	"regexp"
	"strings"
	"time"

	"flightbook/internal/domain"
)

type TripType string

const (
	OneWay    TripType = "one-way"
	RoundTrip TripType = "round-trip"
)

// CabinAll is the "no cabin filter" value; it is never sent to the backend.
const CabinAll = "all"

const maxPassengers = 9

var iataRe = regexp.MustCompile(`^[A-Z]{3}$`)

var travelClasses = map[string]bool{
	"ECONOMY": true, "PREMIUM_ECONOMY": true, "BUSINESS": true, "FIRST": true,
}

// LocationField is what the user typed plus the code of the suggestion they
// picked. Typing clears the code until a suggestion is picked again.
type LocationField struct {
	Text string `json:"text"`
	Code string `json:"code"`
}

// FieldErrors maps a form field to its single error message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, k := range sortedKeys(fe) {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type SearchForm struct {
	TripType    TripType      `json:"tripType"`
	Origin      LocationField `json:"origin"`
	Destination LocationField `json:"destination"`
	DepartDate  string        `json:"departDate"`
	ReturnDate  string        `json:"returnDate"`
	Adults      int           `json:"adults"`
	Children    int           `json:"children"`
	Infants     int           `json:"infants"`
	TravelClass string        `json:"travelClass"`
	NonstopOnly bool          `json:"nonstopOnly"`
}

// NewSearchForm returns the form's initial state.
func NewSearchForm() *SearchForm {
	return &SearchForm{TripType: RoundTrip, Adults: 1, TravelClass: CabinAll}
}

func (f *SearchForm) SetOriginText(text string) { f.Origin = LocationField{Text: text} }

func (f *SearchForm) SetDestinationText(text string) { f.Destination = LocationField{Text: text} }

func (f *SearchForm) PickOrigin(s domain.LocationSuggestion) {
	f.Origin = LocationField{Text: s.Display, Code: s.Code}
}

func (f *SearchForm) PickDestination(s domain.LocationSuggestion) {
	f.Destination = LocationField{Text: s.Display, Code: s.Code}
}

// Validate returns one message per offending field, or nil.
func (f *SearchForm) Validate() FieldErrors {
	errs := FieldErrors{}

	if !iataRe.MatchString(strings.ToUpper(strings.TrimSpace(f.Origin.Code))) {
		errs["origin"] = "pick an origin airport from the suggestions"
	}
	if !iataRe.MatchString(strings.ToUpper(strings.TrimSpace(f.Destination.Code))) {
		errs["destination"] = "pick a destination airport from the suggestions"
	}
	switch {
	case strings.TrimSpace(f.DepartDate) == "":
		errs["departDate"] = "departure date is required"
	case !isDate(f.DepartDate):
		errs["departDate"] = "departure date must be YYYY-MM-DD"
	}
	if f.tripType() == RoundTrip {
		switch {
		case strings.TrimSpace(f.ReturnDate) == "":
			errs["returnDate"] = "return date is required for round trips"
		case !isDate(f.ReturnDate):
			errs["returnDate"] = "return date must be YYYY-MM-DD"
		}
	}

	// each passenger field reports its own rule
	if f.Adults < 0 || f.Children < 0 || f.Infants < 0 {
		errs["passengers"] = "passenger counts cannot be negative"
	} else {
		if f.Adults < 1 {
			errs["adults"] = "at least one adult is required"
		}
		if f.Infants > f.Adults {
			errs["infants"] = "each infant must travel with an adult"
		}
		switch {
		case f.Adults+f.Children < 1:
			errs["passengers"] = "at least one adult or child is required"
		case f.Adults+f.Children+f.Infants > maxPassengers:
			errs["passengers"] = "no more than 9 passengers per booking"
		}
	}

	if tc := normalizeTravelClass(f.TravelClass); tc != "" && !travelClasses[tc] {
		errs["travelClass"] = "unknown cabin class"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Submit validates and, only on success, hands the query to onSearch.
func (f *SearchForm) Submit(onSearch func(domain.SearchQuery)) FieldErrors {
	if errs := f.Validate(); errs != nil {
		return errs
	}
	if onSearch != nil {
		onSearch(f.Query())
	}
	return nil
}

// Query builds the SearchQuery. Call it on a validated form.
func (f *SearchForm) Query() domain.SearchQuery {
	q := domain.SearchQuery{
		Origin:      strings.ToUpper(strings.TrimSpace(f.Origin.Code)),
		Destination: strings.ToUpper(strings.TrimSpace(f.Destination.Code)),
		DepartDate:  strings.TrimSpace(f.DepartDate),
		Adults:      f.Adults,
	}
	if f.tripType() == RoundTrip {
		q.ReturnDate = ptrStr(strings.TrimSpace(f.ReturnDate))
	}
	if f.Children > 0 {
		c := f.Children
		q.Children = &c
	}
	if f.Infants > 0 {
		i := f.Infants
		q.Infants = &i
	}
	q.TravelClass = ptrStr(normalizeTravelClass(f.TravelClass))
	if f.NonstopOnly {
		t := true
		q.NonstopOnly = &t
	}
	return q
}

func (f *SearchForm) tripType() TripType {
	if f.TripType == OneWay {
		return OneWay
	}
	return RoundTrip
}

// normalizeTravelClass maps "premium economy" to "PREMIUM_ECONOMY"; "all" and
// blank become "".
func normalizeTravelClass(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, CabinAll) {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
}

func isDate(s string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	return err == nil
}

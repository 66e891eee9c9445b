package app

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"flightbook/internal/domain"
)

/********** alias registries (single source of truth) **********/

var locationAliases = map[string][]string{
	"code":    {"iataCode", "code", "iata"},
	"city":    {"address.cityName", "cityName", "city"},
	"country": {"address.countryName", "countryName", "address.countryCode", "countryCode"},
	"airport": {"name", "airportName", "detailedName"},
}

// Wrapper keys the proxy has used around location lists, in search order.
var locationWrappers = []string{"data", "result", "locations", "items", "results"}

var offerAliases = map[string][]string{
	"cabin": {
		"travelerPricings.0.fareDetailsBySegment.0.cabin",
		"itineraries.0.segments.0.cabin",
		"cabin",
	},
	"carrier":  {"carrierCode", "operating.carrierCode"},
	"total":    {"price.total", "price.grandTotal"},
	"currency": {"price.currency"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps; numeric parts index
// into arrays ("itineraries.0.segments").
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			cur = node[i]
		default:
			return nil
		}
	}
	return cur
}

// lookupStr returns the string at path, or "" when absent or not a string.
func lookupStr(m map[string]any, path string) string {
	if s, ok := lookupAny(m, path).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// lookupText is lookupStr that also renders numbers ("total": 312.45).
func lookupText(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupText(m, p); s != "" {
			return s
		}
	}
	return ""
}

func lookupSlice(m map[string]any, path string) []any {
	s, _ := lookupAny(m, path).([]any)
	return s
}

func lookupMap(m map[string]any, path string) map[string]any {
	o, _ := lookupAny(m, path).(map[string]any)
	return o
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// parseFloatFlexible accepts "312.45", "312,45" and plain numbers.
func parseFloatFlexible(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// decodeObject decodes a JSON object with numbers kept exact. Anything that is
// not an object yields nil.
func decodeObject(b []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil
	}
	return m
}

/********** location mapper **********/

// locationRecords finds the list of location records in any of the shapes the
// proxy has produced: a bare array, or an array nested under wrapper keys.
// The search is breadth-first so the shallowest list wins.
func locationRecords(body []byte) []map[string]any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil
	}

	queue := []any{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		switch n := node.(type) {
		case []any:
			return objectsOf(n)
		case map[string]any:
			for _, k := range locationWrappers {
				if v, ok := n[k]; ok {
					queue = append(queue, v)
				}
			}
		}
	}
	return nil
}

func objectsOf(in []any) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, it := range in {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// mapLocation builds a suggestion; ok=false when the record has no IATA code.
func mapLocation(rec map[string]any) (domain.LocationSuggestion, bool) {
	code := strings.ToUpper(firstNonEmptyAlias(rec, locationAliases, "code"))
	if code == "" {
		return domain.LocationSuggestion{}, false
	}
	city := firstNonEmptyAlias(rec, locationAliases, "city")
	country := firstNonEmptyAlias(rec, locationAliases, "country")
	airport := firstNonEmptyAlias(rec, locationAliases, "airport")

	s := domain.LocationSuggestion{Code: code}
	switch {
	case city != "" && country != "":
		s.Primary = city + ", " + country
	case airport != "":
		s.Primary = airport
	default:
		s.Primary = code
	}
	if airport != "" {
		s.Secondary = airport
	} else {
		s.Secondary = code + " Airport"
	}
	s.Display = s.Primary + " (" + code + ")"
	return s, true
}

func mapLocations(body []byte) []domain.LocationSuggestion {
	recs := locationRecords(body)
	out := make([]domain.LocationSuggestion, 0, len(recs))
	for _, r := range recs {
		if s, ok := mapLocation(r); ok {
			out = append(out, s)
		}
	}
	return out
}

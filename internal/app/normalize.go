package app

import (
	"strings"

	"flightbook/internal/domain"
)

// Normalize projects a provider offer into its display model. It never fails:
// every missing or malformed field degrades to a placeholder. It reads only,
// so the same RawOffer always yields the same DisplayOffer.
func Normalize(raw domain.RawOffer) domain.DisplayOffer {
	o := decodeObject(raw)
	if o == nil {
		o = map[string]any{}
	}

	segs := objectsOf(outboundSegments(o))
	first, last := map[string]any{}, map[string]any{}
	if len(segs) > 0 {
		first, last = segs[0], segs[len(segs)-1]
	}

	d := domain.DisplayOffer{
		OfferID:         lookupText(o, "id"),
		OriginCode:      orPlaceholder(lookupStr(first, "departure.iataCode"), lookupStr(o, "originCode")),
		DestinationCode: orPlaceholder(lookupStr(last, "arrival.iataCode"), lookupStr(o, "destinationCode")),
		DepartureTime:   FormatClock(firstOf(lookupStr(first, "departure.at"), lookupStr(o, "departureTime"))),
		ArrivalTime:     FormatClock(firstOf(lookupStr(last, "arrival.at"), lookupStr(o, "arrivalTime"))),
		DurationText:    FormatDuration(firstOf(lookupStr(o, "itineraries.0.duration"), lookupStr(o, "duration"))),
	}

	n := len(segs)
	if n == 0 {
		// summary-only records carry a stop count instead of segments
		if v, ok := parseFloatFlexible(lookupText(o, "numberOfStops")); ok && v >= 0 {
			n = int(v) + 1
		}
	}
	d.NumberOfStops = stopCount(n)
	d.StopsText, d.StopsTone = StopsLabel(n)

	carrier := strings.ToUpper(firstNonEmptyAlias(first, offerAliases, "carrier"))
	if carrier == "" {
		carrier = strings.ToUpper(lookupStr(o, "carrierCode"))
	}
	d.AirlineName = AirlineName(carrier)
	if summary := lookupStr(o, "airlineName"); carrier == "" && summary != "" {
		d.AirlineName = summary
	}
	d.FlightNumber = orPlaceholder(carrier+lookupText(first, "number"), lookupStr(o, "flightNumber"))

	d.CabinText = FormatCabin(firstNonEmptyAlias(o, offerAliases, "cabin"))

	d.PriceTotal = firstNonEmptyAlias(o, offerAliases, "total")
	d.PriceCurrency = firstOf(firstNonEmptyAlias(o, offerAliases, "currency"), "USD")
	d.PriceText = priceText(d.PriceTotal, d.PriceCurrency)
	return d
}

func outboundSegments(o map[string]any) []any {
	return lookupSlice(o, "itineraries.0.segments")
}

func priceText(total, cur string) string {
	v, ok := parseFloatFlexible(total)
	if !ok {
		return Placeholder
	}
	return FormatMoney(v, cur)
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func orPlaceholder(vals ...string) string {
	if v := firstOf(vals...); v != "" {
		return v
	}
	return Placeholder
}

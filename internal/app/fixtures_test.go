package app_test

import (
	"fmt"

	"flightbook/internal/domain"
)

// amadeusOffer builds a provider offer with n outbound segments HOU→...→JFK.
func amadeusOffer(id string, n int, total string) domain.RawOffer {
	segs := ""
	for i := 0; i < n; i++ {
		dep, arr := "ATL", "ATL"
		if i == 0 {
			dep = "HOU"
		}
		if i == n-1 {
			arr = "JFK"
		}
		if segs != "" {
			segs += ","
		}
		segs += fmt.Sprintf(`{"departure":{"iataCode":%q,"at":"2025-09-01T0%d:30:00"},"arrival":{"iataCode":%q,"at":"2025-09-01T1%d:45:00"},"carrierCode":"UA","number":"12%d"}`,
			dep, 8+i%2, arr, i, i)
	}
	return domain.RawOffer(fmt.Sprintf(`{"type":"flight-offer","id":%q,"itineraries":[{"duration":"PT5H15M","segments":[%s]}],"price":{"currency":"USD","total":%q,"grandTotal":%q},"travelerPricings":[{"fareDetailsBySegment":[{"cabin":"ECONOMY"}]}]}`,
		id, segs, total, total))
}

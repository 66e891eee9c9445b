package app

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is shown for any display field the provider left out.
const Placeholder = "—"

const (
	ToneGreen = "green"
	ToneAmber = "amber"
)

var durationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?$`)

// FormatDuration turns "PT9H20M" into "9h 20m". An empty token gives the
// placeholder; a token that does not parse is returned unchanged.
func FormatDuration(iso string) string {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return Placeholder
	}
	m := durationRe.FindStringSubmatch(iso)
	if m == nil || (m[1] == "" && m[2] == "") {
		return iso
	}
	var parts []string
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m[2] != "" {
		mins, _ := strconv.Atoi(m[2])
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	return strings.Join(parts, " ")
}

// StopsLabel labels an itinerary by its segment count. Two or more stops
// share the amber tone with a single stop.
func StopsLabel(segments int) (text, tone string) {
	n := stopCount(segments)
	switch n {
	case 0:
		return "Non-stop", ToneGreen
	case 1:
		return "1 stop", ToneAmber
	default:
		return fmt.Sprintf("%d stops", n), ToneAmber
	}
}

func stopCount(segments int) int {
	if segments <= 1 {
		return 0
	}
	return segments - 1
}

var moneyPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatMoney renders total in cur for en-US, e.g. "$1,234.50". Unknown
// currencies fall back to "$" and two decimals.
func FormatMoney(total float64, cur string) string {
	if cur == "" {
		cur = "USD"
	}
	unit, err := currency.ParseISO(cur)
	if err != nil {
		return fmt.Sprintf("$%.2f", total)
	}
	scale, _ := currency.Standard.Rounding(unit)
	sym := moneyPrinter.Sprint(currency.Symbol(unit))
	amount := moneyPrinter.Sprint(number.Decimal(total, number.Scale(scale)))
	if total < 0 {
		return "-" + sym + strings.TrimPrefix(amount, "-")
	}
	return sym + amount
}

var cabinLabels = map[string]string{
	"ECONOMY":         "Economy",
	"PREMIUM_ECONOMY": "Premium Economy",
	"BUSINESS":        "Business",
	"FIRST":           "First",
}

func FormatCabin(cabin string) string {
	if l, ok := cabinLabels[strings.ToUpper(strings.TrimSpace(cabin))]; ok {
		return l
	}
	return "cabin n/a"
}

var airlineNames = map[string]string{
	"AA": "American Airlines",
	"UA": "United Airlines",
	"DL": "Delta Air Lines",
	"WN": "Southwest",
	"B6": "JetBlue",
	"AS": "Alaska Airlines",
	"NK": "Spirit Airlines",
	"F9": "Frontier",
	"BA": "British Airways",
	"AF": "Air France",
	"KL": "KLM",
	"LH": "Lufthansa",
	"EK": "Emirates",
	"QR": "Qatar Airways",
	"TK": "Turkish Airlines",
	"AC": "Air Canada",
	"AM": "Aeromexico",
}

func AirlineName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Placeholder
	}
	if n, ok := airlineNames[code]; ok {
		return n
	}
	return code
}

var clockLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", time.RFC3339}

// FormatClock renders the provider's local timestamp as "8:30 AM".
func FormatClock(local string) string {
	local = strings.TrimSpace(local)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, local); err == nil {
			return t.Format("3:04 PM")
		}
	}
	return Placeholder
}

package domain

// LocationSuggestion is one pickable autocomplete row.
type LocationSuggestion struct {
	Code      string `json:"code"`      // IATA, never empty
	Primary   string `json:"primary"`   // "Houston, United States" or airport name
	Secondary string `json:"secondary"` // airport name or "HOU Airport"
	Display   string `json:"display"`   // label once picked: "Houston, United States (HOU)"
}

// Airport is the reference record returned by /api/airports.
type Airport struct {
	Code           string  `json:"code"`
	CityName       *string `json:"cityName,omitempty"`
	AirportName    *string `json:"airportName,omitempty"`
	CountryCode    *string `json:"countryCode,omitempty"`
	TimeZoneOffset *string `json:"timeZoneOffset,omitempty"`
}

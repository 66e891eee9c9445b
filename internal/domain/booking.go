package domain

import "encoding/json"

// TravelerInput is the traveler form. Its JSON is the /api/traveler body.
type TravelerInput struct {
	FirstName      string `json:"fname" validate:"required"`
	LastName       string `json:"lname" validate:"required"`
	DateOfBirth    string `json:"dob" validate:"required,datetime=2006-01-02"`
	PhoneNumber    string `json:"phoneNumber,omitempty" validate:"omitempty,numeric,min=7,max=20"`
	Nationality    string `json:"nationality,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	PassportNumber string `json:"passportNumber,omitempty" validate:"omitempty,alphanum"`
	ExpiryDate     string `json:"expiryDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// OrderRequest is the /api/bookings/order body.
type OrderRequest struct {
	Data OrderData `json:"data"`
}

type OrderData struct {
	Type         string            `json:"type"` // always "flight-order"
	FlightOffers []RawOffer        `json:"flightOffers"`
	Travelers    []json.RawMessage `json:"travelers"`
}

func NewOrderRequest(offer RawOffer, travelers []json.RawMessage) OrderRequest {
	return OrderRequest{Data: OrderData{
		Type:         "flight-order",
		FlightOffers: []RawOffer{offer},
		Travelers:    travelers,
	}}
}

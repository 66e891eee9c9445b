package flightapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"flightbook/internal/domain"
)

// decodeOffers accepts a bare array or a {"data": [...]} wrapper and keeps
// every element as untouched bytes.
func decodeOffers(body json.RawMessage) ([]domain.RawOffer, error) {
	t := bytes.TrimSpace(body)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil, nil
	}
	var items []json.RawMessage
	switch t[0] {
	case '[':
		if err := json.Unmarshal(t, &items); err != nil {
			return nil, fmt.Errorf("decode offers: %w", err)
		}
	case '{':
		var wrap struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(t, &wrap); err != nil {
			return nil, fmt.Errorf("decode offers: %w", err)
		}
		items = wrap.Data
	default:
		return nil, fmt.Errorf("decode offers: unexpected body %.20q", t)
	}
	out := make([]domain.RawOffer, 0, len(items))
	for _, it := range items {
		out = append(out, domain.RawOffer(it))
	}
	return out, nil
}

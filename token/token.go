// Package token encodes a JourneyConfig into a URL-safe string. The
// token is the user's configuration; the server keeps no per-user
// row. Field names are shortened so a full config with two long
// addresses still fits comfortably in a webhook URL.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
)

// ErrBadToken covers anything that fails base64 or JSON decoding.
// The HTTP layer maps it to a 400 without echoing token contents.
var ErrBadToken = errors.New("bad config token")

// MaxTokenBytes bounds accepted tokens.
const MaxTokenBytes = 4 << 10

type addresses struct {
	Home commute.Location  `json:"home"`
	Work commute.Location  `json:"work"`
	Cafe *commute.Location `json:"cafe,omitempty"`
}

// wire is the short-key schema. Unknown fields in incoming tokens are
// ignored, so newer wizards can add fields without breaking older
// servers.
type wire struct {
	Addresses   addresses         `json:"a"`
	ArrivalTime string            `json:"t"`
	Coffee      bool              `json:"c"`
	TransitKey  string            `json:"k,omitempty"`
	PlacesKey   string            `json:"g,omitempty"`
	State       string            `json:"s,omitempty"`
	APIMode     string            `json:"m,omitempty"`
	PrepMinutes int               `json:"p,omitempty"`
	Extensions  map[string]string `json:"x,omitempty"`
}

// Encode serializes a config into a base64url token without padding.
func Encode(cfg commute.JourneyConfig) (string, error) {
	w := wire{
		Addresses: addresses{
			Home: cfg.Home,
			Work: cfg.Work,
			Cafe: cfg.Cafe,
		},
		ArrivalTime: cfg.ArrivalTime,
		Coffee:      cfg.CoffeeEnabled,
		TransitKey:  cfg.TransitAPIKey,
		PlacesKey:   cfg.PlacesAPIKey,
		State:       cfg.State,
		APIMode:     string(cfg.APIMode),
		PrepMinutes: cfg.CafePrepMinutes,
		Extensions:  cfg.Extensions,
	}

	buf, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("marshalling config: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Decode is the inverse of Encode. Any structural failure is
// ErrBadToken; callers must not leak what the token decoded to.
func Decode(encoded string) (commute.JourneyConfig, error) {
	if len(encoded) == 0 || len(encoded) > MaxTokenBytes {
		return commute.JourneyConfig{}, ErrBadToken
	}

	buf, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		// Tolerate tokens padded by over-eager URL encoders.
		buf, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return commute.JourneyConfig{}, ErrBadToken
		}
	}

	var w wire
	if err := json.Unmarshal(buf, &w); err != nil {
		return commute.JourneyConfig{}, ErrBadToken
	}

	return commute.JourneyConfig{
		Home:            w.Addresses.Home,
		Work:            w.Addresses.Work,
		Cafe:            w.Addresses.Cafe,
		ArrivalTime:     w.ArrivalTime,
		CoffeeEnabled:   w.Coffee,
		APIMode:         commute.APIMode(w.APIMode),
		State:           w.State,
		TransitAPIKey:   w.TransitKey,
		PlacesAPIKey:    w.PlacesKey,
		CafePrepMinutes: w.PrepMinutes,
		Extensions:      w.Extensions,
	}, nil
}

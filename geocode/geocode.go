// Package geocode resolves free-text addresses to coordinates during
// setup. Google Places is used when the user supplied a key, with
// Nominatim as the keyless fallback. Addresses don't move, so results
// are cached in the KV store without a TTL.
package geocode

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/downloader"
	"github.com/m1ckyb/CommuteCompute-sub001/storage"
)

const (
	DefaultFetchTimeout = 2 * time.Second
	DefaultMaxSize      = 256 << 10

	// kvTimeout caps cache round trips; a slow store falls through
	// to the providers instead of stalling setup.
	kvTimeout = time.Second

	placesBase    = "https://places.googleapis.com/v1"
	nominatimBase = "https://nominatim.openstreetmap.org"

	// Nominatim's usage policy requires an identifying agent.
	nominatimAgent = "commutecompute/1.0"

	keyPrefix = "geocode:"
)

// ErrNoMatch means neither provider produced a usable result.
var ErrNoMatch = errors.New("address not found")

type Client struct {
	FetchTimeout time.Duration

	KV     storage.KV
	Logger *slog.Logger

	// Base URLs are swappable for tests.
	PlacesBase    string
	NominatimBase string
}

func NewClient(kv storage.KV) *Client {
	return &Client{
		FetchTimeout:  DefaultFetchTimeout,
		KV:            kv,
		Logger:        slog.Default(),
		PlacesBase:    placesBase,
		NominatimBase: nominatimBase,
	}
}

// Resolve turns an address into a Location. The cache is consulted
// first; on a miss the result is written back permanently.
func (c *Client) Resolve(ctx context.Context, address, placesAPIKey string) (commute.Location, error) {
	cacheKey := keyPrefix + strings.ToLower(strings.TrimSpace(address))

	if c.KV != nil {
		getCtx, cancel := context.WithTimeout(ctx, kvTimeout)
		value, err := c.KV.Get(getCtx, cacheKey)
		cancel()
		if err == nil {
			var loc commute.Location
			if err := json.Unmarshal(value, &loc); err == nil {
				return loc, nil
			}
		}
	}

	var loc commute.Location
	var err error
	if placesAPIKey != "" {
		loc, err = c.places(ctx, address, placesAPIKey)
		if err != nil {
			c.Logger.Warn("places lookup failed, trying nominatim", "err", err)
		}
	}
	if placesAPIKey == "" || err != nil {
		loc, err = c.nominatim(ctx, address)
	}
	if err != nil {
		return commute.Location{}, err
	}

	if loc.State == "" {
		loc.State = commute.StateFromAddress(loc.FormattedAddress)
	}

	if c.KV != nil {
		if value, err := json.Marshal(loc); err == nil {
			setCtx, cancel := context.WithTimeout(ctx, kvTimeout)
			if err := c.KV.Set(setCtx, cacheKey, value, 0); err != nil {
				c.Logger.Warn("caching geocode result failed", "err", err)
			}
			cancel()
		}
	}
	return loc, nil
}

func (c *Client) places(ctx context.Context, address, apiKey string) (commute.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, c.FetchTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"input":               address,
		"includedRegionCodes": []string{"au"},
	})
	if err != nil {
		return commute.Location{}, errors.Wrap(err, "encoding autocomplete request")
	}

	headers := map[string]string{
		"Content-Type":     "application/json",
		"X-Goog-Api-Key":   apiKey,
		"X-Goog-FieldMask": "suggestions.placePrediction.placeId,suggestions.placePrediction.text",
	}
	payload, err := downloader.HTTPPost(ctx, c.PlacesBase+"/places:autocomplete", body, headers,
		downloader.GetOptions{Timeout: c.FetchTimeout, MaxSize: DefaultMaxSize})
	if err != nil {
		return commute.Location{}, errors.Wrap(err, "places autocomplete")
	}

	var autocomplete struct {
		Suggestions []struct {
			PlacePrediction struct {
				PlaceID string `json:"placeId"`
				Text    struct {
					Text string `json:"text"`
				} `json:"text"`
			} `json:"placePrediction"`
		} `json:"suggestions"`
	}
	if err := json.Unmarshal(payload, &autocomplete); err != nil {
		return commute.Location{}, errors.Wrap(err, "decoding autocomplete response")
	}
	if len(autocomplete.Suggestions) == 0 {
		return commute.Location{}, ErrNoMatch
	}
	prediction := autocomplete.Suggestions[0].PlacePrediction

	detailHeaders := map[string]string{
		"X-Goog-Api-Key":   apiKey,
		"X-Goog-FieldMask": "location,formattedAddress",
	}
	detailPayload, err := downloader.HTTPGet(ctx, c.PlacesBase+"/places/"+prediction.PlaceID, detailHeaders,
		downloader.GetOptions{Timeout: c.FetchTimeout, MaxSize: DefaultMaxSize})
	if err != nil {
		return commute.Location{}, errors.Wrap(err, "place details")
	}

	var detail struct {
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
	}
	if err := json.Unmarshal(detailPayload, &detail); err != nil {
		return commute.Location{}, errors.Wrap(err, "decoding place details")
	}

	formatted := detail.FormattedAddress
	if formatted == "" {
		formatted = prediction.Text.Text
	}
	return commute.Location{
		FormattedAddress: formatted,
		Latitude:         detail.Location.Latitude,
		Longitude:        detail.Location.Longitude,
	}, nil
}

func (c *Client) nominatim(ctx context.Context, address string) (commute.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, c.FetchTimeout)
	defer cancel()

	query := url.Values{
		"q":            {address},
		"format":       {"jsonv2"},
		"limit":        {"1"},
		"countrycodes": {"au"},
	}
	payload, err := downloader.HTTPGet(ctx, c.NominatimBase+"/search?"+query.Encode(),
		map[string]string{"User-Agent": nominatimAgent},
		downloader.GetOptions{Timeout: c.FetchTimeout, MaxSize: DefaultMaxSize})
	if err != nil {
		return commute.Location{}, errors.Wrap(err, "nominatim search")
	}

	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(payload, &results); err != nil {
		return commute.Location{}, errors.Wrap(err, "decoding nominatim response")
	}
	if len(results) == 0 {
		return commute.Location{}, ErrNoMatch
	}

	lat, err1 := strconv.ParseFloat(results[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(results[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return commute.Location{}, errors.New("nominatim returned unparseable coordinates")
	}
	return commute.Location{
		FormattedAddress: results[0].DisplayName,
		Latitude:         lat,
		Longitude:        lon,
	}, nil
}

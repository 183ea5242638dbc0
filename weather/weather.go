// Package weather fetches current conditions from the Bureau of
// Meteorology for the header zone. The dashboard only needs three
// facts: temperature, a short condition, and whether to carry an
// umbrella.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m1ckyb/CommuteCompute-sub001/downloader"
)

const (
	DefaultTTL          = 300 * time.Second
	DefaultFetchTimeout = 2 * time.Second
	DefaultMaxSize      = 256 << 10

	bureauBase = "https://api.weather.bom.gov.au/v1"

	// umbrellaChance is the daily rain probability, in percent, at
	// which the umbrella indicator turns on.
	umbrellaChance = 40
)

// umbrellaConditionRe matches forecast wording that warrants an
// umbrella regardless of the stated probability.
var umbrellaConditionRe = regexp.MustCompile(`(?i)shower|rain|storm`)

// Report is the condensed weather for one location.
type Report struct {
	TempC     int
	Condition string
	Umbrella  bool
}

type cacheEntry struct {
	report      Report
	retrievedAt time.Time
}

// Client fetches and caches reports. Cache keys bucket coordinates to
// 0.1 degrees so nearby requests share an entry.
type Client struct {
	TTL          time.Duration
	FetchTimeout time.Duration

	Downloader downloader.Downloader
	Clock      clockwork.Clock
	Logger     *slog.Logger

	// BaseURL is swappable for tests.
	BaseURL string

	mutex sync.Mutex
	cache map[string]cacheEntry
}

func NewClient() *Client {
	return &Client{
		TTL:          DefaultTTL,
		FetchTimeout: DefaultFetchTimeout,
		Downloader:   downloader.NewMemoryDownloader(),
		Clock:        clockwork.NewRealClock(),
		Logger:       slog.Default(),
		BaseURL:      bureauBase,
		cache:        map[string]cacheEntry{},
	}
}

// Report returns the weather at a location. Failures degrade to the
// last cached report for the bucket, or a zero report with ok=false;
// the dashboard renders without the weather box in that case.
func (c *Client) Report(ctx context.Context, lat, lon float64) (Report, bool) {
	key := bucketKey(lat, lon)
	now := c.Clock.Now()

	c.mutex.Lock()
	entry, cached := c.cache[key]
	c.mutex.Unlock()
	if cached && now.Sub(entry.retrievedAt) < c.TTL {
		return entry.report, true
	}

	report, err := c.fetch(ctx, lat, lon)
	if err != nil {
		c.Logger.Warn("weather fetch failed", "bucket", key, "err", err)
		if cached {
			return entry.report, true
		}
		return Report{}, false
	}

	c.mutex.Lock()
	c.cache[key] = cacheEntry{report: report, retrievedAt: now}
	c.mutex.Unlock()
	return report, true
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, c.FetchTimeout)
	defer cancel()

	geohash := encodeGeohash(lat, lon, 6)
	opts := downloader.GetOptions{Timeout: c.FetchTimeout, MaxSize: DefaultMaxSize}

	obsPayload, err := c.Downloader.Get(ctx, fmt.Sprintf("%s/locations/%s/observations", c.BaseURL, geohash), nil, opts)
	if err != nil {
		return Report{}, fmt.Errorf("fetching observations: %w", err)
	}

	var obs struct {
		Data struct {
			Temp         float64 `json:"temp"`
			RainSince9am float64 `json:"rain_since_9am"`
		} `json:"data"`
	}
	if err := json.Unmarshal(obsPayload, &obs); err != nil {
		return Report{}, fmt.Errorf("decoding observations: %w", err)
	}

	report := Report{TempC: int(obs.Data.Temp + 0.5)}
	if obs.Data.Temp < 0 {
		report.TempC = int(obs.Data.Temp - 0.5)
	}
	report.Umbrella = obs.Data.RainSince9am > 0

	// The condition and rain chance come from the daily forecast. A
	// forecast failure is not fatal; the observation alone renders.
	fcPayload, err := c.Downloader.Get(ctx, fmt.Sprintf("%s/locations/%s/forecasts/daily", c.BaseURL, geohash), nil, opts)
	if err != nil {
		return report, nil
	}
	var fc struct {
		Data []struct {
			ShortText string `json:"short_text"`
			Rain      struct {
				Chance int `json:"chance"`
			} `json:"rain"`
		} `json:"data"`
	}
	if err := json.Unmarshal(fcPayload, &fc); err == nil && len(fc.Data) > 0 {
		report.Condition = strings.TrimSuffix(fc.Data[0].ShortText, ".")
		if fc.Data[0].Rain.Chance >= umbrellaChance || umbrellaConditionRe.MatchString(report.Condition) {
			report.Umbrella = true
		}
	}
	return report, nil
}

// bucketKey rounds coordinates to one decimal place.
func bucketKey(lat, lon float64) string {
	return fmt.Sprintf("weather:%.1f,%.1f", lat, lon)
}

const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// encodeGeohash produces the standard base32 geohash the bureau API
// uses as its location key.
func encodeGeohash(lat, lon float64, precision int) string {
	latMin, latMax := -90.0, 90.0
	lonMin, lonMax := -180.0, 180.0

	var sb strings.Builder
	bit, idx := 0, 0
	even := true
	for sb.Len() < precision {
		if even {
			mid := (lonMin + lonMax) / 2
			if lon >= mid {
				idx = idx*2 + 1
				lonMin = mid
			} else {
				idx = idx * 2
				lonMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat >= mid {
				idx = idx*2 + 1
				latMin = mid
			} else {
				idx = idx * 2
				latMax = mid
			}
		}
		even = !even
		bit++
		if bit == 5 {
			sb.WriteByte(geohashAlphabet[idx])
			bit, idx = 0, 0
		}
	}
	return sb.String()
}

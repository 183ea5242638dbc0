package transit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/downloader"
	"github.com/m1ckyb/CommuteCompute-sub001/parse"
)

const (
	DefaultTripUpdatesTTL = 30 * time.Second
	DefaultAlertsTTL      = 5 * time.Minute
	DefaultNegativeTTL    = 30 * time.Second
	DefaultFetchTimeout   = 2 * time.Second
	DefaultRefreshWait    = 5 * time.Second
	DefaultFeedMaxSize    = 4 << 20 // 4 MB
	DefaultMaxDepartures  = 6
)

type feedKind string

const (
	kindTripUpdates feedKind = "tripupdates"
	kindAlerts      feedKind = "alerts"
)

type feedKey struct {
	authority string
	mode      commute.ModeType
	kind      feedKind
}

func (k feedKey) String() string {
	return fmt.Sprintf("feed:%s:%s:%s", k.authority, k.mode, k.kind)
}

type feedEntry struct {
	payload     []byte
	trips       *parse.TripUpdates
	alerts      []parse.Alert
	retrievedAt time.Time
}

// Manager is the transit data layer: it fetches, decodes and caches
// GTFS-RT feeds per (authority, mode) and degrades to the static
// timetable on any upstream trouble. Upstream failures never surface
// to callers as errors.
type Manager struct {
	Authority *Authority
	Timetable *Timetable

	TripUpdatesTTL time.Duration
	AlertsTTL      time.Duration
	NegativeTTL    time.Duration
	FetchTimeout   time.Duration
	RefreshWait    time.Duration
	FeedMaxSize    int
	MaxDepartures  int

	Downloader downloader.Downloader
	Clock      clockwork.Clock
	Logger     *slog.Logger

	mutex    sync.Mutex
	cache    map[feedKey]*feedEntry
	negative map[feedKey]time.Time
	warned   map[feedKey]bool
	group    singleflight.Group
}

func NewManager(authority *Authority, timetable *Timetable) *Manager {
	return &Manager{
		Authority: authority,
		Timetable: timetable,

		TripUpdatesTTL: DefaultTripUpdatesTTL,
		AlertsTTL:      DefaultAlertsTTL,
		NegativeTTL:    DefaultNegativeTTL,
		FetchTimeout:   DefaultFetchTimeout,
		RefreshWait:    DefaultRefreshWait,
		FeedMaxSize:    DefaultFeedMaxSize,
		MaxDepartures:  DefaultMaxDepartures,

		Downloader: downloader.NewMemoryDownloader(),
		Clock:      clockwork.NewRealClock(),
		Logger:     slog.Default(),

		cache:    map[feedKey]*feedEntry{},
		negative: map[feedKey]time.Time{},
		warned:   map[feedKey]bool{},
	}
}

// Keyed returns a view of the manager bound to one request's transit
// API key. The underlying cache is shared across keys.
func (m *Manager) Keyed(apiKey string) *KeyedSource {
	return &KeyedSource{manager: m, apiKey: apiKey}
}

// KeyedSource implements commute.TransitSource for one config token's
// API key.
type KeyedSource struct {
	manager *Manager
	apiKey  string
}

// Departures returns at most MaxDepartures upcoming departures for a
// stop, live when possible, timetable-derived otherwise. An empty
// stop ID yields an empty result, not an error.
func (s *KeyedSource) Departures(ctx context.Context, stopID string, mode commute.ModeType, now time.Time) ([]commute.Departure, error) {
	if stopID == "" {
		return nil, nil
	}
	m := s.manager

	if s.apiKey != "" {
		if feed := m.tripUpdates(ctx, mode, s.apiKey); feed != nil {
			deps := m.normalize(feed, stopID, now)
			if len(deps) > 0 {
				return deps, nil
			}
		}
	}

	if m.Timetable == nil {
		return nil, nil
	}
	return m.Timetable.Departures(stopID, now, m.MaxDepartures), nil
}

// Alerts returns currently active service alerts for a mode.
func (s *KeyedSource) Alerts(ctx context.Context, mode commute.ModeType, now time.Time) ([]commute.ServiceAlert, error) {
	if s.apiKey == "" {
		return nil, nil
	}
	alerts := s.manager.alerts(ctx, mode, s.apiKey)

	active := []commute.ServiceAlert{}
	for _, a := range alerts {
		alert := commute.ServiceAlert{
			ID:          a.ID,
			RouteIDs:    a.RouteIDs,
			StopIDs:     a.StopIDs,
			Severity:    commute.AlertSeverity(a.Severity),
			EffectFrom:  a.Start,
			EffectTo:    a.End,
			Header:      a.Header,
			Description: a.Description,
			Mode:        mode,
		}
		if alert.Active(now) {
			active = append(active, alert)
		}
	}
	return active, nil
}

// RideMinutes resolves in-vehicle time from the cached realtime feed,
// falling back to the static schedule.
func (s *KeyedSource) RideMinutes(ctx context.Context, tripID, fromStopID, toStopID string) (int, bool) {
	m := s.manager

	m.mutex.Lock()
	var trip *parse.TripUpdate
	for key, entry := range m.cache {
		if key.kind != kindTripUpdates || entry.trips == nil {
			continue
		}
		for _, t := range entry.trips.Trips {
			if t.TripID == tripID {
				trip = t
				break
			}
		}
		if trip != nil {
			break
		}
	}
	m.mutex.Unlock()

	if trip != nil {
		if minutes, ok := rideFromUpdates(trip, fromStopID, toStopID); ok {
			return minutes, true
		}
	}
	if m.Timetable != nil {
		return m.Timetable.RideMinutes(tripID, fromStopID, toStopID)
	}
	return 0, false
}

func rideFromUpdates(trip *parse.TripUpdate, fromStopID, toStopID string) (int, bool) {
	from, okFrom := trip.StopAt(fromStopID)
	to, okTo := trip.StopAt(toStopID)
	if !okFrom || !okTo || to.StopSequence <= from.StopSequence {
		return 0, false
	}
	depart := bestTime(from)
	arrive := bestTime(to)
	if depart.IsZero() || arrive.IsZero() || !arrive.After(depart) {
		return 0, false
	}
	minutes := int((arrive.Sub(depart) + time.Minute - 1) / time.Minute)
	return minutes, true
}

// tripUpdates returns the trip updates feed for a mode, fetching if
// the cached copy is stale. Never errors: any failure returns the
// stale feed or nil.
func (m *Manager) tripUpdates(ctx context.Context, mode commute.ModeType, apiKey string) *parse.TripUpdates {
	key := feedKey{m.Authority.Name, mode, kindTripUpdates}
	entry := m.feed(ctx, key, m.Authority.TripUpdatesURL(mode), apiKey, m.TripUpdatesTTL)
	if entry == nil {
		return nil
	}
	return entry.trips
}

func (m *Manager) alerts(ctx context.Context, mode commute.ModeType, apiKey string) []parse.Alert {
	key := feedKey{m.Authority.Name, mode, kindAlerts}
	entry := m.feed(ctx, key, m.Authority.AlertsURL(mode), apiKey, m.AlertsTTL)
	if entry == nil {
		return nil
	}
	return entry.alerts
}

// feed implements the fetch protocol: fresh cache wins, a negative
// result suppresses refetching for NegativeTTL, and otherwise a
// single in-flight fetch per key is shared by all callers
// (singleflight). Callers wait at most RefreshWait before falling
// back to whatever is cached.
func (m *Manager) feed(ctx context.Context, key feedKey, url, apiKey string, ttl time.Duration) *feedEntry {
	now := m.Clock.Now()

	m.mutex.Lock()
	entry := m.cache[key]
	if entry != nil && now.Sub(entry.retrievedAt) < ttl {
		m.mutex.Unlock()
		return entry
	}
	if until, bad := m.negative[key]; bad && now.Before(until) {
		m.mutex.Unlock()
		return entry // stale or nil
	}
	m.mutex.Unlock()

	ch := m.group.DoChan(key.String(), func() (interface{}, error) {
		return m.fetch(key, url, apiKey)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return m.stale(key)
		}
		return res.Val.(*feedEntry)
	case <-time.After(m.RefreshWait):
		// The fetch keeps running to warm the cache.
		return m.stale(key)
	case <-ctx.Done():
		return m.stale(key)
	}
}

func (m *Manager) stale(key feedKey) *feedEntry {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.cache[key]
}

// fetch downloads and decodes one feed, updating the cache. Runs
// detached from any request context so a disconnecting client still
// warms the cache.
func (m *Manager) fetch(key feedKey, url, apiKey string) (*feedEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.FetchTimeout)
	defer cancel()

	payload, err := m.Downloader.Get(ctx, url, map[string]string{m.Authority.KeyHeader: apiKey}, downloader.GetOptions{
		Timeout: m.FetchTimeout,
		MaxSize: m.FeedMaxSize,
	})
	if err != nil {
		m.fetchFailed(key, err)
		return nil, err
	}

	entry := &feedEntry{payload: payload, retrievedAt: m.Clock.Now()}
	switch key.kind {
	case kindTripUpdates:
		entry.trips, err = parse.ParseTripUpdates(payload)
	case kindAlerts:
		entry.alerts, err = parse.ParseAlerts(payload)
	}
	if err != nil {
		// Keep the previous cache entry; a broken payload must
		// not clobber good data.
		m.fetchFailed(key, err)
		return nil, err
	}

	m.mutex.Lock()
	m.cache[key] = entry
	delete(m.negative, key)
	m.warned[key] = false
	m.mutex.Unlock()

	return entry, nil
}

func (m *Manager) fetchFailed(key feedKey, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var httpErr *downloader.HTTPError
	if errors.As(err, &httpErr) && httpErr.ClientError() {
		// 4xx is non-retryable for the moment; negative-cache
		// it so we don't hammer the authority.
		m.negative[key] = m.Clock.Now().Add(m.NegativeTTL)
	}

	// One warning per degradation, not one per request.
	if !m.warned[key] {
		m.warned[key] = true
		m.Logger.Warn("feed fetch failed, serving fallback",
			"feed", key.String(), "err", err)
	}
}

// Snapshot reports cache freshness for the status endpoint.
type Snapshot struct {
	Feeds map[string]time.Time
	Size  int
}

func (m *Manager) Snapshot() Snapshot {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	snap := Snapshot{Feeds: map[string]time.Time{}}
	for key, entry := range m.cache {
		snap.Feeds[key.String()] = entry.retrievedAt
		snap.Size += len(entry.payload)
	}
	return snap
}

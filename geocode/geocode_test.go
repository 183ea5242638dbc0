package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1ckyb/CommuteCompute-sub001/storage"
)

func nominatimServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "au", r.URL.Query().Get("countrycodes"))
		assert.Equal(t, "commutecompute/1.0", r.Header.Get("User-Agent"))

		if r.URL.Query().Get("q") == "nowhere at all" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"lat":"-37.8136","lon":"144.9631","display_name":"Example Street, Melbourne VIC 3000, Australia"}]`))
	}))
}

func TestResolveViaNominatim(t *testing.T) {
	var hits atomic.Int64
	server := nominatimServer(t, &hits)
	defer server.Close()

	c := NewClient(storage.NewMemoryKV())
	c.NominatimBase = server.URL

	loc, err := c.Resolve(context.Background(), "Example Street Melbourne", "")
	require.NoError(t, err)
	assert.InDelta(t, -37.8136, loc.Latitude, 0.0001)
	assert.InDelta(t, 144.9631, loc.Longitude, 0.0001)
	assert.Equal(t, "Example Street, Melbourne VIC 3000, Australia", loc.FormattedAddress)
	assert.Equal(t, "VIC", loc.State)
}

func TestResolveCaches(t *testing.T) {
	var hits atomic.Int64
	server := nominatimServer(t, &hits)
	defer server.Close()

	kv := storage.NewMemoryKV()
	c := NewClient(kv)
	c.NominatimBase = server.URL

	first, err := c.Resolve(context.Background(), "Example Street Melbourne", "")
	require.NoError(t, err)

	// Same address, different casing and whitespace.
	second, err := c.Resolve(context.Background(), "  example street melbourne ", "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), hits.Load())

	keys, err := kv.Keys(context.Background(), "geocode:")
	require.NoError(t, err)
	assert.Equal(t, []string{"geocode:example street melbourne"}, keys)
}

func TestResolveNoMatch(t *testing.T) {
	var hits atomic.Int64
	server := nominatimServer(t, &hits)
	defer server.Close()

	c := NewClient(storage.NewMemoryKV())
	c.NominatimBase = server.URL

	_, err := c.Resolve(context.Background(), "nowhere at all", "")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestResolveViaPlaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		switch r.URL.Path {
		case "/places:autocomplete":
			assert.Equal(t, http.MethodPost, r.Method)
			var req struct {
				Input string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Example Street Melbourne", req.Input)
			w.Write([]byte(`{"suggestions":[{"placePrediction":{"placeId":"pid-1","text":{"text":"Example Street"}}}]}`))
		case "/places/pid-1":
			assert.Equal(t, http.MethodGet, r.Method)
			w.Write([]byte(`{"formattedAddress":"1 Example St, Melbourne VIC 3000","location":{"latitude":-37.8136,"longitude":144.9631}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(storage.NewMemoryKV())
	c.PlacesBase = server.URL

	loc, err := c.Resolve(context.Background(), "Example Street Melbourne", "test-key")
	require.NoError(t, err)
	assert.Equal(t, "1 Example St, Melbourne VIC 3000", loc.FormattedAddress)
	assert.InDelta(t, -37.8136, loc.Latitude, 0.0001)
	assert.Equal(t, "VIC", loc.State)
}

func TestResolveFallsBackWhenPlacesFails(t *testing.T) {
	places := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer places.Close()

	var hits atomic.Int64
	nominatim := nominatimServer(t, &hits)
	defer nominatim.Close()

	c := NewClient(storage.NewMemoryKV())
	c.PlacesBase = places.URL
	c.NominatimBase = nominatim.URL

	loc, err := c.Resolve(context.Background(), "Example Street Melbourne", "revoked-key")
	require.NoError(t, err)
	assert.InDelta(t, -37.8136, loc.Latitude, 0.0001)
	assert.Equal(t, int64(1), hits.Load())
}

// deadlineKV fails the test when a cache call arrives without a
// per-call deadline within kvTimeout.
type deadlineKV struct {
	storage.KV
	t *testing.T
}

func (d *deadlineKV) check(ctx context.Context) {
	d.t.Helper()
	deadline, ok := ctx.Deadline()
	require.True(d.t, ok, "cache call without a deadline")
	assert.LessOrEqual(d.t, time.Until(deadline), kvTimeout)
}

func (d *deadlineKV) Get(ctx context.Context, key string) ([]byte, error) {
	d.check(ctx)
	return d.KV.Get(ctx, key)
}

func (d *deadlineKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	d.check(ctx)
	return d.KV.Set(ctx, key, value, ttl)
}

func TestCacheCallsCarryDeadline(t *testing.T) {
	var hits atomic.Int64
	server := nominatimServer(t, &hits)
	defer server.Close()

	c := NewClient(&deadlineKV{KV: storage.NewMemoryKV(), t: t})
	c.NominatimBase = server.URL

	_, err := c.Resolve(context.Background(), "Example Street Melbourne", "")
	require.NoError(t, err)
	_, err = c.Resolve(context.Background(), "Example Street Melbourne", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestResolveWithoutKV(t *testing.T) {
	var hits atomic.Int64
	server := nominatimServer(t, &hits)
	defer server.Close()

	c := NewClient(nil)
	c.NominatimBase = server.URL

	_, err := c.Resolve(context.Background(), "Example Street Melbourne", "")
	require.NoError(t, err)
}

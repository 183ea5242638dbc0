package transit

import (
	"context"
	"sync"
	"testing"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/downloader"
)

// countingDownloader serves a fixed payload and counts upstream hits.
type countingDownloader struct {
	mutex   sync.Mutex
	calls   int
	headers map[string]string
	payload []byte
	err     error
	delay   time.Duration
}

func (d *countingDownloader) Get(ctx context.Context, url string, headers map[string]string, options downloader.GetOptions) ([]byte, error) {
	d.mutex.Lock()
	d.calls++
	d.headers = headers
	d.mutex.Unlock()

	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.payload, nil
}

func (d *countingDownloader) callCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.calls
}

func tripUpdatesPayload(t *testing.T, now time.Time) []byte {
	t.Helper()
	feed := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsproto.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: []*gtfsproto.FeedEntity{{
			Id: proto.String("e1"),
			TripUpdate: &gtfsproto.TripUpdate{
				Trip: &gtfsproto.TripDescriptor{
					TripId:               proto.String("trip-1"),
					RouteId:              proto.String("vic-02-FKN-route"),
					ScheduleRelationship: gtfsproto.TripDescriptor_SCHEDULED.Enum(),
				},
				StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{
					{
						StopId:       proto.String("10001"),
						StopSequence: proto.Uint32(1),
						Departure: &gtfsproto.TripUpdate_StopTimeEvent{
							Time:  proto.Int64(now.Add(6 * time.Minute).Unix()),
							Delay: proto.Int32(120),
						},
					},
					{
						StopId:       proto.String("12204"),
						StopSequence: proto.Uint32(2),
						Arrival: &gtfsproto.TripUpdate_StopTimeEvent{
							Time: proto.Int64(now.Add(18 * time.Minute).Unix()),
						},
					},
				},
			},
		}},
	}
	payload, err := proto.Marshal(feed)
	require.NoError(t, err)
	return payload
}

func TestDeparturesFromLiveFeed(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	dl := &countingDownloader{payload: tripUpdatesPayload(t, now)}

	m := NewManager(Victoria(), nil)
	m.Downloader = dl

	deps, err := m.Keyed("test-key").Departures(context.Background(), "10001", commute.ModeTrain, now)
	require.NoError(t, err)
	require.Len(t, deps, 1)

	d := deps[0]
	assert.True(t, d.Live)
	assert.Equal(t, "trip-1", d.TripID)
	assert.Equal(t, "Frankston", d.LineName)
	assert.Equal(t, 120, d.DelaySeconds)
	assert.Equal(t, 6, d.MinutesUntil)
	// Terminus 12204 is Flinders Street, so the display destination
	// is the city, not the line name.
	assert.True(t, d.Citybound)
	assert.Equal(t, "City Loop", d.Destination)

	// The API key travels in the authority's header.
	assert.Equal(t, "test-key", dl.headers["KeyId"])
}

func TestDeparturesEmptyStopID(t *testing.T) {
	m := NewManager(Victoria(), nil)
	m.Downloader = &countingDownloader{}

	deps, err := m.Keyed("test-key").Departures(context.Background(), "", commute.ModeTrain, time.Now())
	require.NoError(t, err)
	assert.Empty(t, deps)
	assert.Zero(t, m.Downloader.(*countingDownloader).callCount())
}

func TestDeparturesWithoutKeyUsesTimetable(t *testing.T) {
	dl := &countingDownloader{}
	m := NewManager(Victoria(), nil)
	m.Downloader = dl

	deps, err := m.Keyed("").Departures(context.Background(), "10001", commute.ModeTrain, time.Now())
	require.NoError(t, err)
	assert.Empty(t, deps)
	// No key means no fetch at all.
	assert.Zero(t, dl.callCount())
}

func TestFeedSingleflight(t *testing.T) {
	now := time.Now().UTC()
	dl := &countingDownloader{payload: tripUpdatesPayload(t, now), delay: 50 * time.Millisecond}

	m := NewManager(Victoria(), nil)
	m.Downloader = dl

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Keyed("test-key").Departures(context.Background(), "10001", commute.ModeTrain, now)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, dl.callCount())
}

func TestFeedCachedWithinTTL(t *testing.T) {
	now := time.Now().UTC()
	dl := &countingDownloader{payload: tripUpdatesPayload(t, now)}

	m := NewManager(Victoria(), nil)
	m.Downloader = dl

	source := m.Keyed("test-key")
	for i := 0; i < 3; i++ {
		_, err := source.Departures(context.Background(), "10001", commute.ModeTrain, now)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, dl.callCount())
}

func TestFeedNegativeCachesClientErrors(t *testing.T) {
	dl := &countingDownloader{err: &downloader.HTTPError{StatusCode: 403, URL: "x"}}

	m := NewManager(Victoria(), nil)
	m.Downloader = dl

	source := m.Keyed("bad-key")
	for i := 0; i < 3; i++ {
		deps, err := source.Departures(context.Background(), "10001", commute.ModeTrain, time.Now())
		require.NoError(t, err)
		assert.Empty(t, deps)
	}
	// The 403 is remembered; only the first call hits upstream.
	assert.Equal(t, 1, dl.callCount())
}

func TestFeedBrokenPayloadKeepsPreviousCache(t *testing.T) {
	now := time.Now().UTC()
	dl := &countingDownloader{payload: tripUpdatesPayload(t, now)}

	m := NewManager(Victoria(), nil)
	m.Downloader = dl
	m.TripUpdatesTTL = 0 // force a refetch every call

	source := m.Keyed("test-key")
	deps, err := source.Departures(context.Background(), "10001", commute.ModeTrain, now)
	require.NoError(t, err)
	require.NotEmpty(t, deps)

	dl.mutex.Lock()
	dl.payload = []byte("garbage")
	dl.mutex.Unlock()

	deps, err = source.Departures(context.Background(), "10001", commute.ModeTrain, now)
	require.NoError(t, err)
	assert.NotEmpty(t, deps, "stale feed should still serve")
}

func TestRideMinutesFromCachedFeed(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	dl := &countingDownloader{payload: tripUpdatesPayload(t, now)}

	m := NewManager(Victoria(), nil)
	m.Downloader = dl

	source := m.Keyed("test-key")
	_, err := source.Departures(context.Background(), "10001", commute.ModeTrain, now)
	require.NoError(t, err)

	minutes, ok := source.RideMinutes(context.Background(), "trip-1", "10001", "12204")
	require.True(t, ok)
	assert.Equal(t, 12, minutes)

	_, ok = source.RideMinutes(context.Background(), "trip-9", "10001", "12204")
	assert.False(t, ok)
}

func TestRideMinutesScansAllCachedFeeds(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	dl := &countingDownloader{payload: tripUpdatesPayload(t, now)}

	m := NewManager(Victoria(), nil)
	m.Downloader = dl

	source := m.Keyed("test-key")
	_, err := source.Departures(context.Background(), "10001", commute.ModeTrain, now)
	require.NoError(t, err)

	// A second cached feed without the trip must not shadow the one
	// holding it, whatever order the cache iterates in.
	empty := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsproto.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}
	payload, err := proto.Marshal(empty)
	require.NoError(t, err)
	dl.mutex.Lock()
	dl.payload = payload
	dl.mutex.Unlock()
	_, err = source.Departures(context.Background(), "21001", commute.ModeTram, now)
	require.NoError(t, err)

	minutes, ok := source.RideMinutes(context.Background(), "trip-1", "10001", "12204")
	require.True(t, ok)
	assert.Equal(t, 12, minutes)
}

func TestSnapshotReportsCachedFeeds(t *testing.T) {
	now := time.Now().UTC()
	dl := &countingDownloader{payload: tripUpdatesPayload(t, now)}

	m := NewManager(Victoria(), nil)
	m.Downloader = dl

	_, err := m.Keyed("test-key").Departures(context.Background(), "10001", commute.ModeTrain, now)
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Len(t, snap.Feeds, 1)
	assert.Contains(t, snap.Feeds, "feed:victoria:train:tripupdates")
	assert.Greater(t, snap.Size, 0)
}

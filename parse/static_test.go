package parse

import (
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func minimalGTFS() map[string]string {
	return map[string]string{
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"s1,Alpha Station,-37.80,145.00\n" +
			"s2,Beta Station,-37.81,144.99\n",
		"routes.txt": "route_id,route_short_name,route_long_name,route_type\n" +
			"r1,,Test Line,2\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign\n" +
			"r1,weekday,t1,Beta\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"t1,07:40:00,07:40:00,s1,1\n" +
			"t1,07:52:00,07:52:00,s2,2\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"weekday,1,1,1,1,1,0,0,20260101,20261231\n",
	}
}

func TestParseStaticZip(t *testing.T) {
	static, err := ParseStaticZip(buildZip(t, minimalGTFS()))
	require.NoError(t, err)

	require.Len(t, static.Stops, 2)
	assert.Equal(t, "Alpha Station", static.Stops[0].Name)
	assert.InDelta(t, -37.80, static.Stops[0].Lat, 0.001)

	require.Len(t, static.Routes, 1)
	assert.Equal(t, 2, static.Routes[0].Type)

	require.Len(t, static.Trips, 1)
	assert.Equal(t, "weekday", static.Trips[0].ServiceID)

	require.Len(t, static.StopTimes, 2)
	assert.Equal(t, uint32(2), static.StopTimes[1].StopSequence)

	require.Len(t, static.Calendars, 1)
}

func TestParseStaticZipToleratesSubdirectories(t *testing.T) {
	files := map[string]string{}
	for name, content := range minimalGTFS() {
		files["gtfs/"+name] = content
	}

	static, err := ParseStaticZip(buildZip(t, files))
	require.NoError(t, err)
	assert.Len(t, static.Stops, 2)
}

func TestParseStaticZipMissingFile(t *testing.T) {
	files := minimalGTFS()
	delete(files, "calendar.txt")

	_, err := ParseStaticZip(buildZip(t, files))
	assert.ErrorContains(t, err, "calendar.txt")
}

func TestParseStaticZipRejectsBadStopTimes(t *testing.T) {
	files := minimalGTFS()
	files["stop_times.txt"] = "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"t1,07:40:00,not-a-time,s1,1\n"

	_, err := ParseStaticZip(buildZip(t, files))
	assert.Error(t, err)
}

func TestCalendarRunsOn(t *testing.T) {
	cal := StaticCalendar{Monday: 1, Friday: 1}
	assert.True(t, cal.RunsOn(time.Monday))
	assert.True(t, cal.RunsOn(time.Friday))
	assert.False(t, cal.RunsOn(time.Tuesday))
	assert.False(t, cal.RunsOn(time.Sunday))
}

func TestDepartureOffset(t *testing.T) {
	offset, err := DepartureOffset("07:40:30")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour+40*time.Minute+30*time.Second, offset)

	// Overnight trips run past 24 hours.
	offset, err = DepartureOffset("25:10:00")
	require.NoError(t, err)
	assert.Equal(t, 25*time.Hour+10*time.Minute, offset)

	for _, bad := range []string{"", "7:40", "aa:bb:cc", "07:61:00", "07:00:61"} {
		_, err := DepartureOffset(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

package render

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/weather"
)

func testJourney(withCoffee bool) commute.Journey {
	loc, _ := time.LoadLocation("Australia/Melbourne")
	now := time.Date(2026, 8, 24, 8, 12, 0, 0, loc)

	legs := []commute.Leg{
		{Kind: commute.LegWalk, Minutes: 5, Walk: &commute.WalkLeg{To: "Alpha Station", First: true}},
		{Kind: commute.LegTransit, Minutes: 14, Transit: &commute.TransitLeg{
			Mode:             commute.ModeTrain,
			LineName:         "Frankston",
			Origin:           commute.Stop{Name: "Alpha Station"},
			Destination:      commute.Stop{Name: "Flinders Street"},
			DepartureMinutes: 6,
			RideMinutes:      12,
			NextDepartures:   []int{16, 26},
		}},
		{Kind: commute.LegWalk, Minutes: 4, Walk: &commute.WalkLeg{To: "work", Last: true}},
	}
	if withCoffee {
		coffee := commute.Leg{Kind: commute.LegCoffee, Minutes: 7, Coffee: &commute.CoffeeLeg{
			CafeName: "Corner Cafe",
			CanGet:   true,
			Position: commute.CoffeeAtOrigin,
			Reason:   commute.ReasonTimeForCoffee,
		}}
		legs = append([]commute.Leg{legs[0], coffee}, legs[1:]...)
	}

	total := 0
	for _, leg := range legs {
		total += leg.Minutes
	}
	return commute.Journey{
		Legs:         legs,
		TotalMinutes: total,
		LeaveBy:      now,
		Arrival:      now.Add(time.Duration(total) * time.Minute),
		Status:       commute.StatusLeaveNow,
		DataSource:   commute.SourceLive,
	}
}

func testData(withCoffee bool) Data {
	loc, _ := time.LoadLocation("Australia/Melbourne")
	return Data{
		Journey:     testJourney(withCoffee),
		HomeAddress: "Suburbia",
		Destination: "500 Example Street",
		Now:         time.Date(2026, 8, 24, 8, 12, 0, 0, loc),
		Weather:     &weather.Report{TempC: 13, Condition: "Partly cloudy", Umbrella: true},
	}
}

func TestRenderFullBMP(t *testing.T) {
	profile := ProfileFor("trmnl-og")
	out, err := RenderFull(profile, testData(true))
	require.NoError(t, err)

	// BMP header.
	require.Greater(t, len(out), 62)
	assert.Equal(t, byte('B'), out[0])
	assert.Equal(t, byte('M'), out[1])

	fileSize := binary.LittleEndian.Uint32(out[2:6])
	assert.Equal(t, len(out), int(fileSize))

	stride := ((profile.Width + 31) / 32) * 4
	expected := 54 + 8 + stride*profile.Height
	assert.Equal(t, expected, len(out))

	// 1 bit per pixel.
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[28:30]))
	// Bottom-up rows use a positive height.
	assert.Equal(t, int32(profile.Height), int32(binary.LittleEndian.Uint32(out[22:26])))
}

func TestRenderFullPNG(t *testing.T) {
	profile := ProfileFor("web-preview")
	out, err := RenderFull(profile, testData(true))
	require.NoError(t, err)

	require.Greater(t, len(out), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, out[:4])
}

func TestRenderFullDeterministic(t *testing.T) {
	profile := ProfileFor("trmnl-og")
	first, err := RenderFull(profile, testData(true))
	require.NoError(t, err)
	second, err := RenderFull(profile, testData(true))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderDisruptedJourney(t *testing.T) {
	profile := ProfileFor("trmnl-og")

	data := testData(false)
	data.Journey.Status = commute.StatusDisruption
	data.Journey.DataSource = commute.SourceFallback
	transit := data.Journey.TransitLegs()[0]
	transit.Suspended = true
	transit.ReplacementMode = commute.ModeBus
	transit.DelayMinutes = 5
	data.Journey.CumulativeDelayMinutes = 5

	// Inverted badges and the replacement-bus card still rasterize.
	out, err := RenderFull(profile, data)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	badges, err := ZoneHash(profile, ZoneBadges, data)
	require.NoError(t, err)
	clean, err := ZoneHash(profile, ZoneBadges, testData(false))
	require.NoError(t, err)
	assert.NotEqual(t, clean, badges)
}

func TestRenderZone(t *testing.T) {
	profile := ProfileFor("trmnl-og")
	out, err := RenderZone(profile, ZoneStatus, testData(true))
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = RenderZone(profile, "no.such.zone", testData(true))
	assert.Error(t, err)
}

func TestListZones(t *testing.T) {
	profile := ProfileFor("trmnl-og")

	withCoffee := ListZones(profile, testJourney(true))
	withoutCoffee := ListZones(profile, testJourney(false))
	assert.Len(t, withCoffee, len(withoutCoffee)+1)

	ids := map[string]bool{}
	for _, z := range withoutCoffee {
		ids[z.ID] = true
	}
	assert.False(t, ids[ZoneCoffeeBox])
	assert.True(t, ids[ZoneLegs])
	assert.True(t, ids[ZoneFooter])
}

func TestListZonesScaled(t *testing.T) {
	mini := ProfileFor("trmnl-mini")
	zones := ListZones(mini, testJourney(false))
	for _, z := range zones {
		assert.LessOrEqual(t, z.X+z.W, mini.Width, "zone %s", z.ID)
		assert.LessOrEqual(t, z.Y+z.H, mini.Height, "zone %s", z.ID)
	}

	// Adjacent zones stay adjacent after scaling.
	var status, legs Zone
	for _, z := range zones {
		switch z.ID {
		case ZoneStatus:
			status = z
		case ZoneLegs:
			legs = z
		}
	}
	assert.Greater(t, legs.Y, status.Y)
}

func TestZoneHash(t *testing.T) {
	profile := ProfileFor("trmnl-og")

	base, err := ZoneHash(profile, ZoneFooter, testData(true))
	require.NoError(t, err)

	same, err := ZoneHash(profile, ZoneFooter, testData(true))
	require.NoError(t, err)
	assert.Equal(t, base, same)

	changed := testData(true)
	changed.Destination = "somewhere else entirely"
	other, err := ZoneHash(profile, ZoneFooter, changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, other)

	// Different zones over the same data hash differently.
	status, err := ZoneHash(profile, ZoneStatus, testData(true))
	require.NoError(t, err)
	assert.NotEqual(t, base, status)
}

func TestRenderError(t *testing.T) {
	out := RenderError(ProfileFor("trmnl-og"), "upstream feed unavailable")
	assert.NotEmpty(t, out)
	assert.Equal(t, byte('B'), out[0])

	png := RenderError(ProfileFor("web-preview"), "upstream feed unavailable")
	assert.NotEmpty(t, png)
}

func TestProfileFor(t *testing.T) {
	og := ProfileFor("trmnl-og")
	assert.Equal(t, 800, og.Width)
	assert.Equal(t, 480, og.Height)
	assert.Equal(t, FormatBMP, og.Format)

	kindle := ProfileFor("kindle-pw5")
	assert.True(t, kindle.Portrait)
	assert.Equal(t, FormatPNG, kindle.Format)

	// Unknown kinds fall back to the web preview.
	unknown := ProfileFor("some-new-device")
	assert.Equal(t, "web-preview", unknown.Kind)
	assert.Equal(t, FormatPNG, unknown.Format)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/bmp", ProfileFor("trmnl-og").ContentType())
	assert.Equal(t, "image/png", ProfileFor("web-preview").ContentType())
}

package parse

import (
	"testing"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"
)

func translated(text string) *gtfsproto.TranslatedString {
	return &gtfsproto.TranslatedString{
		Translation: []*gtfsproto.TranslatedString_Translation{
			{Text: proto.String(text), Language: proto.String("en")},
		},
	}
}

func TestParseAlerts(t *testing.T) {
	start := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)

	payload := marshalFeed(t, &gtfsproto.FeedMessage{
		Header: feedHeader("2.0"),
		Entity: []*gtfsproto.FeedEntity{{
			Id: proto.String("alert-1"),
			Alert: &gtfsproto.Alert{
				Effect:          gtfsproto.Alert_NO_SERVICE.Enum(),
				HeaderText:      translated("Buses replace trains"),
				DescriptionText: translated("Works between two stations"),
				InformedEntity: []*gtfsproto.EntitySelector{
					{RouteId: proto.String("route-1")},
					{StopId: proto.String("stop-9")},
				},
				ActivePeriod: []*gtfsproto.TimeRange{{
					Start: proto.Uint64(uint64(start.Unix())),
					End:   proto.Uint64(uint64(end.Unix())),
				}},
			},
		}},
	})

	alerts, err := ParseAlerts(payload)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, "alert-1", alert.ID)
	assert.Equal(t, SeverityDisruption, alert.Severity)
	assert.Equal(t, "Buses replace trains", alert.Header)
	assert.Equal(t, "Works between two stations", alert.Description)
	assert.Equal(t, []string{"route-1"}, alert.RouteIDs)
	assert.Equal(t, []string{"stop-9"}, alert.StopIDs)
	assert.True(t, alert.Start.Equal(start))
	assert.True(t, alert.End.Equal(end))
}

func TestParseAlertsPeriodEnvelope(t *testing.T) {
	early := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)
	late := early.Add(12 * time.Hour)

	payload := marshalFeed(t, &gtfsproto.FeedMessage{
		Header: feedHeader("2.0"),
		Entity: []*gtfsproto.FeedEntity{{
			Id: proto.String("alert-1"),
			Alert: &gtfsproto.Alert{
				ActivePeriod: []*gtfsproto.TimeRange{
					{Start: proto.Uint64(uint64(early.Add(time.Hour).Unix())), End: proto.Uint64(uint64(late.Unix()))},
					{Start: proto.Uint64(uint64(early.Unix())), End: proto.Uint64(uint64(early.Add(2 * time.Hour).Unix()))},
				},
			},
		}},
	})

	alerts, err := ParseAlerts(payload)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Start.Equal(early))
	assert.True(t, alerts[0].End.Equal(late))
}

func TestSeverityMapping(t *testing.T) {
	for _, tc := range []struct {
		name     string
		alert    *gtfsproto.Alert
		expected Severity
	}{
		{"no service wins", &gtfsproto.Alert{
			Effect:        gtfsproto.Alert_NO_SERVICE.Enum(),
			SeverityLevel: gtfsproto.Alert_INFO.Enum(),
		}, SeverityDisruption},
		{"severe", &gtfsproto.Alert{SeverityLevel: gtfsproto.Alert_SEVERE.Enum()}, SeverityDisruption},
		{"warning", &gtfsproto.Alert{SeverityLevel: gtfsproto.Alert_WARNING.Enum()}, SeverityMajor},
		{"info", &gtfsproto.Alert{SeverityLevel: gtfsproto.Alert_INFO.Enum()}, SeverityInfo},
		{"detour effect", &gtfsproto.Alert{Effect: gtfsproto.Alert_DETOUR.Enum()}, SeverityMajor},
		{"significant delays effect", &gtfsproto.Alert{Effect: gtfsproto.Alert_SIGNIFICANT_DELAYS.Enum()}, SeverityMajor},
		{"other effect", &gtfsproto.Alert{Effect: gtfsproto.Alert_OTHER_EFFECT.Enum()}, SeverityInfo},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, severityOf(tc.alert))
		})
	}
}

func TestParseAlertsIgnoresNonAlertEntities(t *testing.T) {
	payload := marshalFeed(t, &gtfsproto.FeedMessage{
		Header: feedHeader("2.0"),
		Entity: []*gtfsproto.FeedEntity{scheduledTrip("trip-1", "route-1")},
	})

	alerts, err := ParseAlerts(payload)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

package parse

import (
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"
)

// Severity grades an alert. The mapping from GTFS-RT severity levels
// and effects happens here so downstream code never sees proto enums.
type Severity string

const (
	SeverityInfo       Severity = "info"
	SeverityMinor      Severity = "minor"
	SeverityMajor      Severity = "major"
	SeverityDisruption Severity = "disruption"
)

// Alert is a normalized GTFS-RT service alert.
type Alert struct {
	ID          string
	RouteIDs    []string
	StopIDs     []string
	Severity    Severity
	Start       time.Time
	End         time.Time
	Header      string
	Description string
}

// ParseAlerts decodes a GTFS-RT FeedMessage of service alerts.
func ParseAlerts(payload []byte) ([]Alert, error) {
	f := &gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(payload, f); err != nil {
		return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
	}

	alerts := []Alert{}
	for _, entity := range f.GetEntity() {
		pa := entity.GetAlert()
		if pa == nil {
			continue
		}

		alert := Alert{
			ID:          entity.GetId(),
			Severity:    severityOf(pa),
			Header:      firstTranslation(pa.GetHeaderText()),
			Description: firstTranslation(pa.GetDescriptionText()),
		}

		for _, informed := range pa.GetInformedEntity() {
			if routeID := informed.GetRouteId(); routeID != "" {
				alert.RouteIDs = append(alert.RouteIDs, routeID)
			}
			if stopID := informed.GetStopId(); stopID != "" {
				alert.StopIDs = append(alert.StopIDs, stopID)
			}
		}

		// Multiple active periods collapse to their envelope;
		// the dashboard only asks "active now".
		for _, period := range pa.GetActivePeriod() {
			if s := int64(period.GetStart()); s != 0 {
				start := time.Unix(s, 0).UTC()
				if alert.Start.IsZero() || start.Before(alert.Start) {
					alert.Start = start
				}
			}
			if e := int64(period.GetEnd()); e != 0 {
				end := time.Unix(e, 0).UTC()
				if end.After(alert.End) {
					alert.End = end
				}
			}
		}

		alerts = append(alerts, alert)
	}

	return alerts, nil
}

// severityOf maps severity level, falling back to the effect when the
// producer didn't set one. NO_SERVICE always wins.
func severityOf(pa *gtfsproto.Alert) Severity {
	if pa.GetEffect() == gtfsproto.Alert_NO_SERVICE {
		return SeverityDisruption
	}

	switch pa.GetSeverityLevel() {
	case gtfsproto.Alert_SEVERE:
		return SeverityDisruption
	case gtfsproto.Alert_WARNING:
		return SeverityMajor
	case gtfsproto.Alert_INFO:
		return SeverityInfo
	}

	switch pa.GetEffect() {
	case gtfsproto.Alert_DETOUR:
		return SeverityMajor
	case gtfsproto.Alert_SIGNIFICANT_DELAYS, gtfsproto.Alert_REDUCED_SERVICE:
		return SeverityMajor
	case gtfsproto.Alert_OTHER_EFFECT, gtfsproto.Alert_UNKNOWN_EFFECT:
		return SeverityInfo
	}

	return SeverityMinor
}

func firstTranslation(ts *gtfsproto.TranslatedString) string {
	for _, t := range ts.GetTranslation() {
		if t.GetText() != "" {
			return t.GetText()
		}
	}
	return ""
}

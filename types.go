package commute

import (
	"time"
)

// ModeType identifies a transit mode as named by the authority.
type ModeType string

const (
	ModeTrain     ModeType = "train"
	ModeTram      ModeType = "tram"
	ModeBus       ModeType = "bus"
	ModeLightRail ModeType = "lightRail"
	ModeFerry     ModeType = "ferry"
	ModeVLine     ModeType = "vline"
)

// Location is a geocoded user address.
type Location struct {
	FormattedAddress string  `json:"formattedAddress"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	State            string  `json:"state"`
}

// Stop is a single boarding point. Two platforms of one station are
// two stops with different IDs; a stop ID uniquely determines travel
// direction.
type Stop struct {
	ID          string
	Name        string
	Mode        ModeType
	Latitude    float64
	Longitude   float64
	RouteIDs    []string
	Interchange bool
}

// Route is a line as displayed to the user.
type Route struct {
	ID          string
	LineName    string
	Mode        ModeType
	TerminusIDs []string
}

// Departure is a normalized upcoming service at a stop. Live is false
// when the entry was derived from static timetables rather than a
// realtime feed.
type Departure struct {
	StopID         string
	RouteID        string
	LineName       string
	Scheduled      time.Time // UTC
	Predicted      time.Time // UTC
	DelaySeconds   int
	MinutesUntil   int
	Destination    string
	Citybound      bool
	Live           bool
	Platform       string
	TripID         string
	TerminusStopID string
}

// Delayed reports whether the departure is running a minute or more
// behind schedule.
func (d Departure) Delayed() bool {
	return d.DelaySeconds >= 60
}

// AlertSeverity grades a service alert.
type AlertSeverity string

const (
	SeverityInfo       AlertSeverity = "info"
	SeverityMinor      AlertSeverity = "minor"
	SeverityMajor      AlertSeverity = "major"
	SeverityDisruption AlertSeverity = "disruption"
)

// ServiceAlert is a normalized GTFS-RT alert.
type ServiceAlert struct {
	ID          string
	RouteIDs    []string
	StopIDs     []string
	Severity    AlertSeverity
	EffectFrom  time.Time
	EffectTo    time.Time
	Header      string
	Description string
	Mode        ModeType
}

// Active reports whether the alert is in effect at the given instant.
func (a ServiceAlert) Active(now time.Time) bool {
	if !a.EffectFrom.IsZero() && now.Before(a.EffectFrom) {
		return false
	}
	if !a.EffectTo.IsZero() && now.After(a.EffectTo) {
		return false
	}
	return true
}

// AppliesToRoute reports whether the alert names the given route.
func (a ServiceAlert) AppliesToRoute(routeID string) bool {
	for _, id := range a.RouteIDs {
		if id == routeID {
			return true
		}
	}
	return false
}

// MinutesUntil computes the clamped whole minutes from now until t.
func MinutesUntil(now, t time.Time) int {
	m := int(t.Sub(now).Round(time.Minute) / time.Minute)
	if m < 0 {
		m = 0
	}
	return m
}

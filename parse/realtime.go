package parse

import (
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"
)

// TripUpdate is one trip's worth of realtime predictions, with stop
// time updates ordered as they appeared in the feed.
type TripUpdate struct {
	TripID   string
	RouteID  string
	Canceled bool
	Stops    []StopTimeUpdate
}

// StopTimeUpdate is a per-stop prediction.
type StopTimeUpdate struct {
	StopID         string
	StopSequence   uint32
	ArrivalIsSet   bool
	ArrivalTime    time.Time
	ArrivalDelay   time.Duration
	DepartureIsSet bool
	DepartureTime  time.Time
	DepartureDelay time.Duration
	Skipped        bool
	NoData         bool
}

// TerminusStopID is the stop ID of the last update on the trip, used
// to decide the displayed destination.
func (t *TripUpdate) TerminusStopID() string {
	if len(t.Stops) == 0 {
		return ""
	}
	return t.Stops[len(t.Stops)-1].StopID
}

// StopAt returns the update for a stop ID, if the trip calls there.
func (t *TripUpdate) StopAt(stopID string) (StopTimeUpdate, bool) {
	for _, stu := range t.Stops {
		if stu.StopID == stopID {
			return stu, true
		}
	}
	return StopTimeUpdate{}, false
}

// TripUpdates holds key data from a GTFS Realtime trip updates feed.
type TripUpdates struct {
	Timestamp uint64
	Trips     []*TripUpdate

	// These exist to simplify debugging down the road
	NumScheduledTrips int
	NumCanceledTrips  int
	NumSkippedTrips   int
}

// ParseTripUpdates decodes a GTFS-RT FeedMessage of trip updates.
func ParseTripUpdates(payload []byte) (*TripUpdates, error) {
	f := &gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(payload, f); err != nil {
		return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
	}

	header := f.GetHeader()
	version := header.GetGtfsRealtimeVersion()
	if version != "2.0" && version != "1.0" {
		return nil, fmt.Errorf("version %s not supported", version)
	}
	if header.GetIncrementality() != gtfsproto.FeedHeader_FULL_DATASET {
		return nil, fmt.Errorf("feed incrementality %s not supported", header.GetIncrementality())
	}

	rt := &TripUpdates{Timestamp: header.GetTimestamp()}

	for _, entity := range f.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		trip := tu.GetTrip()
		if trip == nil {
			return nil, fmt.Errorf("trip_update missing trip")
		}

		// A blank trip ID is allowed by spec when the trip is
		// otherwise uniquely identified. We don't support
		// that.
		if trip.GetTripId() == "" {
			continue
		}

		switch trip.GetScheduleRelationship() {
		case gtfsproto.TripDescriptor_SCHEDULED:
			parsed := &TripUpdate{
				TripID:  trip.GetTripId(),
				RouteID: trip.GetRouteId(),
			}
			for _, stu := range tu.GetStopTimeUpdate() {
				parsed.Stops = append(parsed.Stops, parseStopTimeUpdate(stu))
			}
			rt.Trips = append(rt.Trips, parsed)
			rt.NumScheduledTrips++

		case gtfsproto.TripDescriptor_CANCELED:
			rt.Trips = append(rt.Trips, &TripUpdate{
				TripID:   trip.GetTripId(),
				RouteID:  trip.GetRouteId(),
				Canceled: true,
			})
			rt.NumCanceledTrips++

		default:
			// ADDED, UNSCHEDULED and DUPLICATED trips are
			// not supported.
			rt.NumSkippedTrips++
		}
	}

	return rt, nil
}

func parseStopTimeUpdate(update *gtfsproto.TripUpdate_StopTimeUpdate) StopTimeUpdate {
	stu := StopTimeUpdate{
		StopID:       update.GetStopId(),
		StopSequence: update.GetStopSequence(),
	}

	if update.Arrival != nil {
		stu.ArrivalIsSet = true
		if t := int64(update.GetArrival().GetTime()); t != 0 {
			stu.ArrivalTime = time.Unix(t, 0).UTC()
		}
		stu.ArrivalDelay = time.Duration(update.GetArrival().GetDelay()) * time.Second
	}
	if update.Departure != nil {
		stu.DepartureIsSet = true
		if t := int64(update.GetDeparture().GetTime()); t != 0 {
			stu.DepartureTime = time.Unix(t, 0).UTC()
		}
		stu.DepartureDelay = time.Duration(update.GetDeparture().GetDelay()) * time.Second
	}

	switch update.GetScheduleRelationship() {
	case gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED:
		stu.Skipped = true
	case gtfsproto.TripUpdate_StopTimeUpdate_NO_DATA:
		stu.NoData = true
	}

	return stu
}

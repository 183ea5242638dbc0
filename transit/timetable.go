package transit

import (
	"sort"
	"time"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/parse"
)

// Timetable is the static GTFS fallback: departures derived from the
// bundled schedule when realtime feeds are unavailable. It never
// invents departures outside service hours for a stop.
type Timetable struct {
	authority *Authority
	location  *time.Location

	routes    map[string]parse.StaticRoute
	trips     map[string]parse.StaticTrip
	calendars map[string]parse.StaticCalendar

	// stop_times grouped by stop and by trip, both ordered.
	byStop map[string][]parse.StaticStopTime
	byTrip map[string][]parse.StaticStopTime
}

func NewTimetable(static *parse.Static, authority *Authority) (*Timetable, error) {
	location, err := time.LoadLocation(authority.Timezone)
	if err != nil {
		return nil, err
	}

	tt := &Timetable{
		authority: authority,
		location:  location,
		routes:    map[string]parse.StaticRoute{},
		trips:     map[string]parse.StaticTrip{},
		calendars: map[string]parse.StaticCalendar{},
		byStop:    map[string][]parse.StaticStopTime{},
		byTrip:    map[string][]parse.StaticStopTime{},
	}

	for _, route := range static.Routes {
		tt.routes[route.ID] = route
	}
	for _, trip := range static.Trips {
		tt.trips[trip.ID] = trip
	}
	for _, cal := range static.Calendars {
		tt.calendars[cal.ServiceID] = cal
	}
	for _, st := range static.StopTimes {
		tt.byStop[st.StopID] = append(tt.byStop[st.StopID], st)
		tt.byTrip[st.TripID] = append(tt.byTrip[st.TripID], st)
	}
	for _, sts := range tt.byTrip {
		sort.Slice(sts, func(i, j int) bool {
			return sts[i].StopSequence < sts[j].StopSequence
		})
	}

	return tt, nil
}

// Departures lists the next departures from a stop per the schedule,
// flagged as non-live.
func (tt *Timetable) Departures(stopID string, now time.Time, max int) []commute.Departure {
	local := now.In(tt.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tt.location)
	sinceMidnight := local.Sub(midnight)

	deps := []commute.Departure{}
	for _, st := range tt.byStop[stopID] {
		trip, ok := tt.trips[st.TripID]
		if !ok {
			continue
		}
		cal, ok := tt.calendars[trip.ServiceID]
		if !ok || !cal.RunsOn(local.Weekday()) {
			continue
		}

		offset, err := parse.DepartureOffset(st.DepartureTime)
		if err != nil || offset < sinceMidnight {
			continue
		}

		// Boarding the last stop of a trip is meaningless.
		tripStops := tt.byTrip[st.TripID]
		if len(tripStops) == 0 || tripStops[len(tripStops)-1].StopSequence == st.StopSequence {
			continue
		}

		departure := midnight.Add(offset).UTC()
		terminus := tripStops[len(tripStops)-1].StopID
		citybound := tt.authority.IsCityTerminus(terminus)
		lineName := tt.authority.LineName(trip.RouteID)
		destination := lineName
		if citybound {
			destination = tt.authority.CityDestination
		} else if trip.Headsign != "" {
			destination = trip.Headsign
		}

		deps = append(deps, commute.Departure{
			StopID:         stopID,
			RouteID:        trip.RouteID,
			LineName:       lineName,
			Scheduled:      departure,
			Predicted:      departure,
			DelaySeconds:   0,
			MinutesUntil:   commute.MinutesUntil(now, departure),
			Destination:    destination,
			Citybound:      citybound,
			Live:           false,
			TripID:         st.TripID,
			TerminusStopID: terminus,
		})
	}

	sort.Slice(deps, func(i, j int) bool {
		return deps[i].Predicted.Before(deps[j].Predicted)
	})
	if max > 0 && len(deps) > max {
		deps = deps[:max]
	}
	return deps
}

// RideMinutes computes scheduled in-vehicle time between two stops of
// a trip.
func (tt *Timetable) RideMinutes(tripID, fromStopID, toStopID string) (int, bool) {
	var from, to *parse.StaticStopTime
	for i, st := range tt.byTrip[tripID] {
		switch st.StopID {
		case fromStopID:
			from = &tt.byTrip[tripID][i]
		case toStopID:
			to = &tt.byTrip[tripID][i]
		}
	}
	if from == nil || to == nil || to.StopSequence <= from.StopSequence {
		return 0, false
	}

	dep, err1 := parse.DepartureOffset(from.DepartureTime)
	arr, err2 := parse.DepartureOffset(to.ArrivalTime)
	if err1 != nil || err2 != nil || arr <= dep {
		return 0, false
	}
	minutes := int((arr - dep + time.Minute - 1) / time.Minute)
	return minutes, true
}

// Network builds the stop/route graph from the schedule. Route
// adjacency comes from trips' stop_times; platform stops keep their
// own direction-specific IDs.
func (tt *Timetable) Network(static *parse.Static) *commute.Network {
	routesAtStop := map[string]map[string]bool{}
	for tripID, sts := range tt.byTrip {
		trip, ok := tt.trips[tripID]
		if !ok {
			continue
		}
		for _, st := range sts {
			if routesAtStop[st.StopID] == nil {
				routesAtStop[st.StopID] = map[string]bool{}
			}
			routesAtStop[st.StopID][trip.RouteID] = true
		}
	}

	stops := []commute.Stop{}
	for _, s := range static.Stops {
		routeSet := routesAtStop[s.ID]
		if len(routeSet) == 0 {
			continue
		}
		routeIDs := make([]string, 0, len(routeSet))
		for id := range routeSet {
			routeIDs = append(routeIDs, id)
		}
		sort.Strings(routeIDs)

		mode := commute.ModeTrain
		if route, ok := tt.routes[routeIDs[0]]; ok {
			mode = ModeFromRouteType(route.Type)
		}

		stops = append(stops, commute.Stop{
			ID:          s.ID,
			Name:        s.Name,
			Mode:        mode,
			Latitude:    s.Lat,
			Longitude:   s.Lon,
			RouteIDs:    routeIDs,
			Interchange: len(routeIDs) > 1,
		})
	}

	routes := []commute.Route{}
	for _, r := range static.Routes {
		routes = append(routes, commute.Route{
			ID:       r.ID,
			LineName: tt.authority.LineName(r.ID),
			Mode:     ModeFromRouteType(r.Type),
		})
	}

	return commute.NewNetwork(stops, routes)
}

// ModeFromRouteType maps GTFS route_type onto dashboard modes.
func ModeFromRouteType(routeType int) commute.ModeType {
	switch routeType {
	case 0:
		return commute.ModeTram
	case 1, 2:
		return commute.ModeTrain
	case 3:
		return commute.ModeBus
	case 4:
		return commute.ModeFerry
	}
	return commute.ModeLightRail
}

package transit

import (
	"sort"
	"time"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/parse"
)

// normalize turns a trip updates feed into Departures for one stop.
// Predicted time preference: arrival time, then departure time, then
// schedule plus delay; updates with none of those are discarded.
func (m *Manager) normalize(feed *parse.TripUpdates, stopID string, now time.Time) []commute.Departure {
	deps := []commute.Departure{}

	for _, trip := range feed.Trips {
		if trip.Canceled {
			continue
		}
		stu, ok := trip.StopAt(stopID)
		if !ok || stu.Skipped {
			continue
		}

		predicted := bestTime(stu)
		delay := bestDelay(stu)

		scheduled := time.Time{}
		if m.Timetable != nil {
			if offset, ok := m.scheduledAt(trip.TripID, stopID); ok {
				scheduled = offset
			}
		}

		if predicted.IsZero() {
			// No timestamp in the update; derive it from the
			// schedule and the delay.
			if scheduled.IsZero() {
				continue
			}
			predicted = scheduled.Add(delay)
		}
		if scheduled.IsZero() {
			scheduled = predicted.Add(-delay)
		}
		if delay == 0 && predicted.After(scheduled) {
			delay = predicted.Sub(scheduled)
		}

		if predicted.Before(now) {
			continue
		}

		terminus := trip.TerminusStopID()
		citybound := m.Authority.IsCityTerminus(terminus)
		lineName := m.Authority.LineName(trip.RouteID)
		destination := lineName
		if citybound {
			destination = m.Authority.CityDestination
		}

		deps = append(deps, commute.Departure{
			StopID:         stopID,
			RouteID:        trip.RouteID,
			LineName:       lineName,
			Scheduled:      scheduled.UTC(),
			Predicted:      predicted.UTC(),
			DelaySeconds:   int(delay / time.Second),
			MinutesUntil:   commute.MinutesUntil(now, predicted),
			Destination:    destination,
			Citybound:      citybound,
			Live:           true,
			TripID:         trip.TripID,
			TerminusStopID: terminus,
		})
	}

	sort.Slice(deps, func(i, j int) bool {
		return deps[i].Predicted.Before(deps[j].Predicted)
	})
	if m.MaxDepartures > 0 && len(deps) > m.MaxDepartures {
		deps = deps[:m.MaxDepartures]
	}
	return deps
}

// scheduledAt resolves the static departure instant for a trip at a
// stop, in UTC, anchored to today in the authority's timezone.
func (m *Manager) scheduledAt(tripID, stopID string) (time.Time, bool) {
	tt := m.Timetable
	for _, st := range tt.byTrip[tripID] {
		if st.StopID != stopID {
			continue
		}
		offset, err := parse.DepartureOffset(st.DepartureTime)
		if err != nil {
			return time.Time{}, false
		}
		local := m.Clock.Now().In(tt.location)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tt.location)
		return midnight.Add(offset).UTC(), true
	}
	return time.Time{}, false
}

// bestTime picks the update's timestamp: arrival wins over departure.
func bestTime(stu parse.StopTimeUpdate) time.Time {
	if stu.ArrivalIsSet && !stu.ArrivalTime.IsZero() {
		return stu.ArrivalTime
	}
	if stu.DepartureIsSet && !stu.DepartureTime.IsZero() {
		return stu.DepartureTime
	}
	return time.Time{}
}

func bestDelay(stu parse.StopTimeUpdate) time.Duration {
	if stu.DepartureIsSet && stu.DepartureDelay != 0 {
		return stu.DepartureDelay
	}
	return stu.ArrivalDelay
}

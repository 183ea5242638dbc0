package commute

import (
	"math"
	"sort"
)

// Walking pace used throughout: 4.5 km/h.
const WalkMetresPerMinute = 4500.0 / 60.0

// Network is the in-memory stop/route graph for one metropolitan
// area. Stops live in an arena indexed by ID; route adjacency is
// stored as index lists so interchange detection is set intersection.
type Network struct {
	stops   []Stop
	byID    map[string]int
	byRoute map[string][]int
	routes  map[string]Route
}

func NewNetwork(stops []Stop, routes []Route) *Network {
	n := &Network{
		stops:   stops,
		byID:    make(map[string]int, len(stops)),
		byRoute: map[string][]int{},
		routes:  make(map[string]Route, len(routes)),
	}
	for i, stop := range stops {
		n.byID[stop.ID] = i
		for _, routeID := range stop.RouteIDs {
			n.byRoute[routeID] = append(n.byRoute[routeID], i)
		}
	}
	for _, route := range routes {
		n.routes[route.ID] = route
	}
	return n
}

// Stop looks up a stop by ID.
func (n *Network) Stop(id string) (Stop, bool) {
	i, ok := n.byID[id]
	if !ok {
		return Stop{}, false
	}
	return n.stops[i], true
}

// Route looks up a route by ID.
func (n *Network) Route(id string) (Route, bool) {
	r, ok := n.routes[id]
	return r, ok
}

// NumStops reports the arena size.
func (n *Network) NumStops() int {
	return len(n.stops)
}

// NearbyStops returns all stops within radiusMetres of the point,
// nearest first. Modes not in the filter are excluded; a nil filter
// admits everything.
func (n *Network) NearbyStops(lat, lon, radiusMetres float64, modes map[ModeType]bool) []Stop {
	type hit struct {
		stop Stop
		dist float64
	}
	hits := []hit{}
	for _, stop := range n.stops {
		if modes != nil && !modes[stop.Mode] {
			continue
		}
		d := Haversine(lat, lon, stop.Latitude, stop.Longitude)
		if d <= radiusMetres {
			hits = append(hits, hit{stop, d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	stops := make([]Stop, len(hits))
	for i, h := range hits {
		stops[i] = h.stop
	}
	return stops
}

// SharedRoutes returns route IDs serving both stops.
func (n *Network) SharedRoutes(a, b Stop) []string {
	onB := map[string]bool{}
	for _, id := range b.RouteIDs {
		onB[id] = true
	}
	shared := []string{}
	for _, id := range a.RouteIDs {
		if onB[id] {
			shared = append(shared, id)
		}
	}
	sort.Strings(shared)
	return shared
}

// Interchanges returns pairs of stops (alight, board) within
// maxMetres of each other where alight is served by fromRoute-side
// routes and board by routes reaching the destination side. Pairs are
// discovered from the graph per call; nothing is hardcoded.
func (n *Network) Interchanges(fromStop Stop, toStop Stop, maxMetres float64) [][2]Stop {
	pairs := [][2]Stop{}
	seen := map[[2]string]bool{}

	for _, r1 := range fromStop.RouteIDs {
		for _, i1 := range n.byRoute[r1] {
			alight := n.stops[i1]
			if alight.ID == fromStop.ID {
				continue
			}
			for _, r2 := range toStop.RouteIDs {
				if r2 == r1 {
					continue
				}
				for _, i2 := range n.byRoute[r2] {
					board := n.stops[i2]
					if board.ID == toStop.ID {
						continue
					}
					if Haversine(alight.Latitude, alight.Longitude, board.Latitude, board.Longitude) > maxMetres {
						continue
					}
					key := [2]string{alight.ID, board.ID}
					if seen[key] {
						continue
					}
					seen[key] = true
					pairs = append(pairs, [2]Stop{alight, board})
				}
			}
		}
	}
	return pairs
}

// Ride speed estimates by mode, metres per minute. Used to cost
// candidates before live data fills in actual ride times.
var rideMetresPerMinute = map[ModeType]float64{
	ModeTrain:     750, // ~45 km/h incl. stops
	ModeVLine:     1200,
	ModeTram:      300,
	ModeLightRail: 350,
	ModeBus:       400,
	ModeFerry:     500,
}

// EstimateRideMinutes estimates in-vehicle time between two stops,
// rounded up, minimum one minute.
func EstimateRideMinutes(mode ModeType, from, to Stop) int {
	speed, ok := rideMetresPerMinute[mode]
	if !ok {
		speed = 500
	}
	d := Haversine(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	return ceilDiv(d, speed)
}

// WalkMinutes converts a pedestrian distance to whole minutes at
// 4.5 km/h, rounded up.
func WalkMinutes(metres float64) int {
	return ceilDiv(metres, WalkMetresPerMinute)
}

func ceilDiv(distance, perMinute float64) int {
	if distance <= 0 {
		return 0
	}
	m := int(math.Ceil(distance / perMinute))
	if m < 1 {
		m = 1
	}
	return m
}

const earthRadiusMetres = 6371000

// Haversine returns the great-circle distance in metres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMetres * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

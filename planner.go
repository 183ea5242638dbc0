package commute

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// TransitSource is what the planner needs from the transit data
// layer. Implementations never return upstream failures as errors;
// degradations surface as Live=false departures or empty results.
type TransitSource interface {
	Departures(ctx context.Context, stopID string, mode ModeType, now time.Time) ([]Departure, error)
	Alerts(ctx context.Context, mode ModeType, now time.Time) ([]ServiceAlert, error)

	// RideMinutes resolves scheduled in-vehicle time between two
	// stops on a trip. ok is false when the schedule has no
	// answer and the caller should estimate.
	RideMinutes(ctx context.Context, tripID, fromStopID, toStopID string) (int, bool)
}

const (
	DefaultMaxWalkMetres        = 800
	DefaultMaxInterchangeMetres = 600
	DefaultMaxTransitLegs       = 2

	// Caps on candidate enumeration. The stop graph can put a
	// dozen stops within walking range; the planner only ever
	// needs the closest few of each.
	maxOriginStops      = 4
	maxDestinationStops = 4
)

// Planner builds journeys. It is a pure function of its inputs plus
// the TransitSource snapshot; it holds no mutable state.
type Planner struct {
	Network *Network
	Transit TransitSource

	MaxWalkMetres        float64
	MaxInterchangeMetres float64
	MaxTransitLegs       int
	Weights              ScoreWeights

	Logger *slog.Logger
}

func NewPlanner(network *Network, transit TransitSource) *Planner {
	return &Planner{
		Network:              network,
		Transit:              transit,
		MaxWalkMetres:        DefaultMaxWalkMetres,
		MaxInterchangeMetres: DefaultMaxInterchangeMetres,
		MaxTransitLegs:       DefaultMaxTransitLegs,
		Weights:              DefaultScoreWeights(),
		Logger:               slog.Default(),
	}
}

// PlanJourney produces the journey for a config at an instant. It
// never returns an error: with no viable candidate it falls back to a
// single walking leg flagged as a disruption.
func (p *Planner) PlanJourney(ctx context.Context, cfg JourneyConfig, now time.Time) Journey {
	loc := StateTimezone(cfg.EffectiveState())
	nowLocal := now.In(loc)

	origins := p.Network.NearbyStops(cfg.Home.Latitude, cfg.Home.Longitude, p.MaxWalkMetres, nil)
	dests := p.Network.NearbyStops(cfg.Work.Latitude, cfg.Work.Longitude, p.MaxWalkMetres, nil)
	if len(origins) > maxOriginStops {
		origins = origins[:maxOriginStops]
	}
	if len(dests) > maxDestinationStops {
		dests = dests[:maxDestinationStops]
	}

	skeletons := p.enumerate(cfg, origins, dests)

	candidates := []Journey{}
	for _, sk := range skeletons {
		j, ok := p.populate(ctx, sk, nowLocal, now)
		if !ok {
			continue
		}
		candidates = append(candidates, j)
	}

	if len(candidates) == 0 {
		return p.walkingFallback(cfg, nowLocal)
	}

	best, alternative := p.rank(candidates)

	if cfg.CoffeeEnabled && cfg.Cafe != nil {
		best = p.withCoffee(best, alternative, cfg, nowLocal)
	}

	return best
}

// rank orders candidates and returns the winner plus the runner-up
// (or a zero Journey when there is only one).
func (p *Planner) rank(candidates []Journey) (Journey, Journey) {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if p.Weights.Less(c, best) {
			best = c
		}
	}
	alternative := Journey{}
	for _, c := range candidates {
		if sameShape(c, best) {
			continue
		}
		if alternative.Legs == nil || p.Weights.Less(c, alternative) {
			alternative = c
		}
	}
	return best, alternative
}

func sameShape(a, b Journey) bool {
	ta, tb := a.TransitLegs(), b.TransitLegs()
	if len(ta) != len(tb) {
		return false
	}
	for i := range ta {
		if ta[i].Origin.ID != tb[i].Origin.ID || ta[i].RouteID != tb[i].RouteID {
			return false
		}
	}
	return true
}

// skeleton is a candidate route before live data is attached.
type skeleton struct {
	legs []Leg
}

// enumerate discovers candidate routes by joining the origin and
// destination stop sets, directly and via interchanges within walking
// range.
func (p *Planner) enumerate(cfg JourneyConfig, origins, dests []Stop) []skeleton {
	skeletons := []skeleton{}
	seen := map[string]bool{}

	add := func(sk skeleton, key string) {
		if seen[key] {
			return
		}
		seen[key] = true
		skeletons = append(skeletons, sk)
	}

	for _, o := range origins {
		walkIn := WalkMinutes(Haversine(cfg.Home.Latitude, cfg.Home.Longitude, o.Latitude, o.Longitude))

		for _, d := range dests {
			if o.ID == d.ID {
				continue
			}
			walkOut := WalkMinutes(Haversine(d.Latitude, d.Longitude, cfg.Work.Latitude, cfg.Work.Longitude))

			// Direct: one transit leg on a shared route.
			for _, routeID := range p.Network.SharedRoutes(o, d) {
				route, ok := p.Network.Route(routeID)
				if !ok {
					continue
				}
				add(skeleton{legs: []Leg{
					walkLeg(cfg.Home.FormattedAddress, o.Name, walkIn, true, false),
					transitLeg(route, o, d),
					walkLeg(d.Name, cfg.Work.FormattedAddress, walkOut, false, true),
				}}, o.ID+"/"+routeID+"/"+d.ID)
			}

			if p.MaxTransitLegs < 2 {
				continue
			}

			// Via interchange: two transit legs joined by a
			// short walk.
			for _, pair := range p.Network.Interchanges(o, d, p.MaxInterchangeMetres) {
				alight, board := pair[0], pair[1]
				r1s := p.Network.SharedRoutes(o, alight)
				r2s := p.Network.SharedRoutes(board, d)
				if len(r1s) == 0 || len(r2s) == 0 {
					continue
				}
				route1, ok1 := p.Network.Route(r1s[0])
				route2, ok2 := p.Network.Route(r2s[0])
				if !ok1 || !ok2 || route1.ID == route2.ID {
					continue
				}
				xferMetres := Haversine(alight.Latitude, alight.Longitude, board.Latitude, board.Longitude)
				xfer := WalkMinutes(xferMetres)
				if xfer == 0 {
					xfer = 1 // platform change still costs a minute
				}
				add(skeleton{legs: []Leg{
					walkLeg(cfg.Home.FormattedAddress, o.Name, walkIn, true, false),
					transitLeg(route1, o, alight),
					walkLeg(alight.Name, board.Name, xfer, false, false),
					transitLeg(route2, board, d),
					walkLeg(d.Name, cfg.Work.FormattedAddress, walkOut, false, true),
				}}, o.ID+"/"+route1.ID+"/"+alight.ID+"/"+board.ID+"/"+route2.ID+"/"+d.ID)
			}
		}
	}

	return skeletons
}

func walkLeg(from, to string, minutes int, first, last bool) Leg {
	return Leg{
		Kind:    LegWalk,
		Minutes: minutes,
		Walk:    &WalkLeg{From: from, To: to, First: first, Last: last},
	}
}

func transitLeg(route Route, origin, dest Stop) Leg {
	return Leg{
		Kind:    LegTransit,
		Minutes: EstimateRideMinutes(route.Mode, origin, dest),
		Transit: &TransitLeg{
			Mode:        route.Mode,
			RouteID:     route.ID,
			LineName:    route.LineName,
			Origin:      origin,
			Destination: dest,
		},
	}
}

// populate attaches live departures, delays and alerts to a skeleton
// and computes the journey totals. Returns ok=false when a transit
// leg has no departure at all (not even from timetables).
func (p *Planner) populate(ctx context.Context, sk skeleton, nowLocal, now time.Time) (Journey, bool) {
	legs := make([]Leg, len(sk.legs))
	copy(legs, sk.legs)

	allLive := true
	priorMinutes := 0
	for i := range legs {
		if legs[i].Kind != LegTransit {
			priorMinutes += legs[i].Minutes
			continue
		}

		t := *legs[i].Transit // copy; skeletons are shared between calls

		deps, err := p.Transit.Departures(ctx, t.Origin.ID, t.Mode, now)
		if err != nil || len(deps) == 0 {
			return Journey{}, false
		}

		chosen, rest := chooseDeparture(deps, now.Add(time.Duration(priorMinutes)*time.Minute))
		if chosen == nil {
			return Journey{}, false
		}

		t.DepartureMinutes = MinutesUntil(now, chosen.Predicted)
		t.ScheduledDeparture = chosen.Scheduled
		t.DelayMinutes = int(math.Ceil(float64(chosen.DelaySeconds) / 60))
		if t.DelayMinutes < 0 {
			t.DelayMinutes = 0
		}
		t.Delayed = t.DelayMinutes >= 1
		t.LineName = chosen.LineName
		for _, alt := range rest {
			if len(t.NextDepartures) == 2 {
				break
			}
			t.NextDepartures = append(t.NextDepartures, alt.MinutesUntil)
		}
		if !chosen.Live {
			allLive = false
		}

		if ride, ok := p.Transit.RideMinutes(ctx, chosen.TripID, t.Origin.ID, t.Destination.ID); ok {
			t.RideMinutes = ride
		} else {
			t.RideMinutes = legs[i].Minutes
		}

		p.applyAlerts(ctx, &t, now)

		legs[i].Transit = &t
		legs[i].Minutes = t.RideMinutes
		priorMinutes += t.RideMinutes
	}

	j := Journey{Legs: legs, DataSource: SourceLive}
	if !allLive {
		j.DataSource = SourceFallback
	}
	finalize(&j, nowLocal)
	return j, true
}

// chooseDeparture picks the earliest departure still catchable after
// the preceding legs, and returns the later alternatives.
func chooseDeparture(deps []Departure, earliest time.Time) (*Departure, []Departure) {
	for i := range deps {
		if !deps[i].Predicted.Before(earliest) {
			return &deps[i], deps[i+1:]
		}
	}
	return nil, nil
}

func (p *Planner) applyAlerts(ctx context.Context, t *TransitLeg, now time.Time) {
	alerts, err := p.Transit.Alerts(ctx, t.Mode, now)
	if err != nil {
		return
	}
	for _, alert := range alerts {
		if !alert.Active(now) || !alert.AppliesToRoute(t.RouteID) {
			continue
		}
		switch alert.Severity {
		case SeverityDisruption:
			t.Suspended = true
			if t.ReplacementMode == "" {
				t.ReplacementMode = ModeBus
			}
		case SeverityMajor:
			t.Diverted = true
		}
	}
}

// finalize computes totals, status and times. The status text is
// always leave-now phrased, so LeaveBy is the planning instant and
// Arrival follows from the total.
func finalize(j *Journey, nowLocal time.Time) {
	sum := 0
	delay := 0
	for _, leg := range j.Legs {
		sum += leg.Minutes
		if leg.Kind == LegTransit {
			delay += leg.Transit.DelayMinutes
		}
	}
	j.CumulativeDelayMinutes = delay
	j.TotalMinutes = sum + delay
	j.Status = statusFor(j.Legs)
	j.LeaveBy = nowLocal
	j.Arrival = nowLocal.Add(time.Duration(j.TotalMinutes) * time.Minute)
}

// walkingFallback is the no-services journey: one walk leg covering
// the great-circle distance at walking pace.
func (p *Planner) walkingFallback(cfg JourneyConfig, nowLocal time.Time) Journey {
	minutes := WalkMinutes(Haversine(
		cfg.Home.Latitude, cfg.Home.Longitude,
		cfg.Work.Latitude, cfg.Work.Longitude,
	))
	j := Journey{
		Legs: []Leg{
			walkLeg(cfg.Home.FormattedAddress, cfg.Work.FormattedAddress, minutes, true, true),
		},
		DataSource:     SourceFallback,
		DisruptionText: "No services found",
	}
	finalize(&j, nowLocal)
	j.Status = StatusDisruption
	return j
}

package commute

import (
	"strconv"
	"strings"
	"time"
)

// CoffeeDecision is the trace of the coffee placement choice. It is
// recorded on the journey even when no leg is inserted, so the
// renderer can explain a skipped stop.
type CoffeeDecision struct {
	Position        CoffeePosition
	CanGet          bool
	Reason          CoffeeReason
	CafeName        string
	DurationMinutes int
	InterchangeStop string
}

// Viability radii, metres.
const (
	coffeeOriginCafeRadius      = 800
	coffeeInterchangeCafeRadius = 250
	coffeeDestinationCafeRadius = 400

	// Extra walking a cafe detour may add on the way to the first
	// stop before the origin position stops being viable.
	coffeeMaxDetourMinutes = 4

	// Minimum slack left over after inserting the stop.
	coffeeSlackBufferMinutes = 2

	// Slack needed before a disruption upgrades the reason.
	coffeeDisruptionSlackMinutes = 5
)

type coffeePlacement struct {
	position     CoffeePosition
	walkDelta    int
	addedMinutes int
	interchange  string
}

// PlaceCoffee decides whether a coffee stop fits the candidate's
// slack and where it goes. nowLocal must be in the user's state
// timezone; the Friday rule follows that zone, not the server's.
func PlaceCoffee(candidate Journey, cfg JourneyConfig, nowLocal time.Time) CoffeeDecision {
	decision := CoffeeDecision{CanGet: false}
	if cfg.Cafe == nil {
		decision.Reason = ReasonNoSlack
		return decision
	}
	decision.CafeName = cfg.Cafe.FormattedAddress

	target := cfg.TargetArrival(nowLocal)
	slack := int(target.Sub(nowLocal)/time.Minute) - candidate.TotalMinutes
	if slack < 0 {
		decision.Reason = ReasonSkipRunningLate
		return decision
	}

	prep := cfg.PrepMinutes()
	placements := viablePlacements(candidate, cfg, prep)

	kept := []coffeePlacement{}
	for _, pl := range placements {
		if slack >= pl.addedMinutes+coffeeSlackBufferMinutes {
			kept = append(kept, pl)
		}
	}
	if len(kept) == 0 {
		decision.Reason = ReasonNoSlack
		return decision
	}

	if !cafeOpenAt(cfg, nowLocal) {
		decision.Reason = ReasonCafeClosed
		return decision
	}

	chosen := chooseCoffeePlacement(kept, nowLocal)

	decision.CanGet = true
	decision.Position = chosen.position
	decision.DurationMinutes = chosen.walkDelta + prep
	decision.InterchangeStop = chosen.interchange
	decision.Reason = ReasonTimeForCoffee
	if nowLocal.Weekday() == time.Friday && chosen.position == CoffeeAtDestination {
		decision.Reason = ReasonFridayTreat
	}

	// A disruption on the candidate with slack to spare reframes
	// the stop as making use of the extra time.
	if candidateDisrupted(candidate) && slack-decision.DurationMinutes >= coffeeDisruptionSlackMinutes {
		decision.Reason = ReasonExtraTimeDisruption
	}

	return decision
}

func viablePlacements(candidate Journey, cfg JourneyConfig, prep int) []coffeePlacement {
	cafe := *cfg.Cafe
	placements := []coffeePlacement{}

	transits := candidate.TransitLegs()
	if len(transits) > 0 {
		first := transits[0].Origin

		homeCafe := Haversine(cfg.Home.Latitude, cfg.Home.Longitude, cafe.Latitude, cafe.Longitude)
		if homeCafe <= coffeeOriginCafeRadius {
			viaCafe := WalkMinutes(homeCafe) +
				WalkMinutes(Haversine(cafe.Latitude, cafe.Longitude, first.Latitude, first.Longitude))
			direct := WalkMinutes(Haversine(cfg.Home.Latitude, cfg.Home.Longitude, first.Latitude, first.Longitude))
			delta := viaCafe - direct
			if delta < 0 {
				delta = 0
			}
			if delta <= coffeeMaxDetourMinutes {
				placements = append(placements, coffeePlacement{
					position:     CoffeeAtOrigin,
					walkDelta:    delta,
					addedMinutes: delta + prep,
				})
			}
		}
	}

	if len(transits) >= 2 {
		board := transits[1].Origin
		d := Haversine(board.Latitude, board.Longitude, cafe.Latitude, cafe.Longitude)
		if d <= coffeeInterchangeCafeRadius {
			delta := 2 * WalkMinutes(d)
			placements = append(placements, coffeePlacement{
				position:     CoffeeAtInterchange,
				walkDelta:    delta,
				addedMinutes: delta + prep,
				interchange:  board.Name,
			})
		}
	}

	workCafe := Haversine(cfg.Work.Latitude, cfg.Work.Longitude, cafe.Latitude, cafe.Longitude)
	if workCafe <= coffeeDestinationCafeRadius {
		delta := 2 * WalkMinutes(workCafe)
		placements = append(placements, coffeePlacement{
			position:     CoffeeAtDestination,
			walkDelta:    delta,
			addedMinutes: delta + prep,
		})
	}

	return placements
}

// chooseCoffeePlacement prefers origin on weekdays and destination on
// Fridays; ties break by smallest added minutes.
func chooseCoffeePlacement(placements []coffeePlacement, nowLocal time.Time) coffeePlacement {
	preferred := CoffeeAtOrigin
	if nowLocal.Weekday() == time.Friday {
		preferred = CoffeeAtDestination
	}

	best := placements[0]
	for _, pl := range placements[1:] {
		bp := best.position == preferred
		pp := pl.position == preferred
		if pp != bp {
			if pp {
				best = pl
			}
			continue
		}
		if pl.addedMinutes < best.addedMinutes {
			best = pl
		}
	}
	return best
}

func candidateDisrupted(j Journey) bool {
	for _, t := range j.TransitLegs() {
		if t.Suspended || t.Diverted {
			return true
		}
	}
	return false
}

// cafeOpenAt checks cached business hours carried in the config
// extensions as "HH:MM-HH:MM". Absent or malformed hours mean open.
func cafeOpenAt(cfg JourneyConfig, nowLocal time.Time) bool {
	hours, ok := cfg.Extensions["cafeHours"]
	if !ok {
		return true
	}
	parts := strings.SplitN(hours, "-", 2)
	if len(parts) != 2 {
		return true
	}
	open, ok1 := minuteOfDay(parts[0])
	close, ok2 := minuteOfDay(parts[1])
	if !ok1 || !ok2 {
		return true
	}
	at := nowLocal.Hour()*60 + nowLocal.Minute()
	return at >= open && at < close
}

func minuteOfDay(hhmm string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(hhmm), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// withCoffee inserts the decided coffee stop into the best candidate.
// When the runner-up also accommodates a stop, scoring picks the
// cheaper coffee variant; a viable stop is never scored away against
// the plain journey. The decision trace is recorded either way.
func (p *Planner) withCoffee(best, alternative Journey, cfg JourneyConfig, nowLocal time.Time) Journey {
	decision := PlaceCoffee(best, cfg, nowLocal)
	if !decision.CanGet {
		best.Coffee = &decision
		return best
	}

	chosen := insertCoffee(best, decision, cfg, nowLocal)
	if alternative.Legs != nil {
		if altDecision := PlaceCoffee(alternative, cfg, nowLocal); altDecision.CanGet {
			variant := insertCoffee(alternative, altDecision, cfg, nowLocal)
			if p.Weights.Less(variant, chosen) {
				chosen = variant
			}
		}
	}
	return chosen
}

// insertCoffee splices the coffee leg into a copy of the journey at
// the decided position and recomputes totals.
func insertCoffee(j Journey, decision CoffeeDecision, cfg JourneyConfig, nowLocal time.Time) Journey {
	leg := Leg{
		Kind:    LegCoffee,
		Minutes: decision.DurationMinutes,
		Coffee: &CoffeeLeg{
			CafeName:        decision.CafeName,
			CanGet:          true,
			Position:        decision.Position,
			Reason:          decision.Reason,
			InterchangeStop: decision.InterchangeStop,
		},
	}

	legs := make([]Leg, 0, len(j.Legs)+2)

	switch decision.Position {
	case CoffeeAtOrigin:
		// The coffee stop replaces part of the first walk:
		// home to cafe, coffee, then cafe to the stop. The
		// detour delta is carried inside the coffee leg so
		// the leg sum still adds exactly the decided minutes.
		if len(j.Legs) > 0 && j.Legs[0].Kind == LegWalk {
			orig := j.Legs[0]
			toCafe := WalkMinutes(Haversine(cfg.Home.Latitude, cfg.Home.Longitude, cfg.Cafe.Latitude, cfg.Cafe.Longitude))
			if toCafe > orig.Minutes {
				toCafe = orig.Minutes
			}
			legs = append(legs,
				walkLeg(orig.Walk.From, decision.CafeName, toCafe, true, false),
				leg,
				walkLeg(decision.CafeName, orig.Walk.To, orig.Minutes-toCafe, false, false),
			)
			legs = append(legs, j.Legs[1:]...)
		} else {
			legs = append(legs, leg)
			legs = append(legs, j.Legs...)
		}

	case CoffeeAtInterchange:
		inserted := false
		transitSeen := 0
		for _, l := range j.Legs {
			legs = append(legs, l)
			if l.Kind == LegTransit {
				transitSeen++
				if transitSeen == 1 && !inserted {
					legs = append(legs, leg)
					inserted = true
				}
			}
		}

	case CoffeeAtDestination:
		if len(j.Legs) > 0 && j.Legs[len(j.Legs)-1].Kind == LegWalk {
			legs = append(legs, j.Legs[:len(j.Legs)-1]...)
			legs = append(legs, leg, j.Legs[len(j.Legs)-1])
		} else {
			legs = append(legs, j.Legs...)
			legs = append(legs, leg)
		}
	}

	out := j
	out.Legs = legs
	out.Coffee = nil
	finalize(&out, nowLocal)
	return out
}

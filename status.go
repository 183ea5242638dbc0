package commute

import (
	"fmt"
	"strings"
	"time"
)

// statusFor applies the status rules in order: suspensions (or
// diversions) win, then two or more delayed legs, then one, then
// leave-now.
func statusFor(legs []Leg) StatusKind {
	delayed := 0
	diverted := false
	for _, leg := range legs {
		if leg.Kind != LegTransit {
			continue
		}
		if leg.Transit.Suspended {
			return StatusDisruption
		}
		if leg.Transit.Diverted {
			diverted = true
		}
		if leg.Transit.Delayed {
			delayed++
		}
	}
	if diverted {
		return StatusDiversion
	}
	switch {
	case delayed >= 2:
		return StatusDelays
	case delayed == 1:
		return StatusDelay
	}
	return StatusLeaveNow
}

// Clock12 formats a time as a 12-hour clock with a lower-case am/pm
// suffix. The dashboard never shows 24-hour times.
func Clock12(t time.Time) string {
	return strings.ToLower(t.Format("3:04pm"))
}

// StatusMessage renders the status bar text. Everything is phrased
// from a leave-now perspective; there is deliberately no "leave in N
// minutes" variant.
func (j Journey) StatusMessage() string {
	switch j.Status {
	case StatusDelay:
		return fmt.Sprintf("DELAY → Arrive %s (+%d min)", Clock12(j.Arrival), j.CumulativeDelayMinutes)
	case StatusDelays:
		return fmt.Sprintf("DELAYS → Arrive %s (+%d min)", Clock12(j.Arrival), j.CumulativeDelayMinutes)
	case StatusDisruption, StatusDiversion:
		text := j.DisruptionText
		if text == "" {
			text = fmt.Sprintf("Arrive %s", Clock12(j.Arrival))
		}
		return "DISRUPTION → " + text
	}
	return "LEAVE NOW"
}

package commute

// ScoreWeights are the candidate cost weights. Defaults match the
// production tuning; they are compile-time named constants, not a
// generic configuration surface.
type ScoreWeights struct {
	TotalMinutes float64
	Transfers    float64
	WalkMinutes  float64
	Reliability  float64
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		TotalMinutes: 0.40,
		Transfers:    0.25,
		WalkMinutes:  0.20,
		Reliability:  0.15,
	}
}

const (
	transferPenaltyMinutes   = 5
	disruptionPenaltyMinutes = 10
)

// Score costs a candidate journey. The reliability penalty is the sum
// of live delay minutes plus a flat penalty for each suspended or
// bus-replaced leg.
func (w ScoreWeights) Score(j Journey) float64 {
	transfers := 0
	reliability := 0.0
	for _, t := range j.TransitLegs() {
		transfers++
		reliability += float64(t.DelayMinutes)
		if t.Suspended || t.ReplacementMode != "" {
			reliability += disruptionPenaltyMinutes
		}
	}
	if transfers > 0 {
		transfers--
	}

	return w.TotalMinutes*float64(j.TotalMinutes) +
		w.Transfers*float64(transferPenaltyMinutes*transfers) +
		w.WalkMinutes*float64(j.WalkMinutes()) +
		w.Reliability*reliability
}

// Less orders candidates: lower score wins, ties break by fewer
// transfers, then less walking, then earliest arrival.
func (w ScoreWeights) Less(a, b Journey) bool {
	sa, sb := w.Score(a), w.Score(b)
	if sa != sb {
		return sa < sb
	}
	ta, tb := len(a.TransitLegs()), len(b.TransitLegs())
	if ta != tb {
		return ta < tb
	}
	wa, wb := a.WalkMinutes(), b.WalkMinutes()
	if wa != wb {
		return wa < wb
	}
	return a.Arrival.Before(b.Arrival)
}

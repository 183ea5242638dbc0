package commute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func journeyWith(total, walk, transits, delay int, suspended bool) Journey {
	legs := []Leg{}
	if walk > 0 {
		legs = append(legs, walkLeg("a", "b", walk, true, false))
	}
	for i := 0; i < transits; i++ {
		t := &TransitLeg{}
		if i == 0 {
			t.DelayMinutes = delay
			t.Suspended = suspended
		}
		legs = append(legs, Leg{Kind: LegTransit, Minutes: 10, Transit: t})
	}
	return Journey{Legs: legs, TotalMinutes: total}
}

func TestScorePrefersFasterJourneys(t *testing.T) {
	w := DefaultScoreWeights()

	fast := journeyWith(20, 5, 1, 0, false)
	slow := journeyWith(35, 5, 1, 0, false)
	assert.True(t, w.Less(fast, slow))
}

func TestScorePenalizesTransfers(t *testing.T) {
	w := DefaultScoreWeights()

	direct := journeyWith(25, 5, 1, 0, false)
	twoLeg := journeyWith(25, 5, 2, 0, false)
	assert.Less(t, w.Score(direct), w.Score(twoLeg))
}

func TestScorePenalizesDisruption(t *testing.T) {
	w := DefaultScoreWeights()

	clean := journeyWith(25, 5, 1, 0, false)
	suspended := journeyWith(25, 5, 1, 0, true)
	delayed := journeyWith(25, 5, 1, 4, false)

	assert.Less(t, w.Score(clean), w.Score(delayed))
	assert.Less(t, w.Score(delayed), w.Score(suspended))
}

func TestLessTieBreaks(t *testing.T) {
	w := ScoreWeights{} // all weights zero forces ties

	now := time.Now()
	early := journeyWith(20, 5, 1, 0, false)
	early.Arrival = now
	late := journeyWith(20, 5, 1, 0, false)
	late.Arrival = now.Add(5 * time.Minute)

	assert.True(t, w.Less(early, late))
	assert.False(t, w.Less(late, early))

	lessWalking := journeyWith(20, 3, 1, 0, false)
	assert.True(t, w.Less(lessWalking, early))
}

package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
)

// Canonical legs zone geometry.
const (
	legsTop    = 132
	legsBottom = 440
	cardGap    = 14
	cardMargin = 8
	boxWidth   = 76
)

// drawLegs stacks one card per leg with arrow connectors in the gaps.
// Card height shrinks as leg count grows.
func (f *frame) drawLegs() {
	legs := f.data.Journey.Legs
	if len(legs) == 0 {
		return
	}
	if len(legs) > 7 {
		legs = legs[:7]
	}

	cardHeight := (legsBottom-legsTop)/len(legs) - cardGap

	for i, leg := range legs {
		top := legsTop + i*(cardHeight+cardGap)
		f.drawLegCard(leg, i+1, top, cardHeight, len(legs))

		if i > 0 {
			f.drawConnector(top)
		}
	}
}

// drawConnector is the small downward arrow in the gap above a card.
func (f *frame) drawConnector(cardTop int) {
	cx := f.x(40)
	top := f.y(cardTop - cardGap + 2)
	bottom := f.y(cardTop - 2)
	f.c.vLine(cx, top, bottom-top, shadeGrey)
	f.c.set(cx-1, bottom-2, shadeGrey)
	f.c.set(cx+1, bottom-2, shadeGrey)
	f.c.set(cx-2, bottom-3, shadeGrey)
	f.c.set(cx+2, bottom-3, shadeGrey)
}

func (f *frame) drawLegCard(leg commute.Leg, number, top, height, legCount int) {
	x, y := f.x(cardMargin), f.y(top)
	w, h := f.x(canonicalWidth-2*cardMargin), f.y(height)

	cancelled := leg.Kind == commute.LegTransit && leg.Transit.Suspended
	delayed := leg.Kind == commute.LegTransit && leg.Transit.Delayed
	skipped := leg.Kind == commute.LegCoffee && !leg.Coffee.CanGet
	coffeeOn := leg.Kind == commute.LegCoffee && leg.Coffee.CanGet

	switch {
	case coffeeOn:
		f.c.rect(x, y, w, h, 2, shadeBlack)
	case delayed:
		f.c.dashedRect(x, y, w, h, 2, shadeBlack)
	case skipped:
		f.c.dashedRect(x, y, w, h, 1, shadeGrey)
	default:
		f.c.rect(x, y, w, h, 1, shadeBlack)
	}
	if cancelled {
		f.c.stripes(x+2, y+2, w-4, h-4, shadeGrey)
	}

	f.drawLegNumber(number, x, y, h, cancelled, skipped)

	glyphSize := f.y(32 - 2*legCount)
	drawGlyph(f.c, glyphFor(leg), x+f.x(58), y+(h-glyphSize)/2, glyphSize)

	title, subtitle := legText(leg)
	titleSize := f.size(16 - legCount)
	textX := x + f.x(100)
	if cancelled {
		// Opaque plate so the label reads over the stripes.
		tw := f.c.textWidth(title, true, titleSize)
		f.c.fillRect(textX-f.x(4), y+f.y(4), tw+f.x(8), h-f.y(8), shadeWhite)
	}
	f.c.text(title, textX, y+h/2-f.y(2), true, titleSize, shadeBlack)
	if subtitle != "" && height >= 34 {
		f.c.text(subtitle, textX, y+h/2+f.y(14), false, f.size(11), shadeGrey)
	}

	if leg.Kind == commute.LegTransit {
		f.drawDepartColumn(leg.Transit, x, y, w, h)
	}

	f.drawDurationBox(leg, x+w-f.x(boxWidth+6), y+f.y(4), f.x(boxWidth), h-f.y(8))
}

func (f *frame) drawLegNumber(number, cardX, cardY, cardH int, cancelled, skipped bool) {
	r := f.y(13)
	cx := cardX + f.x(30)
	cy := cardY + cardH/2

	label := strconv.Itoa(number)
	switch {
	case cancelled:
		f.c.fillCircle(cx, cy, r, shadeWhite)
		f.c.circle(cx, cy, r, shadeBlack)
		label = "✗"
	case skipped:
		f.c.dashedCircle(cx, cy, r, shadeGrey)
	default:
		f.c.fillCircle(cx, cy, r, shadeBlack)
	}

	ink := shadeWhite
	if cancelled || skipped {
		ink = shadeBlack
	}
	size := f.size(13)
	tw := f.c.textWidth(label, true, size)
	f.c.text(label, cx-tw/2, cy+f.c.textHeight(true, size)/2, true, size, ink)
}

// drawDepartColumn shows the departure time and, space permitting,
// the following services.
func (f *frame) drawDepartColumn(leg *commute.TransitLeg, cardX, cardY, cardW, cardH int) {
	x := cardX + cardW - f.x(boxWidth+160)
	f.c.text("DEPART", x, cardY+cardH/2-f.y(2), false, f.size(9), shadeGrey)

	depart := f.data.Now.Add(time.Duration(leg.DepartureMinutes) * time.Minute)
	f.c.text(commute.Clock12(depart), x, cardY+cardH/2+f.y(14), true, f.size(13), shadeBlack)

	if len(leg.NextDepartures) > 0 && cardH >= f.y(50) {
		next := make([]string, len(leg.NextDepartures))
		for i, m := range leg.NextDepartures {
			next[i] = strconv.Itoa(m)
		}
		f.c.text("then "+strings.Join(next, ", ")+" min", x, cardY+cardH-f.y(6), false, f.size(9), shadeGrey)
	}
}

// drawDurationBox renders the right-edge minutes box in one of four
// states: normal, delayed, skipped, cancelled.
func (f *frame) drawDurationBox(leg commute.Leg, x, y, w, h int) {
	switch {
	case leg.Kind == commute.LegTransit && leg.Transit.Suspended:
		f.c.stripes(x, y, w, h, shadeBlack)
		label := "CANCELLED"
		size := f.size(9)
		tw := f.c.textWidth(label, true, size)
		f.c.fillRect(x+(w-tw)/2-2, y+h/2-f.y(7), tw+4, f.y(14), shadeWhite)
		f.c.text(label, x+(w-tw)/2, y+h/2+f.y(4), true, size, shadeBlack)

	case leg.Kind == commute.LegTransit && leg.Transit.Delayed:
		f.c.fillRect(x, y, w, h, shadeWhite)
		f.c.rect(x, y, w, h, 1, shadeBlack)
		f.c.dashedVLine(x, y, h, 2, shadeBlack)
		label := fmt.Sprintf("+%d min", leg.Transit.DelayMinutes)
		tw := f.c.textWidth(label, true, f.size(13))
		f.c.text(label, x+(w-tw)/2, y+h/2+f.y(5), true, f.size(13), shadeBlack)

	case leg.Kind == commute.LegCoffee && !leg.Coffee.CanGet:
		f.c.dashedRect(x, y, w, h, 1, shadeGrey)
		tw := f.c.textWidth("—", true, f.size(14))
		f.c.text("—", x+(w-tw)/2, y+h/2+f.y(5), true, f.size(14), shadeGrey)

	default:
		f.c.fillRect(x, y, w, h, shadeBlack)
		minutes := strconv.Itoa(leg.Minutes)
		tw := f.c.textWidth(minutes, true, f.size(17))
		f.c.text(minutes, x+(w-tw)/2, y+h/2, true, f.size(17), shadeWhite)
		tw = f.c.textWidth("min", false, f.size(9))
		f.c.text("min", x+(w-tw)/2, y+h-f.y(6), false, f.size(9), shadeWhite)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func glyphFor(leg commute.Leg) glyph {
	switch leg.Kind {
	case commute.LegWalk:
		return glyphWalk
	case commute.LegCoffee:
		return glyphCoffee
	}
	switch leg.Transit.Mode {
	case commute.ModeTram, commute.ModeLightRail:
		return glyphTram
	case commute.ModeBus:
		return glyphBus
	case commute.ModeFerry:
		return glyphFerry
	}
	return glyphTrain
}

// legText builds the card's title and subtitle lines.
func legText(leg commute.Leg) (string, string) {
	switch leg.Kind {
	case commute.LegWalk:
		return "Walk to " + truncate(leg.Walk.To, 30),
			fmt.Sprintf("%d min walk", leg.Minutes)

	case commute.LegCoffee:
		title := "Coffee at " + truncate(leg.Coffee.CafeName, 26)
		if !leg.Coffee.CanGet {
			title = "Skip coffee today"
		}
		return title, coffeeReasonText(leg.Coffee.Reason)

	default:
		t := leg.Transit
		mode := t.Mode
		if t.Suspended && t.ReplacementMode != "" {
			mode = t.ReplacementMode
		}
		title := t.LineName
		if title == "" {
			title = capitalize(string(mode))
		}
		subtitle := truncate(t.Origin.Name, 22) + " to " + truncate(t.Destination.Name, 22)
		if t.Suspended {
			subtitle = "Replacement " + string(mode) + " service"
		} else if t.Express {
			subtitle += " (express)"
		}
		return title, subtitle
	}
}

package render

import (
	"fmt"
	"strings"
	"time"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/weather"
)

// Data is everything a frame depends on. Rendering is a pure function
// of this value; two equal Data values produce identical bytes.
type Data struct {
	Journey     commute.Journey
	HomeAddress string
	Destination string
	Now         time.Time // local to the user's state
	Weather     *weather.Report
}

// frame carries the scale factors from the canonical 800x480 layout
// to the target profile.
type frame struct {
	c    *canvas
	data Data
	sx   float64
	sy   float64
}

func newFrame(c *canvas, profile DeviceProfile, data Data) *frame {
	return &frame{
		c:    c,
		data: data,
		sx:   float64(profile.Width) / canonicalWidth,
		sy:   float64(profile.Height) / canonicalHeight,
	}
}

func (f *frame) x(v int) int { return int(float64(v) * f.sx) }
func (f *frame) y(v int) int { return int(float64(v) * f.sy) }

// size scales a canonical font size, clamped so text stays legible on
// small frames.
func (f *frame) size(v int) int {
	s := f.sy
	if f.sx < s {
		s = f.sx
	}
	scaled := int(float64(v) * s)
	if scaled < 8 {
		return 8
	}
	return scaled
}

func (f *frame) drawZone(id string) {
	switch id {
	case ZoneLocation:
		f.drawLocation()
	case ZoneTime:
		f.drawTime()
	case ZoneDayDate:
		f.drawDayDate()
	case ZoneBadges:
		f.drawBadges()
	case ZoneCoffeeBox:
		f.drawCoffeeBox()
	case ZoneWeather:
		f.drawWeather()
	case ZoneStatus:
		f.drawStatusBar()
	case ZoneLegs:
		f.drawLegs()
	case ZoneFooter:
		f.drawFooter()
	}
}

func (f *frame) drawLocation() {
	address := strings.ToUpper(strings.TrimSpace(f.data.HomeAddress))
	f.c.text(truncate(address, 48), f.x(8), f.y(15), false, f.size(12), shadeBlack)
}

func (f *frame) drawTime() {
	clock := commute.Clock12(f.data.Now)
	suffix := clock[len(clock)-2:]
	digits := clock[:len(clock)-2]

	f.c.text(digits, f.x(8), f.y(78), true, f.size(44), shadeBlack)
	w := f.c.textWidth(digits, true, f.size(44))
	f.c.text(suffix, f.x(8)+w+f.x(4), f.y(78), false, f.size(16), shadeGrey)
}

func (f *frame) drawDayDate() {
	f.c.text(f.data.Now.Format("Monday 2 Jan"), f.x(146), f.y(36), false, f.size(13), shadeBlack)
}

// Badge boxes are a fixed 115x16 in canonical units.
const (
	badgeWidth  = 115
	badgeHeight = 16
)

func (f *frame) drawBadges() {
	disrupted := f.data.Journey.Status == commute.StatusDisruption ||
		f.data.Journey.Status == commute.StatusDiversion

	service := "SERVICES OK"
	if disrupted {
		service = "DISRUPTION"
	}
	f.drawBadge(146, 46, service, disrupted)

	source := "LIVE"
	if !f.data.Journey.Live() {
		source = "TIMETABLE FALLBACK"
	}
	f.drawBadge(146, 68, source, !f.data.Journey.Live())
}

// drawBadge renders one 115x16 box, inverted when it flags a problem.
func (f *frame) drawBadge(cx, cy int, label string, inverted bool) {
	x, y := f.x(cx), f.y(cy)
	w, h := f.x(badgeWidth), f.y(badgeHeight)

	ink, paper := shadeBlack, shadeWhite
	if inverted {
		ink, paper = shadeWhite, shadeBlack
	}
	f.c.fillRect(x, y, w, h, paper)
	f.c.rect(x, y, w, h, 1, shadeBlack)

	size := f.size(9)
	tw := f.c.textWidth(label, true, size)
	f.c.text(label, x+(w-tw)/2, y+h-(h-f.c.textHeight(true, size))/2, true, size, ink)
}

func (f *frame) drawCoffeeBox() {
	coffee := f.data.Journey.CoffeeLeg()
	if coffee == nil {
		return
	}
	x, y := f.x(384), f.y(8)
	w, h := f.x(232), f.y(78)

	if coffee.CanGet {
		f.c.rect(x, y, w, h, 2, shadeBlack)
	} else {
		f.c.dashedRect(x, y, w, h, 1, shadeGrey)
	}

	drawGlyph(f.c, glyphCoffee, x+f.x(10), y+f.y(14), f.y(28))

	title := "COFFEE RUN"
	if !coffee.CanGet {
		title = "NO COFFEE"
	}
	f.c.text(title, x+f.x(48), y+f.y(26), true, f.size(14), shadeBlack)
	f.c.text(truncate(coffee.CafeName, 24), x+f.x(48), y+f.y(44), false, f.size(11), shadeBlack)
	f.c.text(coffeeReasonText(coffee.Reason), x+f.x(48), y+f.y(62), false, f.size(10), shadeGrey)
}

func coffeeReasonText(reason commute.CoffeeReason) string {
	switch reason {
	case commute.ReasonTimeForCoffee:
		return "Time to spare"
	case commute.ReasonExtraTimeDisruption:
		return "Disruption spare time"
	case commute.ReasonFridayTreat:
		return "Friday treat"
	case commute.ReasonCafeClosed:
		return "Cafe closed"
	case commute.ReasonSkipRunningLate:
		return "Running late"
	case commute.ReasonNoSlack:
		return "No time today"
	}
	return ""
}

func (f *frame) drawWeather() {
	report := f.data.Weather
	if report == nil {
		return
	}
	x, y := f.x(626), f.y(8)

	f.c.text(fmt.Sprintf("%d°", report.TempC), x, y+f.y(30), true, f.size(26), shadeBlack)
	f.c.text(truncate(report.Condition, 18), x, y+f.y(50), false, f.size(11), shadeBlack)
	if report.Umbrella {
		f.c.text("UMBRELLA", x, y+f.y(70), true, f.size(11), shadeBlack)
		w := f.c.textWidth("UMBRELLA", true, f.size(11))
		f.c.rect(x-f.x(4), y+f.y(56), w+f.x(8), f.y(20), 1, shadeBlack)
	}
}

func (f *frame) drawStatusBar() {
	x, y := f.x(0), f.y(96)
	w, h := f.x(800), f.y(28)
	f.c.fillRect(x, y, w, h, shadeBlack)

	baseline := y + h - (h-f.c.textHeight(true, f.size(14)))/2
	f.c.text(f.data.Journey.StatusMessage(), x+f.x(10), baseline, true, f.size(14), shadeWhite)

	total := fmt.Sprintf("%d MIN", f.data.Journey.TotalMinutes)
	tw := f.c.textWidth(total, true, f.size(14))
	f.c.text(total, x+w-tw-f.x(10), baseline, true, f.size(14), shadeWhite)

	if delay := f.data.Journey.CumulativeDelayMinutes; delay > 0 {
		pill := fmt.Sprintf("+%d min", delay)
		pw := f.c.textWidth(pill, false, f.size(12))
		px := x + w - tw - pw - f.x(40)
		f.c.rect(px-f.x(6), y+f.y(4), pw+f.x(12), h-f.y(8), 1, shadeWhite)
		f.c.text(pill, px, baseline, false, f.size(12), shadeWhite)
	}
}

func (f *frame) drawFooter() {
	x, y := f.x(0), f.y(448)
	w, h := f.x(800), f.y(32)
	f.c.fillRect(x, y, w, h, shadeBlack)

	baseline := y + h - (h-f.c.textHeight(true, f.size(14)))/2
	f.c.text(truncate(f.data.Destination, 44), x+f.x(10), baseline, true, f.size(14), shadeWhite)

	arrive := "Arrive " + commute.Clock12(f.data.Journey.Arrival)
	tw := f.c.textWidth(arrive, true, f.size(14))
	f.c.text(arrive, x+w-tw-f.x(10), baseline, true, f.size(14), shadeWhite)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

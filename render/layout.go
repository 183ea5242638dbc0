package render

import (
	commute "github.com/m1ckyb/CommuteCompute-sub001"
)

// Zone is a named rectangle of the frame that devices can refresh
// independently.
type Zone struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
	W  int    `json:"w"`
	H  int    `json:"h"`
}

// Canonical reference frame. Other profiles re-flow proportionally.
const (
	canonicalWidth  = 800
	canonicalHeight = 480
)

// Zone names.
const (
	ZoneLocation  = "header.location"
	ZoneTime      = "header.time"
	ZoneDayDate   = "header.dayDate"
	ZoneBadges    = "header.statusBadges"
	ZoneCoffeeBox = "header.coffeeBox"
	ZoneWeather   = "header.weather"
	ZoneStatus    = "status"
	ZoneLegs      = "legs"
	ZoneFooter    = "footer"
)

// canonicalZones is the 800x480 layout. The header left block splits
// into clock, day/date and badges so each refreshes on its own.
var canonicalZones = []Zone{
	{ID: ZoneLocation, X: 0, Y: 0, W: 380, H: 20},
	{ID: ZoneTime, X: 0, Y: 20, W: 140, H: 74},
	{ID: ZoneDayDate, X: 140, Y: 20, W: 240, H: 20},
	{ID: ZoneBadges, X: 140, Y: 40, W: 240, H: 54},
	{ID: ZoneCoffeeBox, X: 380, Y: 4, W: 240, H: 86},
	{ID: ZoneWeather, X: 620, Y: 4, W: 180, H: 86},
	{ID: ZoneStatus, X: 0, Y: 96, W: 800, H: 28},
	{ID: ZoneLegs, X: 0, Y: 132, W: 800, H: 308},
	{ID: ZoneFooter, X: 0, Y: 448, W: 800, H: 32},
}

// ListZones returns the zones present for a journey, scaled to the
// profile. The coffee box only exists when a coffee leg does.
func ListZones(profile DeviceProfile, journey commute.Journey) []Zone {
	zones := make([]Zone, 0, len(canonicalZones))
	for _, z := range canonicalZones {
		if z.ID == ZoneCoffeeBox && journey.CoffeeLeg() == nil {
			continue
		}
		zones = append(zones, scaleZone(z, profile))
	}
	return zones
}

func zoneByID(profile DeviceProfile, id string) (Zone, bool) {
	for _, z := range canonicalZones {
		if z.ID == id {
			return scaleZone(z, profile), true
		}
	}
	return Zone{}, false
}

// scaleZone re-flows a canonical rect onto the profile's frame.
// Edges scale independently so adjacent zones stay adjacent.
func scaleZone(z Zone, profile DeviceProfile) Zone {
	x0 := z.X * profile.Width / canonicalWidth
	x1 := (z.X + z.W) * profile.Width / canonicalWidth
	y0 := z.Y * profile.Height / canonicalHeight
	y1 := (z.Y + z.H) * profile.Height / canonicalHeight
	return Zone{ID: z.ID, X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

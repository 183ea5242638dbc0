package commute

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// APIMode selects between cached (shared feed cache) and live
// (always-refresh) transit data.
type APIMode string

const (
	APIModeCached APIMode = "cached"
	APIModeLive   APIMode = "live"
)

const DefaultCafePrepMinutes = 3

// JourneyConfig is the user's configuration, carried end to end in
// the config token. Every knob is a named field; Extensions only
// exists so that newer wizards can ship fields older servers ignore.
type JourneyConfig struct {
	Home          Location  `json:"home"`
	Work          Location  `json:"work"`
	Cafe          *Location `json:"cafe,omitempty"`
	ArrivalTime   string    `json:"arrivalTime"` // HH:MM, user's state timezone
	CoffeeEnabled bool      `json:"coffeeEnabled"`
	APIMode       APIMode   `json:"apiMode"`
	State         string    `json:"state"`
	TransitAPIKey string    `json:"transitApiKey,omitempty"`
	PlacesAPIKey  string    `json:"placesApiKey,omitempty"`

	CafePrepMinutes int `json:"cafePrepMinutes,omitempty"`

	Extensions map[string]string `json:"extensions,omitempty"`
}

var arrivalTimeRe = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// Validate checks the fields a plan request depends on.
func (c JourneyConfig) Validate() error {
	if !arrivalTimeRe.MatchString(c.ArrivalTime) {
		return fmt.Errorf("arrival time %q not on form HH:MM", c.ArrivalTime)
	}
	if _, ok := stateConfigs[c.EffectiveState()]; !ok {
		return fmt.Errorf("unknown state %q", c.State)
	}
	if c.TransitAPIKey != "" {
		// Authority keys are UUIDs; reject garbage before it is
		// sent upstream in a header.
		if _, err := uuid.Parse(c.TransitAPIKey); err != nil {
			return fmt.Errorf("transit api key is not a UUID")
		}
	}
	return nil
}

// EffectiveState resolves the state, falling back to the home
// location's state, then to postcode inference.
func (c JourneyConfig) EffectiveState() string {
	if c.State != "" {
		return c.State
	}
	if c.Home.State != "" {
		return c.Home.State
	}
	return StateFromPostcode(postcodeFrom(c.Home.FormattedAddress))
}

// PrepMinutes returns the cafe preparation time, defaulted.
func (c JourneyConfig) PrepMinutes() int {
	if c.CafePrepMinutes > 0 {
		return c.CafePrepMinutes
	}
	return DefaultCafePrepMinutes
}

// TargetArrival resolves ArrivalTime against the given instant in the
// user's state timezone. The target is today, or tomorrow when the
// time of day has already passed.
func (c JourneyConfig) TargetArrival(now time.Time) time.Time {
	loc := StateTimezone(c.EffectiveState())
	local := now.In(loc)

	h, m := 9, 0
	if parts := arrivalTimeRe.FindStringSubmatch(c.ArrivalTime); parts != nil {
		h, _ = strconv.Atoi(parts[1])
		m, _ = strconv.Atoi(parts[2])
	}

	target := time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc)
	if target.Before(local) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

type stateConfig struct {
	Timezone string
	// Inclusive postcode ranges for state inference.
	PostcodeRanges [][2]int
}

var stateConfigs = map[string]stateConfig{
	"NSW": {"Australia/Sydney", [][2]int{{1000, 2599}, {2619, 2899}, {2921, 2999}}},
	"ACT": {"Australia/Sydney", [][2]int{{2600, 2618}, {2900, 2920}}},
	"VIC": {"Australia/Melbourne", [][2]int{{3000, 3999}, {8000, 8999}}},
	"QLD": {"Australia/Brisbane", [][2]int{{4000, 4999}, {9000, 9999}}},
	"SA":  {"Australia/Adelaide", [][2]int{{5000, 5999}}},
	"WA":  {"Australia/Perth", [][2]int{{6000, 6999}}},
	"TAS": {"Australia/Hobart", [][2]int{{7000, 7999}}},
	"NT":  {"Australia/Darwin", [][2]int{{800, 999}}},
}

// StateTimezone returns the timezone for an Australian state,
// defaulting to Melbourne for anything unrecognized.
func StateTimezone(state string) *time.Location {
	name := "Australia/Melbourne"
	if cfg, ok := stateConfigs[state]; ok {
		name = cfg.Timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StateFromPostcode infers the state from a postcode. ACT ranges
// override NSW.
func StateFromPostcode(postcode int) string {
	if postcode == 0 {
		return ""
	}
	// ACT is carved out of NSW's range, so check it first.
	for _, r := range stateConfigs["ACT"].PostcodeRanges {
		if postcode >= r[0] && postcode <= r[1] {
			return "ACT"
		}
	}
	for state, cfg := range stateConfigs {
		if state == "ACT" {
			continue
		}
		for _, r := range cfg.PostcodeRanges {
			if postcode >= r[0] && postcode <= r[1] {
				return state
			}
		}
	}
	return ""
}

// StateFromAddress infers the state from the postcode embedded in a
// formatted address, if any.
func StateFromAddress(address string) string {
	return StateFromPostcode(postcodeFrom(address))
}

var postcodeRe = regexp.MustCompile(`\b(\d{4})\b`)

func postcodeFrom(address string) int {
	m := postcodeRe.FindStringSubmatch(address)
	if m == nil {
		return 0
	}
	pc, _ := strconv.Atoi(m[1])
	return pc
}

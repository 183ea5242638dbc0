package commute

import (
	"time"
)

// LegKind tags the variant held by a Leg.
type LegKind int

const (
	LegWalk LegKind = iota
	LegTransit
	LegCoffee
)

// Leg is one unit of a journey. Exactly one of Walk, Transit or
// Coffee is set, matching Kind. Renderers switch on Kind rather than
// relying on method dispatch.
type Leg struct {
	Kind    LegKind
	Minutes int

	Walk    *WalkLeg
	Transit *TransitLeg
	Coffee  *CoffeeLeg
}

type WalkLeg struct {
	From  string
	To    string
	First bool
	Last  bool
}

type TransitLeg struct {
	Mode        ModeType
	RouteID     string
	LineName    string
	Origin      Stop
	Destination Stop

	DepartureMinutes   int
	ScheduledDeparture time.Time // UTC
	RideMinutes        int
	DelayMinutes       int

	Delayed   bool
	Suspended bool
	Diverted  bool
	Express   bool

	// Minutes until the next one or two alternate departures,
	// relative to the planning instant.
	NextDepartures []int

	ReplacementMode ModeType
}

// CoffeePosition says where along the journey the coffee stop sits.
type CoffeePosition string

const (
	CoffeeAtOrigin      CoffeePosition = "origin"
	CoffeeAtInterchange CoffeePosition = "interchange"
	CoffeeAtDestination CoffeePosition = "destination"
)

// CoffeeReason explains the coffee decision, including why a stop was
// skipped.
type CoffeeReason string

const (
	ReasonTimeForCoffee       CoffeeReason = "timeForCoffee"
	ReasonExtraTimeDisruption CoffeeReason = "extraTimeDisruption"
	ReasonFridayTreat         CoffeeReason = "fridayTreat"
	ReasonCafeClosed          CoffeeReason = "cafeClosed"
	ReasonSkipRunningLate     CoffeeReason = "skipRunningLate"
	ReasonNoSlack             CoffeeReason = "noSlack"
)

type CoffeeLeg struct {
	CafeName        string
	CanGet          bool
	Position        CoffeePosition
	Reason          CoffeeReason
	InterchangeStop string
}

// StatusKind summarizes the journey for the status bar.
type StatusKind string

const (
	StatusLeaveNow   StatusKind = "leaveNow"
	StatusDelay      StatusKind = "delay"
	StatusDelays     StatusKind = "delays"
	StatusDisruption StatusKind = "disruption"
	StatusDiversion  StatusKind = "diversion"
)

// DataSource records where departure data came from.
type DataSource string

const (
	SourceLive     DataSource = "live"
	SourceFallback DataSource = "fallbackTimetable"
)

// Journey is the planner's final output. Invariants: the sum of leg
// minutes plus cumulative delay equals TotalMinutes, and
// Arrival.Sub(LeaveBy) equals TotalMinutes.
type Journey struct {
	Legs                   []Leg
	TotalMinutes           int
	CumulativeDelayMinutes int
	Arrival                time.Time // local to the user's state
	LeaveBy                time.Time
	Status                 StatusKind
	DisruptionText         string
	DataSource             DataSource

	// Coffee holds the decision trace when no coffee leg was
	// inserted (skipped stops still get explained on the
	// dashboard). Nil when a leg exists or coffee is disabled.
	Coffee *CoffeeDecision
}

// WalkMinutes sums the walking legs.
func (j Journey) WalkMinutes() int {
	total := 0
	for _, leg := range j.Legs {
		if leg.Kind == LegWalk {
			total += leg.Minutes
		}
	}
	return total
}

// TransitLegs returns the transit legs in order.
func (j Journey) TransitLegs() []*TransitLeg {
	legs := []*TransitLeg{}
	for _, leg := range j.Legs {
		if leg.Kind == LegTransit {
			legs = append(legs, leg.Transit)
		}
	}
	return legs
}

// CoffeeLeg returns the coffee leg, if one was inserted.
func (j Journey) CoffeeLeg() *CoffeeLeg {
	for _, leg := range j.Legs {
		if leg.Kind == LegCoffee {
			return leg.Coffee
		}
	}
	return nil
}

// Live reports whether every transit leg was populated from realtime
// data.
func (j Journey) Live() bool {
	return j.DataSource == SourceLive
}

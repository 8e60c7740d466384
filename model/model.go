// Package model holds the value types shared across the journey
// planner: stops, routes, timetable entries and the query/result
// shapes returned by a search. Nothing here references another type
// by pointer — relations are expressed by code/id only, so the graph
// built from these values can be immutable plain data.
package model

import (
	"fmt"
	"math"
	"time"
)

type Mode string

const (
	ModeBus  Mode = "bus"
	ModeRail Mode = "rail"
	ModeTram Mode = "tram"
	ModeWalk Mode = "walk"
)

// ClockTime is a day-local time of day, (hour, minute, second) with
// hour in [0, 24). Arithmetic wraps at 1440 minutes/day; it carries no
// date, matching the day-local semantics spec.md §9.1 requires
// (midnight wraparound is not advanced to the next day).
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

// Minutes returns the time of day as minutes since 00:00:00,
// truncating seconds.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// GE reports whether c is at or after other, within the same day.
func (c ClockTime) GE(other ClockTime) bool {
	if c.Hour != other.Hour {
		return c.Hour > other.Hour
	}
	if c.Minute != other.Minute {
		return c.Minute > other.Minute
	}
	return c.Second >= other.Second
}

// AddMinutes returns c advanced by mins minutes, wrapping at midnight.
func (c ClockTime) AddMinutes(mins float64) ClockTime {
	total := float64(c.Hour*3600+c.Minute*60+c.Second) + mins*60
	total = wrapSeconds(total)
	h := int(total) / 3600
	m := (int(total) % 3600) / 60
	s := int(total) % 60
	return ClockTime{Hour: h, Minute: m, Second: s}
}

func wrapSeconds(s float64) float64 {
	const day = 86400.0
	s = math.Mod(s, day)
	if s < 0 {
		s += day
	}
	return s
}

// MinutesBetween returns the minutes from 'from' to 'to', wrapped into
// [0, 1440), per spec.md §4.3's wait-time helper.
func MinutesBetween(from, to ClockTime) float64 {
	fromSecs := from.Hour*3600 + from.Minute*60 + from.Second
	toSecs := to.Hour*3600 + to.Minute*60 + to.Second
	diff := float64(toSecs-fromSecs) / 60.0
	if diff < 0 {
		diff += 1440
	}
	return diff
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Stop is a public-transport stop, identified by an opaque ATCO code.
// Stops are immutable once loaded and compare by Code alone.
type Stop struct {
	Code         string
	Name         string
	Mode         Mode
	Lat          float64
	Lon          float64
	LocalityCode string
	HubScore     float64
}

// Route is an operator service, looked up only for display and
// disruption masking — never dereferenced by the router during search.
type Route struct {
	ID        int
	Operator  string
	Name      string
	Mode      Mode
}

// TimetableEntry is one scheduled stop-time within a trip. Arrival is
// absent on the first stop of a trip; departure is absent on the
// last. ValidFrom/ValidTo/DaysOfWeek are carried through but not
// filtered on: neither BuildGraph nor the ingest package drops
// entries by date.
type TimetableEntry struct {
	RouteID      int
	StopCode     string
	StopSequence int
	Arrival      *ClockTime
	Departure    *ClockTime
	TripID       string
	DaysOfWeek   string
	ValidFrom    string
	ValidTo      string
}

// WalkingConnection is a raw input row: a time-invariant pedestrian
// link between two stops. The graph builder turns each one into two
// WalkingEdges (§4.2 step 4).
type WalkingConnection struct {
	FromStop      string
	ToStop        string
	WalkMinutes   float64
	DistanceM     float64
}

// Query is a single journey-planning request.
type Query struct {
	Origin      string
	Destination string
	DepartTime  ClockTime
	MaxResults  int
}

// JourneyLeg is one leg of a plan: either a ride (mode != walk, with a
// route) or a walking transfer (mode == walk, RouteID nil).
type JourneyLeg struct {
	FromStop    string
	FromName    string
	ToStop      string
	ToName      string
	Departure   ClockTime
	Arrival     ClockTime
	Mode        Mode
	RouteID     *int
	RouteName   string
	Operator    string
}

// Duration returns the leg's wall-clock duration in minutes, wrapped
// at midnight.
func (l JourneyLeg) Duration() float64 {
	return MinutesBetween(l.Departure, l.Arrival)
}

// JourneyPlan is an ordered, non-empty sequence of legs plus the
// summary fields spec.md §3 defines.
type JourneyPlan struct {
	Legs              []JourneyLeg
	TotalCost         float64
	TotalDurationMins float64
	NumTransfers      int
}

// Departure is the plan's first leg departure time, for display.
func (p JourneyPlan) Departure() ClockTime {
	return p.Legs[0].Departure
}

// Arrival is the plan's last leg arrival time, for display.
func (p JourneyPlan) Arrival() ClockTime {
	return p.Legs[len(p.Legs)-1].Arrival
}

// Snapshot is the boundary-supplied input to BuildGraph: a full
// picture of the network at a point in time, assembled by the ingest
// and storage packages from whatever upstream feed format they read.
type Snapshot struct {
	Stops               []Stop
	Routes              []Route
	TimetableEntries    []TimetableEntry
	WalkingConnections  []WalkingConnection
	DisruptedRouteIDs   []int
}

// NowClockTime returns t's time of day, for CLI/manager callers
// that want "plan from right now" without hand-rolling the
// conversion.
func NowClockTime(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

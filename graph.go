// Package journeyplanner computes near-optimal multi-modal journeys
// across buses, trains, trams and walking transfers over a
// time-dependent transport network assembled from a Snapshot.
//
// The package is synchronous and holds no global state: a Graph is
// built once from a Snapshot and is safe for concurrent read-only use
// by any number of searches, per the concurrency model this core
// follows (only MarkDisrupted/ClearDisruption mutate it, and callers
// must serialise those against concurrent searches themselves).
package journeyplanner

import (
	"sort"

	"github.com/lancasterlink/journeyplanner/model"
)

// TransitEdge is a derived, ordered pair of consecutive timetable
// entries on the same trip.
type TransitEdge struct {
	FromStop  string
	ToStop    string
	RouteID   int
	Departure model.ClockTime
	Arrival   model.ClockTime
	Mode      model.Mode
}

// TravelMinutes is the scheduled in-vehicle time, wrapped at midnight
// to accommodate overnight trips (depart 23:50, arrive 00:10).
func (e TransitEdge) TravelMinutes() float64 {
	return model.MinutesBetween(e.Departure, e.Arrival)
}

// WalkingEdge is a time-invariant pedestrian link, always available.
type WalkingEdge struct {
	FromStop    string
	ToStop      string
	WalkMinutes float64
	DistanceM   float64
}

// Graph is the finalised, query-ready time-dependent graph the router
// searches. It is read-only for the lifetime of any search except for
// the two disruption mutators.
type Graph struct {
	stops         map[string]model.Stop
	routes        map[int]model.Route
	transitEdges  map[string][]TransitEdge // from_stop -> edges sorted by departure
	walkingEdges  map[string][]WalkingEdge // from_stop -> edges
	disrupted     map[int]bool
	finalised     bool
}

// BuildGraph transforms a Snapshot into a finalised, immutable Graph
// per spec.md §4.2's algorithm: partition timetable entries by
// (route_id, trip_id), sort by stop_sequence, emit a TransitEdge for
// every consecutive pair with both clocks present, add bidirectional
// WalkingEdges, then sort every stop's transit-edge list by departure.
func BuildGraph(snapshot model.Snapshot) *Graph {
	g := &Graph{
		stops:        make(map[string]model.Stop, len(snapshot.Stops)),
		routes:       make(map[int]model.Route, len(snapshot.Routes)),
		transitEdges: make(map[string][]TransitEdge),
		walkingEdges: make(map[string][]WalkingEdge),
		disrupted:    make(map[int]bool),
	}

	for _, s := range snapshot.Stops {
		g.stops[s.Code] = s
	}
	for _, r := range snapshot.Routes {
		g.routes[r.ID] = r
	}

	type tripKey struct {
		routeID int
		tripID  string
	}
	byTrip := make(map[tripKey][]model.TimetableEntry)
	for _, e := range snapshot.TimetableEntries {
		k := tripKey{e.RouteID, e.TripID}
		byTrip[k] = append(byTrip[k], e)
	}

	for key, entries := range byTrip {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].StopSequence < entries[j].StopSequence
		})

		mode := model.ModeBus
		if route, ok := g.routes[key.routeID]; ok {
			mode = route.Mode
		}

		for i := 0; i < len(entries)-1; i++ {
			curr, next := entries[i], entries[i+1]
			if curr.Departure == nil || next.Arrival == nil {
				continue
			}
			edge := TransitEdge{
				FromStop:  curr.StopCode,
				ToStop:    next.StopCode,
				RouteID:   key.routeID,
				Departure: *curr.Departure,
				Arrival:   *next.Arrival,
				Mode:      mode,
			}
			g.transitEdges[edge.FromStop] = append(g.transitEdges[edge.FromStop], edge)
		}
	}

	for _, wc := range snapshot.WalkingConnections {
		g.walkingEdges[wc.FromStop] = append(g.walkingEdges[wc.FromStop], WalkingEdge{
			FromStop: wc.FromStop, ToStop: wc.ToStop, WalkMinutes: wc.WalkMinutes, DistanceM: wc.DistanceM,
		})
		g.walkingEdges[wc.ToStop] = append(g.walkingEdges[wc.ToStop], WalkingEdge{
			FromStop: wc.ToStop, ToStop: wc.FromStop, WalkMinutes: wc.WalkMinutes, DistanceM: wc.DistanceM,
		})
	}

	for _, rid := range snapshot.DisruptedRouteIDs {
		g.disrupted[rid] = true
	}

	g.finalise()

	return g
}

// finalise sorts each per-stop transit-edge list by departure time
// ascending, as spec.md §4.2 step 6 requires. Must run before any
// query.
func (g *Graph) finalise() {
	for _, edges := range g.transitEdges {
		sort.Slice(edges, func(i, j int) bool {
			a, b := edges[i].Departure, edges[j].Departure
			if a.Hour != b.Hour {
				return a.Hour < b.Hour
			}
			return a.Minute < b.Minute
		})
	}
	g.finalised = true
}

// NumStops returns the number of stops in the graph.
func (g *Graph) NumStops() int {
	return len(g.stops)
}

// NumRoutes returns the number of routes in the graph.
func (g *Graph) NumRoutes() int {
	return len(g.routes)
}

// GetStop returns the stop with the given code, or false if unknown.
func (g *Graph) GetStop(code string) (model.Stop, bool) {
	s, ok := g.stops[code]
	return s, ok
}

// GetRoute returns the route with the given id, or false if unknown.
func (g *Graph) GetRoute(id int) (model.Route, bool) {
	r, ok := g.routes[id]
	return r, ok
}

// OutgoingTransitEdges returns transit edges from code departing at or
// after earliestDeparture within the same day, excluding any edge on a
// disrupted route. Per spec.md §9.1, midnight wraparound is NOT
// applied here — an overnight journey crossing midnight must be
// expressed as a later-day edge; this is a deliberate, preserved
// limitation, not an oversight.
func (g *Graph) OutgoingTransitEdges(code string, earliestDeparture model.ClockTime) []TransitEdge {
	all := g.transitEdges[code]
	results := make([]TransitEdge, 0, len(all))
	for _, edge := range all {
		if g.disrupted[edge.RouteID] {
			continue
		}
		if edge.Departure.GE(earliestDeparture) {
			results = append(results, edge)
		}
	}
	return results
}

// GetWalkingEdges returns all walking edges from code.
func (g *Graph) GetWalkingEdges(code string) []WalkingEdge {
	return g.walkingEdges[code]
}

// MarkDisrupted flags a route as disrupted; its edges are excluded
// from OutgoingTransitEdges from then on. The only mutator besides
// ClearDisruption permitted after finalise — callers must serialise
// it against concurrent searches themselves (§5).
func (g *Graph) MarkDisrupted(routeID int) {
	g.disrupted[routeID] = true
}

// ClearDisruption removes a disruption flag.
func (g *Graph) ClearDisruption(routeID int) {
	delete(g.disrupted, routeID)
}

// IsDisrupted reports whether routeID is currently flagged.
func (g *Graph) IsDisrupted(routeID int) bool {
	return g.disrupted[routeID]
}

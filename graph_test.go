package journeyplanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	journeyplanner "github.com/lancasterlink/journeyplanner"
	"github.com/lancasterlink/journeyplanner/model"
)

func clock(h, m int) model.ClockTime {
	return model.ClockTime{Hour: h, Minute: m}
}

func cp(c model.ClockTime) *model.ClockTime { return &c }

func sampleSnapshot() model.Snapshot {
	return model.Snapshot{
		Stops: []model.Stop{
			{Code: "A", Name: "Town Centre", Mode: model.ModeBus, Lat: 54.05, Lon: -2.80, HubScore: 0.9},
			{Code: "B", Name: "Station", Mode: model.ModeRail, Lat: 54.06, Lon: -2.79, HubScore: 0.8},
			{Code: "C", Name: "Hospital", Mode: model.ModeBus, Lat: 54.07, Lon: -2.78, HubScore: 0.1},
		},
		Routes: []model.Route{
			{ID: 1, Operator: "Stagecoach", Name: "1 Town Centre - Station", Mode: model.ModeBus},
			{ID: 2, Operator: "Stagecoach", Name: "2 Station - Hospital", Mode: model.ModeBus},
		},
		TimetableEntries: []model.TimetableEntry{
			{RouteID: 1, StopCode: "A", StopSequence: 1, Departure: cp(clock(8, 0)), TripID: "t1"},
			{RouteID: 1, StopCode: "B", StopSequence: 2, Arrival: cp(clock(8, 10)), TripID: "t1"},
			{RouteID: 2, StopCode: "B", StopSequence: 1, Departure: cp(clock(8, 20)), TripID: "t2"},
			{RouteID: 2, StopCode: "C", StopSequence: 2, Arrival: cp(clock(8, 30)), TripID: "t2"},
		},
		WalkingConnections: []model.WalkingConnection{
			{FromStop: "A", ToStop: "C", WalkMinutes: 25, DistanceM: 2000},
		},
	}
}

func TestBuildGraphEmitsTransitEdgesOrderedByDeparture(t *testing.T) {
	snap := sampleSnapshot()
	// An earlier trip from B, listed after the 08:20 one.
	snap.TimetableEntries = append(snap.TimetableEntries,
		model.TimetableEntry{RouteID: 2, StopCode: "B", StopSequence: 1, Departure: cp(clock(7, 50)), TripID: "t3"},
		model.TimetableEntry{RouteID: 2, StopCode: "C", StopSequence: 2, Arrival: cp(clock(8, 0)), TripID: "t3"},
	)
	g := journeyplanner.BuildGraph(snap)

	edges := g.OutgoingTransitEdges("B", clock(0, 0))
	require.Len(t, edges, 2)
	assert.Equal(t, clock(7, 50), edges[0].Departure)
	assert.Equal(t, clock(8, 20), edges[1].Departure)
	assert.Equal(t, "C", edges[0].ToStop)
	assert.Equal(t, 2, edges[0].RouteID)
}

func TestBuildGraphSkipsEntriesMissingAClock(t *testing.T) {
	snap := sampleSnapshot()
	// Only one end of the edge has a clock recorded -> no edge emitted.
	snap.TimetableEntries = append(snap.TimetableEntries, model.TimetableEntry{
		RouteID: 1, StopCode: "D", StopSequence: 3, TripID: "t1",
	})
	g := journeyplanner.BuildGraph(snap)

	edges := g.OutgoingTransitEdges("A", clock(0, 0))
	require.Len(t, edges, 1)
	assert.Equal(t, "B", edges[0].ToStop)
}

func TestBuildGraphWalkingConnectionsAreBidirectional(t *testing.T) {
	g := journeyplanner.BuildGraph(sampleSnapshot())

	fromA := g.GetWalkingEdges("A")
	require.Len(t, fromA, 1)
	assert.Equal(t, "C", fromA[0].ToStop)

	fromC := g.GetWalkingEdges("C")
	require.Len(t, fromC, 1)
	assert.Equal(t, "A", fromC[0].ToStop)
}

func TestOutgoingTransitEdgesFiltersByEarliestDeparture(t *testing.T) {
	g := journeyplanner.BuildGraph(sampleSnapshot())

	assert.Len(t, g.OutgoingTransitEdges("A", clock(7, 0)), 1)
	assert.Len(t, g.OutgoingTransitEdges("A", clock(8, 1)), 0)
}

func TestMarkDisruptedHidesRouteEdges(t *testing.T) {
	g := journeyplanner.BuildGraph(sampleSnapshot())

	require.Len(t, g.OutgoingTransitEdges("A", clock(0, 0)), 1)

	g.MarkDisrupted(1)
	assert.Len(t, g.OutgoingTransitEdges("A", clock(0, 0)), 0)

	g.ClearDisruption(1)
	assert.Len(t, g.OutgoingTransitEdges("A", clock(0, 0)), 1)
}

func TestBuildGraphAppliesDisruptedRouteIDsFromSnapshot(t *testing.T) {
	snap := sampleSnapshot()
	snap.DisruptedRouteIDs = []int{2}
	g := journeyplanner.BuildGraph(snap)

	assert.True(t, g.IsDisrupted(2))
	assert.Len(t, g.OutgoingTransitEdges("B", clock(0, 0)), 0)
}

func TestGetStopAndGetRoute(t *testing.T) {
	g := journeyplanner.BuildGraph(sampleSnapshot())

	stop, ok := g.GetStop("A")
	require.True(t, ok)
	assert.Equal(t, "Town Centre", stop.Name)

	_, ok = g.GetStop("does-not-exist")
	assert.False(t, ok)

	route, ok := g.GetRoute(1)
	require.True(t, ok)
	assert.Equal(t, "Stagecoach", route.Operator)
}

func TestNumStopsAndNumRoutes(t *testing.T) {
	g := journeyplanner.BuildGraph(sampleSnapshot())
	assert.Equal(t, 3, g.NumStops())
	assert.Equal(t, 2, g.NumRoutes())
}

package journeyplanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	journeyplanner "github.com/lancasterlink/journeyplanner"
	"github.com/lancasterlink/journeyplanner/model"
)

func TestPlanSingleLegJourney(t *testing.T) {
	g := journeyplanner.BuildGraph(sampleSnapshot())

	plans := journeyplanner.Plan(g, model.Query{
		Origin: "A", Destination: "B", DepartTime: clock(7, 0), MaxResults: 1,
	})

	require.Len(t, plans, 1)
	require.Len(t, plans[0].Legs, 1)
	assert.Equal(t, "A", plans[0].Legs[0].FromStop)
	assert.Equal(t, "B", plans[0].Legs[0].ToStop)
	assert.Equal(t, 0, plans[0].NumTransfers)
}

func TestPlanConnectingJourneyAcrossTwoRoutes(t *testing.T) {
	// No walking shortcut here, so the only way from A to C is via two
	// routes connecting through B.
	snap := model.Snapshot{
		Stops: []model.Stop{
			{Code: "A", Name: "A"}, {Code: "B", Name: "B"}, {Code: "C", Name: "C"},
		},
		Routes: []model.Route{{ID: 1}, {ID: 2}},
		TimetableEntries: []model.TimetableEntry{
			{RouteID: 1, StopCode: "A", StopSequence: 1, Departure: cp(clock(8, 0)), TripID: "t1"},
			{RouteID: 1, StopCode: "B", StopSequence: 2, Arrival: cp(clock(8, 10)), TripID: "t1"},
			{RouteID: 2, StopCode: "B", StopSequence: 1, Departure: cp(clock(8, 20)), TripID: "t2"},
			{RouteID: 2, StopCode: "C", StopSequence: 2, Arrival: cp(clock(8, 30)), TripID: "t2"},
		},
	}
	g := journeyplanner.BuildGraph(snap)

	plans := journeyplanner.Plan(g, model.Query{
		Origin: "A", Destination: "C", DepartTime: clock(7, 0), MaxResults: 1,
	})

	require.Len(t, plans, 1)
	plan := plans[0]
	assert.Equal(t, 1, plan.NumTransfers)
	require.Len(t, plan.Legs, 2)
	assert.Equal(t, "B", plan.Legs[0].ToStop)
	assert.Equal(t, "B", plan.Legs[1].FromStop)
}

func TestPlanMergesConsecutiveSameRouteEdgesIntoOneLeg(t *testing.T) {
	snap := model.Snapshot{
		Stops: []model.Stop{
			{Code: "A", Name: "A"}, {Code: "B", Name: "B"}, {Code: "C", Name: "C"},
		},
		Routes: []model.Route{{ID: 1, Name: "Route 1"}},
		TimetableEntries: []model.TimetableEntry{
			{RouteID: 1, StopCode: "A", StopSequence: 1, Departure: cp(clock(8, 0)), TripID: "t1"},
			{RouteID: 1, StopCode: "B", StopSequence: 2, Arrival: cp(clock(8, 10)), Departure: cp(clock(8, 11)), TripID: "t1"},
			{RouteID: 1, StopCode: "C", StopSequence: 3, Arrival: cp(clock(8, 20)), TripID: "t1"},
		},
	}
	g := journeyplanner.BuildGraph(snap)

	plans := journeyplanner.Plan(g, model.Query{
		Origin: "A", Destination: "C", DepartTime: clock(7, 0), MaxResults: 1,
	})

	require.Len(t, plans, 1)
	require.Len(t, plans[0].Legs, 1, "two consecutive edges on the same trip should merge into a single leg")
	assert.Equal(t, "A", plans[0].Legs[0].FromStop)
	assert.Equal(t, "C", plans[0].Legs[0].ToStop)
}

func TestPlanUsesWalkingEdgeWhenNoTransitExists(t *testing.T) {
	snap := model.Snapshot{
		Stops: []model.Stop{{Code: "A", Name: "A"}, {Code: "B", Name: "B"}},
		WalkingConnections: []model.WalkingConnection{
			{FromStop: "A", ToStop: "B", WalkMinutes: 10},
		},
	}
	g := journeyplanner.BuildGraph(snap)

	plans := journeyplanner.Plan(g, model.Query{
		Origin: "A", Destination: "B", DepartTime: clock(7, 0), MaxResults: 1,
	})

	require.Len(t, plans, 1)
	require.Len(t, plans[0].Legs, 1)
	assert.Nil(t, plans[0].Legs[0].RouteID)
	assert.Equal(t, model.ModeWalk, plans[0].Legs[0].Mode)
}

func TestPlanReturnsEmptyWhenUnreachable(t *testing.T) {
	snap := model.Snapshot{
		Stops: []model.Stop{{Code: "A", Name: "A"}, {Code: "B", Name: "B"}},
	}
	g := journeyplanner.BuildGraph(snap)

	plans := journeyplanner.Plan(g, model.Query{
		Origin: "A", Destination: "B", DepartTime: clock(7, 0), MaxResults: 1,
	})

	assert.Empty(t, plans)
}

func TestPlanKAlternativesExcludeSameFirstEdge(t *testing.T) {
	snap := model.Snapshot{
		Stops: []model.Stop{{Code: "A", Name: "A"}, {Code: "B", Name: "B"}},
		Routes: []model.Route{
			{ID: 1, Name: "Direct bus"},
			{ID: 2, Name: "Slower bus"},
		},
		TimetableEntries: []model.TimetableEntry{
			{RouteID: 1, StopCode: "A", StopSequence: 1, Departure: cp(clock(8, 0)), TripID: "t1"},
			{RouteID: 1, StopCode: "B", StopSequence: 2, Arrival: cp(clock(8, 10)), TripID: "t1"},
			{RouteID: 2, StopCode: "A", StopSequence: 1, Departure: cp(clock(8, 5)), TripID: "t2"},
			{RouteID: 2, StopCode: "B", StopSequence: 2, Arrival: cp(clock(8, 25)), TripID: "t2"},
		},
	}
	g := journeyplanner.BuildGraph(snap)

	plans := journeyplanner.Plan(g, model.Query{
		Origin: "A", Destination: "B", DepartTime: clock(7, 0), MaxResults: 2,
	})

	require.Len(t, plans, 2)
	firstRoute := *plans[0].Legs[0].RouteID
	secondRoute := *plans[1].Legs[0].RouteID
	assert.NotEqual(t, firstRoute, secondRoute, "the second alternative must use a different first edge")
	assert.Equal(t, 1, firstRoute, "the cheaper route (less wait+travel) should be ranked first")
}

func TestPlanStopsAtMaxResultsEvenIfMoreExist(t *testing.T) {
	snap := model.Snapshot{
		Stops: []model.Stop{{Code: "A", Name: "A"}, {Code: "B", Name: "B"}},
		Routes: []model.Route{{ID: 1}},
		TimetableEntries: []model.TimetableEntry{
			{RouteID: 1, StopCode: "A", StopSequence: 1, Departure: cp(clock(8, 0)), TripID: "t1"},
			{RouteID: 1, StopCode: "B", StopSequence: 2, Arrival: cp(clock(8, 10)), TripID: "t1"},
		},
		WalkingConnections: []model.WalkingConnection{
			{FromStop: "A", ToStop: "B", WalkMinutes: 30},
		},
	}
	g := journeyplanner.BuildGraph(snap)

	plans := journeyplanner.Plan(g, model.Query{
		Origin: "A", Destination: "B", DepartTime: clock(7, 0), MaxResults: 1,
	})

	assert.Len(t, plans, 1)
}

func TestPlanFragileConnectionIsSkipped(t *testing.T) {
	// A 1-minute transfer at a non-hub stop is below MinTransferMins
	// and should be rejected in favour of no connecting plan at all,
	// since there is no alternative route.
	snap := model.Snapshot{
		Stops: []model.Stop{
			{Code: "A", Name: "A"}, {Code: "B", Name: "B", HubScore: 0.1}, {Code: "C", Name: "C"},
		},
		Routes: []model.Route{{ID: 1}, {ID: 2}},
		TimetableEntries: []model.TimetableEntry{
			{RouteID: 1, StopCode: "A", StopSequence: 1, Departure: cp(clock(8, 0)), TripID: "t1"},
			{RouteID: 1, StopCode: "B", StopSequence: 2, Arrival: cp(clock(8, 10)), TripID: "t1"},
			{RouteID: 2, StopCode: "B", StopSequence: 1, Departure: cp(clock(8, 11)), TripID: "t2"},
			{RouteID: 2, StopCode: "C", StopSequence: 2, Arrival: cp(clock(8, 20)), TripID: "t2"},
		},
	}
	g := journeyplanner.BuildGraph(snap)

	plans := journeyplanner.Plan(g, model.Query{
		Origin: "A", Destination: "C", DepartTime: clock(7, 0), MaxResults: 1,
	})

	assert.Empty(t, plans, "a 1-minute transfer should be treated as fragile and rejected")
}

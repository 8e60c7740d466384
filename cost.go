package journeyplanner

import "github.com/lancasterlink/journeyplanner/model"

// All values below are in equivalent minutes: a single scale on which
// travel time, penalty-weighted wait time, and the reliability
// heuristic are summed (spec.md §4.3).
const (
	MinTransferMins     = 5.0
	WaitPenaltyFactor    = 1.5
	HubMaxBonusMins      = 5.0
	DelayMaxPenaltyMins  = 10.0
)

// HubBonus is a non-positive adjustment for well-served hubs: the
// busier the stop relative to the network's busiest, the bigger the
// discount.
func HubBonus(stop model.Stop, hubScoreMax float64) float64 {
	if hubScoreMax <= 0 {
		return 0.0
	}
	normalised := stop.HubScore / hubScoreMax
	if normalised > 1.0 {
		normalised = 1.0
	}
	return -HubMaxBonusMins * normalised
}

// DelayPenalty is a non-negative adjustment for delay-prone stops and
// routes, from historical delay ratios each clamped to [0, 1].
func DelayPenalty(stopDelayRatio, routeDelayRatio float64) float64 {
	combined := (clamp01(stopDelayRatio) + clamp01(routeDelayRatio)) / 2.0
	combined = clamp01(combined)
	return DelayMaxPenaltyMins * combined
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ReliabilityHeuristic combines HubBonus and DelayPenalty at a stop.
// The result is signed: a busy, reliable hub can make the total
// negative.
func ReliabilityHeuristic(stop model.Stop, hubScoreMax, stopDelayRatio, routeDelayRatio float64) float64 {
	return HubBonus(stop, hubScoreMax) + DelayPenalty(stopDelayRatio, routeDelayRatio)
}

// TransitEdgeCost computes the cost of taking edge given the clock on
// arrival at its origin. The reliability heuristic is evaluated at the
// edge's destination, because that's where the next decision is made
// (spec.md §4.3). Returns (cost, true), or (0, false) if infeasible
// (negative wait — should not occur given the graph's own filter, but
// checked defensively as the spec requires).
func TransitEdgeCost(
	g *Graph,
	edge TransitEdge,
	currentTime model.ClockTime,
	hubScoreMax, stopDelayRatio, routeDelayRatio float64,
) (float64, bool) {
	wait := model.MinutesBetween(currentTime, edge.Departure)
	if wait < 0 {
		return 0, false
	}

	travel := edge.TravelMinutes()

	rel := 0.0
	if dest, ok := g.GetStop(edge.ToStop); ok {
		rel = ReliabilityHeuristic(dest, hubScoreMax, stopDelayRatio, routeDelayRatio)
	}

	total := wait*WaitPenaltyFactor + travel + rel
	if total < 0 {
		total = 0
	}
	return total, true
}

// WalkingEdgeCost is simply the walk duration — no heuristic applies
// to walking.
func WalkingEdgeCost(edge WalkingEdge) float64 {
	return edge.WalkMinutes
}

// IsFragileConnection reports whether a wait of w minutes at
// transferStop is too short to rely on. The threshold is
// MinTransferMins, relaxed by 1 minute (not below 2.0) at hubs
// (hub_score > 0.7).
func IsFragileConnection(waitMins float64, transferStop model.Stop) bool {
	threshold := MinTransferMins
	if transferStop.HubScore > 0.7 {
		threshold -= 1.0
		if threshold < 2.0 {
			threshold = 2.0
		}
	}
	return waitMins < threshold
}

package journeyplanner

import (
	"container/heap"

	"github.com/lancasterlink/journeyplanner/model"
)

// MaxExpansions is the hard ceiling on priority-queue pops per single
// search, a safety valve rather than a correctness condition
// (spec.md §4.4.1).
const MaxExpansions = 50_000

// searchNode is one priority-queue entry: (cost, stop, arrival clock,
// predecessor). It also doubles as the predecessor-table value so
// reconstruction can recover the clock at which a stop was reached.
type searchNode struct {
	cost        float64
	stop        string
	arrival     model.ClockTime
	prevStop    string
	hasPrev     bool
	incoming    any // TransitEdge, WalkingEdge, or nil for the origin seed
	index       int // heap bookkeeping
}

// nodeHeap is a min-heap ordered by cost alone. Ties are not broken
// by insertion order: container/heap is not stable, so entries of
// equal cost pop in no defined order.
type nodeHeap []*searchNode

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *nodeHeap) Push(x any) {
	n := x.(*searchNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// excludedEdgeKey identifies a first-leg edge to skip during a
// k-alternatives re-run: (from, to, route id or nil for a walk).
type excludedEdgeKey struct {
	from, to string
	routeID  int
	isWalk   bool
}

// Plan runs the k-alternatives search: up to query.MaxResults
// journeys, best-first by total cost, diversified by excluding each
// found journey's first edge from subsequent searches (spec.md
// §4.4.2). Returns an empty slice if no journey exists.
func Plan(g *Graph, query model.Query) []model.JourneyPlan {
	var results []model.JourneyPlan
	excluded := map[excludedEdgeKey]bool{}

	for i := 0; i < query.MaxResults; i++ {
		plan, firstKey, ok := dijkstraSearch(g, query.Origin, query.Destination, query.DepartTime, excluded)
		if !ok {
			break
		}
		results = append(results, plan)
		excluded[firstKey] = true
	}

	return results
}

// dijkstraSearch runs a single modified-Dijkstra search per spec.md
// §4.4.1 and returns the reconstructed plan plus the key of its first
// edge (for the caller to add to the exclusion set).
func dijkstraSearch(
	g *Graph,
	origin, destination string,
	departTime model.ClockTime,
	excludedFirstEdges map[excludedEdgeKey]bool,
) (model.JourneyPlan, excludedEdgeKey, bool) {
	pq := &nodeHeap{}
	heap.Init(pq)

	bestCost := map[string]float64{origin: 0}
	predecessors := map[string]*searchNode{}

	start := &searchNode{cost: 0, stop: origin, arrival: departTime}
	predecessors[origin] = start
	heap.Push(pq, start)

	expansions := 0

	for pq.Len() > 0 && expansions < MaxExpansions {
		current := heap.Pop(pq).(*searchNode)
		expansions++

		if current.stop == destination {
			plan := reconstruct(g, current, predecessors)
			return plan, firstEdgeKey(plan), true
		}

		if best, ok := bestCost[current.stop]; ok && current.cost > best {
			continue // stale entry
		}

		currentStop, ok := g.GetStop(current.stop)
		if !ok {
			continue
		}

		for _, edge := range g.OutgoingTransitEdges(current.stop, current.arrival) {
			if current.stop == origin {
				key := excludedEdgeKey{from: edge.FromStop, to: edge.ToStop, routeID: edge.RouteID}
				if excludedFirstEdges[key] {
					continue
				}
			}

			cost, feasible := TransitEdgeCost(g, edge, current.arrival, 1.0, 0.0, 0.0)
			if !feasible {
				continue
			}

			if current.incoming != nil {
				isTransfer := true
				if prevEdge, ok := current.incoming.(TransitEdge); ok && prevEdge.RouteID == edge.RouteID {
					isTransfer = false
				}
				if isTransfer {
					wait := model.MinutesBetween(current.arrival, edge.Departure)
					if IsFragileConnection(wait, currentStop) {
						continue
					}
				}
			}

			newCost := current.cost + cost
			if best, ok := bestCost[edge.ToStop]; !ok || newCost < best {
				bestCost[edge.ToStop] = newCost
				node := &searchNode{
					cost: newCost, stop: edge.ToStop, arrival: edge.Arrival,
					prevStop: current.stop, hasPrev: true, incoming: edge,
				}
				heap.Push(pq, node)
				predecessors[edge.ToStop] = node
			}
		}

		for _, wedge := range g.GetWalkingEdges(current.stop) {
			if current.stop == origin {
				key := excludedEdgeKey{from: wedge.FromStop, to: wedge.ToStop, isWalk: true}
				if excludedFirstEdges[key] {
					continue
				}
			}

			cost := WalkingEdgeCost(wedge)
			arrival := current.arrival.AddMinutes(wedge.WalkMinutes)

			newCost := current.cost + cost
			if best, ok := bestCost[wedge.ToStop]; !ok || newCost < best {
				bestCost[wedge.ToStop] = newCost
				node := &searchNode{
					cost: newCost, stop: wedge.ToStop, arrival: arrival,
					prevStop: current.stop, hasPrev: true, incoming: wedge,
				}
				heap.Push(pq, node)
				predecessors[wedge.ToStop] = node
			}
		}
	}

	return model.JourneyPlan{}, excludedEdgeKey{}, false
}

func firstEdgeKey(plan model.JourneyPlan) excludedEdgeKey {
	first := plan.Legs[0]
	if first.RouteID == nil {
		return excludedEdgeKey{from: first.FromStop, to: first.ToStop, isWalk: true}
	}
	return excludedEdgeKey{from: first.FromStop, to: first.ToStop, routeID: *first.RouteID}
}

// reconstruct walks predecessor pointers backward from the
// destination pop, then folds the resulting edge sequence into merged
// legs per spec.md §4.4.3.
func reconstruct(g *Graph, dest *searchNode, predecessors map[string]*searchNode) model.JourneyPlan {
	type step struct {
		edge        any
		fromArrival model.ClockTime
	}

	var path []step
	node := dest
	for node != nil && node.incoming != nil {
		fromStop := edgeFromStop(node.incoming)
		fromArrival := node.arrival
		if fromNode, ok := predecessors[fromStop]; ok {
			fromArrival = fromNode.arrival
		}
		path = append(path, step{edge: node.incoming, fromArrival: fromArrival})

		if !node.hasPrev {
			break
		}
		node = predecessors[node.prevStop]
	}

	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	var legs []model.JourneyLeg
	for _, st := range path {
		switch edge := st.edge.(type) {
		case TransitEdge:
			if n := len(legs); n > 0 && legs[n-1].RouteID != nil &&
				*legs[n-1].RouteID == edge.RouteID && legs[n-1].ToStop == edge.FromStop {
				to, _ := g.GetStop(edge.ToStop)
				legs[n-1].ToStop = edge.ToStop
				legs[n-1].ToName = to.Name
				legs[n-1].Arrival = edge.Arrival
				continue
			}
			from, _ := g.GetStop(edge.FromStop)
			to, _ := g.GetStop(edge.ToStop)
			route, hasRoute := g.GetRoute(edge.RouteID)
			routeID := edge.RouteID
			leg := model.JourneyLeg{
				FromStop:  edge.FromStop,
				FromName:  from.Name,
				ToStop:    edge.ToStop,
				ToName:    to.Name,
				Departure: edge.Departure,
				Arrival:   edge.Arrival,
				Mode:      edge.Mode,
				RouteID:   &routeID,
			}
			if hasRoute {
				leg.RouteName = route.Name
				leg.Operator = route.Operator
			}
			legs = append(legs, leg)
		case WalkingEdge:
			from, _ := g.GetStop(edge.FromStop)
			to, _ := g.GetStop(edge.ToStop)
			dep := st.fromArrival
			arr := dep.AddMinutes(edge.WalkMinutes)
			legs = append(legs, model.JourneyLeg{
				FromStop:  edge.FromStop,
				FromName:  from.Name,
				ToStop:    edge.ToStop,
				ToName:    to.Name,
				Departure: dep,
				Arrival:   arr,
				Mode:      model.ModeWalk,
			})
		}
	}

	totalDuration := 0.0
	if len(legs) > 0 {
		totalDuration = model.MinutesBetween(legs[0].Departure, legs[len(legs)-1].Arrival)
	}

	numTransit := 0
	for _, leg := range legs {
		if leg.Mode != model.ModeWalk {
			numTransit++
		}
	}
	numTransfers := numTransit - 1
	if numTransfers < 0 {
		numTransfers = 0
	}

	return model.JourneyPlan{
		Legs:              legs,
		TotalCost:         dest.cost,
		TotalDurationMins: totalDuration,
		NumTransfers:      numTransfers,
	}
}

func edgeFromStop(edge any) string {
	switch e := edge.(type) {
	case TransitEdge:
		return e.FromStop
	case WalkingEdge:
		return e.FromStop
	}
	return ""
}

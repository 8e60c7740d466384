package storage

import (
	"fmt"
	"sort"

	"github.com/lancasterlink/journeyplanner/model"
)

// MemoryStorage is an in-memory Storage implementation, handy for
// tests and for single-process deployments that don't need
// persistence across restarts.
type MemoryStorage struct {
	Snapshots map[string]*memorySnapshot
	Metadata  map[string]*SnapshotMetadata // keyed by hash
	Requests  map[string]SnapshotRequest   // keyed by source
	Disrupted map[string]map[int]bool      // hash -> route id -> disrupted
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Snapshots: map[string]*memorySnapshot{},
		Metadata:  map[string]*SnapshotMetadata{},
		Requests:  map[string]SnapshotRequest{},
		Disrupted: map[string]map[int]bool{},
	}
}

func (s *MemoryStorage) ListSnapshots(filter ListSnapshotsFilter) ([]*SnapshotMetadata, error) {
	var out []*SnapshotMetadata
	for _, m := range s.Metadata {
		if filter.Source != "" && m.Source != filter.Source {
			continue
		}
		if filter.Hash != "" && m.Hash != filter.Hash {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RetrievedAt.After(out[j].RetrievedAt)
	})
	return out, nil
}

func (s *MemoryStorage) WriteSnapshotMetadata(metadata *SnapshotMetadata) error {
	s.Metadata[metadata.Hash] = metadata
	return nil
}

func (s *MemoryStorage) ListSnapshotRequests(source string) ([]SnapshotRequest, error) {
	var out []SnapshotRequest
	for _, req := range s.Requests {
		if source != "" && req.Source != source {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (s *MemoryStorage) WriteSnapshotRequest(req SnapshotRequest) error {
	s.Requests[req.Source] = req
	return nil
}

func (s *MemoryStorage) GetReader(hash string) (SnapshotReader, error) {
	snap, ok := s.Snapshots[hash]
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", hash)
	}
	return snap, nil
}

func (s *MemoryStorage) GetWriter(hash string) (SnapshotWriter, error) {
	snap := &memorySnapshot{}
	s.Snapshots[hash] = snap
	return snap, nil
}

func (s *MemoryStorage) ListDisruptedRouteIDs(hash string) ([]int, error) {
	var ids []int
	for rid, disrupted := range s.Disrupted[hash] {
		if disrupted {
			ids = append(ids, rid)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *MemoryStorage) SetDisrupted(hash string, routeID int, disrupted bool) error {
	if s.Disrupted[hash] == nil {
		s.Disrupted[hash] = map[int]bool{}
	}
	if disrupted {
		s.Disrupted[hash][routeID] = true
	} else {
		delete(s.Disrupted[hash], routeID)
	}
	return nil
}

// memorySnapshot is both the SnapshotWriter and SnapshotReader for a
// single in-memory snapshot.
type memorySnapshot struct {
	stops              map[string]model.Stop
	routes             map[int]model.Route
	walkingConnections []model.WalkingConnection
	timetableEntries   []model.TimetableEntry
}

func (f *memorySnapshot) WriteStop(stop model.Stop) error {
	if f.stops == nil {
		f.stops = map[string]model.Stop{}
	}
	f.stops[stop.Code] = stop
	return nil
}

func (f *memorySnapshot) WriteRoute(route model.Route) error {
	if f.routes == nil {
		f.routes = map[int]model.Route{}
	}
	f.routes[route.ID] = route
	return nil
}

func (f *memorySnapshot) WriteWalkingConnection(wc model.WalkingConnection) error {
	f.walkingConnections = append(f.walkingConnections, wc)
	return nil
}

func (f *memorySnapshot) BeginTimetable() error { return nil }

func (f *memorySnapshot) WriteTimetableEntry(entry model.TimetableEntry) error {
	f.timetableEntries = append(f.timetableEntries, entry)
	return nil
}

func (f *memorySnapshot) EndTimetable() error { return nil }

func (f *memorySnapshot) Close() error { return nil }

func (f *memorySnapshot) Stops() ([]model.Stop, error) {
	out := make([]model.Stop, 0, len(f.stops))
	for _, s := range f.stops {
		out = append(out, s)
	}
	return out, nil
}

func (f *memorySnapshot) Routes() ([]model.Route, error) {
	out := make([]model.Route, 0, len(f.routes))
	for _, r := range f.routes {
		out = append(out, r)
	}
	return out, nil
}

func (f *memorySnapshot) WalkingConnections() ([]model.WalkingConnection, error) {
	return f.walkingConnections, nil
}

func (f *memorySnapshot) TimetableEntries() ([]model.TimetableEntry, error) {
	return f.timetableEntries, nil
}

func (f *memorySnapshot) Snapshot(disruptedRouteIDs []int) (model.Snapshot, error) {
	stops, _ := f.Stops()
	routes, _ := f.Routes()
	return model.Snapshot{
		Stops:              stops,
		Routes:             routes,
		TimetableEntries:   f.timetableEntries,
		WalkingConnections: f.walkingConnections,
		DisruptedRouteIDs:  disruptedRouteIDs,
	}, nil
}

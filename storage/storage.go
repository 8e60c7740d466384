// Package storage persists transport-network Snapshots (and the live
// disruption state layered on top of them) so that a Manager can
// avoid re-ingesting timetable data on every journey-planning request.
//
// It is a boundary collaborator in the sense of spec.md §6: the
// routing core (graph, cost and router) never uses this package; only
// Manager in the journeyplanner package does. Storage exists purely to
// produce the model.Snapshot that BuildGraph consumes.
package storage

import (
	"time"

	"github.com/lancasterlink/journeyplanner/model"
)

// Storage is the top-level persistence interface, one implementation
// per backend (memory, SQLite, Postgres).
type Storage interface {
	// ListSnapshots returns all snapshot metadata records matching
	// filter.
	ListSnapshots(filter ListSnapshotsFilter) ([]*SnapshotMetadata, error)

	// WriteSnapshotMetadata writes a metadata record. If a record
	// with the same Source and Hash exists, it is updated.
	WriteSnapshotMetadata(metadata *SnapshotMetadata) error

	// ListSnapshotRequests returns all fetch-request records for the
	// given source. If source is blank, all requests are returned.
	ListSnapshotRequests(source string) ([]SnapshotRequest, error)

	// WriteSnapshotRequest records (or updates) a request to fetch a
	// snapshot from source, tracking which consumers asked for it.
	WriteSnapshotRequest(req SnapshotRequest) error

	// GetReader returns a reader for the snapshot with the given
	// hash.
	GetReader(hash string) (SnapshotReader, error)

	// GetWriter returns a writer for the snapshot with the given
	// hash.
	GetWriter(hash string) (SnapshotWriter, error)

	// ListDisruptedRouteIDs returns the route ids currently flagged
	// as disrupted for the given snapshot hash.
	ListDisruptedRouteIDs(hash string) ([]int, error)

	// SetDisrupted flags or clears a route's disruption status for
	// the given snapshot hash.
	SetDisrupted(hash string, routeID int, disrupted bool) error
}

// ListSnapshotsFilter narrows ListSnapshots results.
type ListSnapshotsFilter struct {
	// If set, only include snapshots from this source (a URL or
	// file path, depending on how the snapshot was ingested).
	Source string

	// If set, only include the snapshot with this hash.
	Hash string
}

// SnapshotMetadata describes a previously-ingested Snapshot. The
// parsed data itself is reached via SnapshotReader.
type SnapshotMetadata struct {
	Source      string
	Hash        string
	RetrievedAt time.Time
	UpdatedAt   time.Time
}

// SnapshotRequest records that some consumer asked for a snapshot at
// Source to be (re-)fetched, mirroring how multiple consumers of the
// same disruption or timetable feed might use different API keys.
type SnapshotRequest struct {
	Source      string
	RefreshedAt time.Time
	Consumers   []SnapshotConsumer
}

// SnapshotConsumer is one named consumer of a SnapshotRequest, with
// its own request ID so repeated fetches can be deduplicated.
type SnapshotConsumer struct {
	Name      string
	RequestID string
	Headers   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotWriter writes model records for a single snapshot. As
// TimetableEntries tend to be the largest table, BeginTimetable/
// EndTimetable bracket all WriteTimetableEntry calls, allowing
// transactions/batching.
type SnapshotWriter interface {
	WriteStop(stop model.Stop) error
	WriteRoute(route model.Route) error
	WriteWalkingConnection(wc model.WalkingConnection) error
	BeginTimetable() error
	WriteTimetableEntry(entry model.TimetableEntry) error
	EndTimetable() error
	Close() error
}

// SnapshotReader reads model records back out, and assembles the full
// Snapshot BuildGraph needs.
type SnapshotReader interface {
	Stops() ([]model.Stop, error)
	Routes() ([]model.Route, error)
	WalkingConnections() ([]model.WalkingConnection, error)
	TimetableEntries() ([]model.TimetableEntry, error)

	// Snapshot assembles all of the above plus the given disrupted
	// route ids into a model.Snapshot ready for BuildGraph.
	Snapshot(disruptedRouteIDs []int) (model.Snapshot, error)
}

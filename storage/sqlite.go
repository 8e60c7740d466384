package storage

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lancasterlink/journeyplanner/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// SQLiteStorage persists Snapshot metadata/requests/disruption state
// in one "registry" database, and each snapshot's stops/routes/
// timetable/walking data in its own database keyed by hash (so a
// large regional network doesn't bloat the registry).
type SQLiteStorage struct {
	SQLiteConfig

	registryDB *sql.DB
	snapshots  map[string]*sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/journeyplanner.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS snapshot (
    hash TEXT,
    source TEXT NOT NULL,
    retrieved_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
PRIMARY KEY (hash, source)
);

CREATE TABLE IF NOT EXISTS snapshot_request (
    source TEXT NOT NULL,
    refreshed_at TIMESTAMP NOT NULL,
PRIMARY KEY (source)
);

CREATE TABLE IF NOT EXISTS snapshot_consumer (
    name TEXT NOT NULL,
    source TEXT NOT NULL,
    request_id TEXT NOT NULL,
    headers TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
PRIMARY KEY (name, source)
);

CREATE TABLE IF NOT EXISTS disruption (
    hash TEXT NOT NULL,
    route_id INTEGER NOT NULL,
PRIMARY KEY (hash, route_id)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating registry tables: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{OnDisk: onDisk, Directory: directory},
		registryDB:   db,
		snapshots:    map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) ListSnapshots(filter ListSnapshotsFilter) ([]*SnapshotMetadata, error) {
	query := `SELECT hash, source, retrieved_at, updated_at FROM snapshot`

	conditions := []string{}
	params := []interface{}{}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		params = append(params, filter.Source)
	}
	if filter.Hash != "" {
		conditions = append(conditions, "hash = ?")
		params = append(params, filter.Hash)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY retrieved_at DESC"

	rows, err := s.registryDB.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []*SnapshotMetadata
	for rows.Next() {
		var m SnapshotMetadata
		if err := rows.Scan(&m.Hash, &m.Source, &m.RetrievedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		out = append(out, &m)
	}
	return out, nil
}

func (s *SQLiteStorage) WriteSnapshotMetadata(m *SnapshotMetadata) error {
	_, err := s.registryDB.Exec(`
INSERT INTO snapshot (hash, source, retrieved_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (hash, source) DO UPDATE SET
    retrieved_at = excluded.retrieved_at,
    updated_at = excluded.updated_at
`, m.Hash, m.Source, m.RetrievedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("writing snapshot metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListSnapshotRequests(source string) ([]SnapshotRequest, error) {
	query := `
SELECT req.source, req.refreshed_at, con.name, con.request_id, con.headers, con.created_at, con.updated_at
FROM snapshot_request req
LEFT JOIN snapshot_consumer con ON req.source = con.source`

	var rows *sql.Rows
	var err error
	if source != "" {
		query += " WHERE req.source = ?"
		rows, err = s.registryDB.Query(query, source)
	} else {
		rows, err = s.registryDB.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("listing snapshot requests: %w", err)
	}
	defer rows.Close()

	requests := map[string]*SnapshotRequest{}
	for rows.Next() {
		var req SnapshotRequest
		var name, requestID, headers sql.NullString
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&req.Source, &req.RefreshedAt, &name, &requestID, &headers, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot request: %w", err)
		}
		if _, ok := requests[req.Source]; !ok {
			requests[req.Source] = &req
		}
		if name.Valid {
			requests[req.Source].Consumers = append(requests[req.Source].Consumers, SnapshotConsumer{
				Name:      name.String,
				RequestID: requestID.String,
				Headers:   headers.String,
				CreatedAt: createdAt.Time,
				UpdatedAt: updatedAt.Time,
			})
		}
	}

	var out []SnapshotRequest
	for _, req := range requests {
		out = append(out, *req)
	}
	return out, nil
}

func (s *SQLiteStorage) WriteSnapshotRequest(req SnapshotRequest) error {
	_, err := s.registryDB.Exec(`
INSERT INTO snapshot_request (source, refreshed_at)
VALUES (?, ?)
ON CONFLICT (source) DO UPDATE SET refreshed_at = excluded.refreshed_at
`, req.Source, req.RefreshedAt)
	if err != nil {
		return fmt.Errorf("writing snapshot request: %w", err)
	}

	for _, con := range req.Consumers {
		_, err := s.registryDB.Exec(`
INSERT INTO snapshot_consumer (name, source, request_id, headers, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (name, source) DO UPDATE SET
    request_id = excluded.request_id,
    headers = excluded.headers,
    updated_at = excluded.updated_at
`, con.Name, req.Source, con.RequestID, con.Headers, con.CreatedAt, con.UpdatedAt)
		if err != nil {
			return fmt.Errorf("writing snapshot consumer: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStorage) ListDisruptedRouteIDs(hash string) ([]int, error) {
	rows, err := s.registryDB.Query(`SELECT route_id FROM disruption WHERE hash = ?`, hash)
	if err != nil {
		return nil, fmt.Errorf("listing disrupted routes: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning disrupted route: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLiteStorage) SetDisrupted(hash string, routeID int, disrupted bool) error {
	if disrupted {
		_, err := s.registryDB.Exec(`
INSERT INTO disruption (hash, route_id) VALUES (?, ?)
ON CONFLICT (hash, route_id) DO NOTHING`, hash, routeID)
		if err != nil {
			return fmt.Errorf("marking disrupted: %w", err)
		}
		return nil
	}
	_, err := s.registryDB.Exec(`DELETE FROM disruption WHERE hash = ? AND route_id = ?`, hash, routeID)
	if err != nil {
		return fmt.Errorf("clearing disruption: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) snapshotSourceName(hash string) string {
	if !s.OnDisk {
		return ":memory:"
	}
	return s.Directory + "/" + hash + ".db"
}

func (s *SQLiteStorage) GetReader(hash string) (SnapshotReader, error) {
	db, found := s.snapshots[hash]
	if found {
		return &sqliteSnapshot{db: db}, nil
	}
	if !s.OnDisk {
		return nil, fmt.Errorf("snapshot %s does not exist", hash)
	}

	sourceName := s.snapshotSourceName(hash)
	if _, err := os.Stat(sourceName); os.IsNotExist(err) {
		return nil, fmt.Errorf("snapshot %s does not exist at %s", hash, sourceName)
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.snapshots[hash] = db

	return &sqliteSnapshot{db: db}, nil
}

func (s *SQLiteStorage) GetWriter(hash string) (SnapshotWriter, error) {
	sourceName := s.snapshotSourceName(hash)
	if s.OnDisk {
		if _, err := os.Stat(sourceName); err == nil {
			if err := os.Remove(sourceName); err != nil {
				return nil, fmt.Errorf("removing existing database: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for name, query := range map[string]string{
		"stops": `
CREATE TABLE stops (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    mode TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    locality_code TEXT,
    hub_score REAL NOT NULL
);`,
		"routes": `
CREATE TABLE routes (
    id INTEGER PRIMARY KEY,
    operator TEXT NOT NULL,
    name TEXT NOT NULL,
    mode TEXT NOT NULL
);`,
		"walking_connections": `
CREATE TABLE walking_connections (
    from_stop TEXT NOT NULL,
    to_stop TEXT NOT NULL,
    walk_minutes REAL NOT NULL,
    distance_m REAL NOT NULL
);
CREATE INDEX walking_connections_from ON walking_connections (from_stop);`,
		"timetable_entries": `
CREATE TABLE timetable_entries (
    route_id INTEGER NOT NULL,
    stop_code TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival TEXT,
    departure TEXT,
    trip_id TEXT NOT NULL,
    days_of_week TEXT,
    valid_from TEXT,
    valid_to TEXT
);
CREATE INDEX timetable_entries_trip ON timetable_entries (route_id, trip_id);`,
	} {
		if _, err := db.Exec(query); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %w", name, err)
		}
	}

	s.snapshots[hash] = db

	return &sqliteSnapshotWriter{db: db}, nil
}

type sqliteSnapshotWriter struct {
	db                   *sql.DB
	timetableInsertStmt  *sql.Stmt
	timetableInsertTx    *sql.Tx
}

func (w *sqliteSnapshotWriter) WriteStop(stop model.Stop) error {
	_, err := w.db.Exec(`
INSERT INTO stops (code, name, mode, lat, lon, locality_code, hub_score)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stop.Code, stop.Name, stop.Mode, stop.Lat, stop.Lon, stop.LocalityCode, stop.HubScore)
	if err != nil {
		return fmt.Errorf("inserting stop: %w", err)
	}
	return nil
}

func (w *sqliteSnapshotWriter) WriteRoute(route model.Route) error {
	_, err := w.db.Exec(`
INSERT INTO routes (id, operator, name, mode)
VALUES (?, ?, ?, ?)`,
		route.ID, route.Operator, route.Name, route.Mode)
	if err != nil {
		return fmt.Errorf("inserting route: %w", err)
	}
	return nil
}

func (w *sqliteSnapshotWriter) WriteWalkingConnection(wc model.WalkingConnection) error {
	_, err := w.db.Exec(`
INSERT INTO walking_connections (from_stop, to_stop, walk_minutes, distance_m)
VALUES (?, ?, ?, ?)`,
		wc.FromStop, wc.ToStop, wc.WalkMinutes, wc.DistanceM)
	if err != nil {
		return fmt.Errorf("inserting walking connection: %w", err)
	}
	return nil
}

func (w *sqliteSnapshotWriter) BeginTimetable() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning timetable transaction: %w", err)
	}
	w.timetableInsertTx = tx

	stmt, err := tx.Prepare(`
INSERT INTO timetable_entries (route_id, stop_code, stop_sequence, arrival, departure, trip_id, days_of_week, valid_from, valid_to)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		w.timetableInsertTx = nil
		return fmt.Errorf("preparing timetable insert: %w", err)
	}
	w.timetableInsertStmt = stmt
	return nil
}

func (w *sqliteSnapshotWriter) WriteTimetableEntry(entry model.TimetableEntry) error {
	_, err := w.timetableInsertStmt.Exec(
		entry.RouteID, entry.StopCode, entry.StopSequence,
		clockPtrString(entry.Arrival), clockPtrString(entry.Departure),
		entry.TripID, entry.DaysOfWeek, entry.ValidFrom, entry.ValidTo,
	)
	if err != nil {
		w.timetableInsertStmt.Close()
		w.timetableInsertTx.Rollback()
		w.timetableInsertStmt = nil
		w.timetableInsertTx = nil
		return fmt.Errorf("inserting timetable entry: %w", err)
	}
	return nil
}

func (w *sqliteSnapshotWriter) EndTimetable() error {
	if w.timetableInsertStmt == nil {
		return nil
	}
	w.timetableInsertStmt.Close()
	err := w.timetableInsertTx.Commit()
	w.timetableInsertStmt = nil
	w.timetableInsertTx = nil
	if err != nil {
		return fmt.Errorf("committing timetable transaction: %w", err)
	}
	return nil
}

// Close leaves the database open: SQLiteStorage keeps it registered
// under the snapshot hash and GetReader hands the same handle out.
func (w *sqliteSnapshotWriter) Close() error {
	return nil
}

type sqliteSnapshot struct {
	db *sql.DB
}

func (r *sqliteSnapshot) Stops() ([]model.Stop, error) {
	rows, err := r.db.Query(`SELECT code, name, mode, lat, lon, locality_code, hub_score FROM stops`)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	var out []model.Stop
	for rows.Next() {
		var s model.Stop
		var locality sql.NullString
		if err := rows.Scan(&s.Code, &s.Name, &s.Mode, &s.Lat, &s.Lon, &locality, &s.HubScore); err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		s.LocalityCode = locality.String
		out = append(out, s)
	}
	return out, nil
}

func (r *sqliteSnapshot) Routes() ([]model.Route, error) {
	rows, err := r.db.Query(`SELECT id, operator, name, mode FROM routes`)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	var out []model.Route
	for rows.Next() {
		var r2 model.Route
		if err := rows.Scan(&r2.ID, &r2.Operator, &r2.Name, &r2.Mode); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		out = append(out, r2)
	}
	return out, nil
}

func (r *sqliteSnapshot) WalkingConnections() ([]model.WalkingConnection, error) {
	rows, err := r.db.Query(`SELECT from_stop, to_stop, walk_minutes, distance_m FROM walking_connections`)
	if err != nil {
		return nil, fmt.Errorf("querying walking connections: %w", err)
	}
	defer rows.Close()

	var out []model.WalkingConnection
	for rows.Next() {
		var wc model.WalkingConnection
		if err := rows.Scan(&wc.FromStop, &wc.ToStop, &wc.WalkMinutes, &wc.DistanceM); err != nil {
			return nil, fmt.Errorf("scanning walking connection: %w", err)
		}
		out = append(out, wc)
	}
	return out, nil
}

func (r *sqliteSnapshot) TimetableEntries() ([]model.TimetableEntry, error) {
	rows, err := r.db.Query(`
SELECT route_id, stop_code, stop_sequence, arrival, departure, trip_id, days_of_week, valid_from, valid_to
FROM timetable_entries`)
	if err != nil {
		return nil, fmt.Errorf("querying timetable entries: %w", err)
	}
	defer rows.Close()

	var out []model.TimetableEntry
	for rows.Next() {
		var e model.TimetableEntry
		var arrival, departure, daysOfWeek, validFrom, validTo sql.NullString
		if err := rows.Scan(&e.RouteID, &e.StopCode, &e.StopSequence, &arrival, &departure, &e.TripID, &daysOfWeek, &validFrom, &validTo); err != nil {
			return nil, fmt.Errorf("scanning timetable entry: %w", err)
		}
		e.Arrival = parseClockPtr(arrival)
		e.Departure = parseClockPtr(departure)
		e.DaysOfWeek = daysOfWeek.String
		e.ValidFrom = validFrom.String
		e.ValidTo = validTo.String
		out = append(out, e)
	}
	return out, nil
}

func (r *sqliteSnapshot) Snapshot(disruptedRouteIDs []int) (model.Snapshot, error) {
	stops, err := r.Stops()
	if err != nil {
		return model.Snapshot{}, err
	}
	routes, err := r.Routes()
	if err != nil {
		return model.Snapshot{}, err
	}
	walking, err := r.WalkingConnections()
	if err != nil {
		return model.Snapshot{}, err
	}
	entries, err := r.TimetableEntries()
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.Snapshot{
		Stops:              stops,
		Routes:             routes,
		TimetableEntries:   entries,
		WalkingConnections: walking,
		DisruptedRouteIDs:  disruptedRouteIDs,
	}, nil
}


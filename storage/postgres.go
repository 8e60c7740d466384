package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/lancasterlink/journeyplanner/model"
)

// PSQLStorage is the Postgres-backed Storage implementation, for
// deployments where several processes share one snapshot registry.
// Unlike SQLiteStorage, all snapshots live in the same database,
// distinguished by a snapshot_hash column, since Postgres gives no
// equivalent of SQLite's one-file-per-snapshot isolation.
type PSQLStorage struct {
	db *sql.DB
}

// NewPSQLStorage opens a Postgres-backed store. If reset is true, all
// tables are dropped and recreated first, which test suites use to
// start from a clean database.
func NewPSQLStorage(connStr string, reset bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &PSQLStorage{db: db}

	if reset {
		if err := s.dropTables(); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PSQLStorage) dropTables() error {
	_, err := s.db.Exec(`
DROP TABLE IF EXISTS snapshot, snapshot_request, snapshot_consumer, disruption,
    stops, routes, walking_connections, timetable_entries CASCADE;`)
	if err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	return nil
}

func (s *PSQLStorage) createTables() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS snapshot (
    hash TEXT NOT NULL,
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
);

CREATE TABLE IF NOT EXISTS stops (
    snapshot_hash TEXT NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    mode TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    locality_code TEXT,
    hub_score DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (snapshot_hash, code)
);

CREATE TABLE IF NOT EXISTS routes (
    snapshot_hash TEXT NOT NULL,
    id INTEGER NOT NULL,
    operator TEXT NOT NULL,
    name TEXT NOT NULL,
    mode TEXT NOT NULL,
    PRIMARY KEY (snapshot_hash, id)
);

CREATE TABLE IF NOT EXISTS walking_connections (
    snapshot_hash TEXT NOT NULL,
    from_stop TEXT NOT NULL,
    to_stop TEXT NOT NULL,
    walk_minutes DOUBLE PRECISION NOT NULL,
    distance_m DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS walking_connections_from ON walking_connections (snapshot_hash, from_stop);

CREATE TABLE IF NOT EXISTS timetable_entries (
    snapshot_hash TEXT NOT NULL,
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
CREATE INDEX IF NOT EXISTS timetable_entries_trip ON timetable_entries (snapshot_hash, route_id, trip_id);
`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListSnapshots(filter ListSnapshotsFilter) ([]*SnapshotMetadata, error) {
	query := `SELECT hash, source, retrieved_at, updated_at FROM snapshot`

	conditions := []string{}
	params := []interface{}{}
	if filter.Source != "" {
		params = append(params, filter.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(params)))
	}
	if filter.Hash != "" {
		params = append(params, filter.Hash)
		conditions = append(conditions, fmt.Sprintf("hash = $%d", len(params)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY retrieved_at DESC"

	rows, err := s.db.Query(query, params...)
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

func (s *PSQLStorage) WriteSnapshotMetadata(m *SnapshotMetadata) error {
	_, err := s.db.Exec(`
INSERT INTO snapshot (hash, source, retrieved_at, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (hash, source) DO UPDATE SET
    retrieved_at = excluded.retrieved_at,
    updated_at = excluded.updated_at
`, m.Hash, m.Source, m.RetrievedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("writing snapshot metadata: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListSnapshotRequests(source string) ([]SnapshotRequest, error) {
	query := `
SELECT req.source, req.refreshed_at, con.name, con.request_id, con.headers, con.created_at, con.updated_at
FROM snapshot_request req
LEFT JOIN snapshot_consumer con ON req.source = con.source`

	var rows *sql.Rows
	var err error
	if source != "" {
		query += " WHERE req.source = $1"
		rows, err = s.db.Query(query, source)
	} else {
		rows, err = s.db.Query(query)
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

func (s *PSQLStorage) WriteSnapshotRequest(req SnapshotRequest) error {
	_, err := s.db.Exec(`
INSERT INTO snapshot_request (source, refreshed_at)
VALUES ($1, $2)
ON CONFLICT (source) DO UPDATE SET refreshed_at = excluded.refreshed_at
`, req.Source, req.RefreshedAt)
	if err != nil {
		return fmt.Errorf("writing snapshot request: %w", err)
	}

	for _, con := range req.Consumers {
		_, err := s.db.Exec(`
INSERT INTO snapshot_consumer (name, source, request_id, headers, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
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

func (s *PSQLStorage) ListDisruptedRouteIDs(hash string) ([]int, error) {
	rows, err := s.db.Query(`SELECT route_id FROM disruption WHERE hash = $1`, hash)
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

func (s *PSQLStorage) SetDisrupted(hash string, routeID int, disrupted bool) error {
	if disrupted {
		_, err := s.db.Exec(`
INSERT INTO disruption (hash, route_id) VALUES ($1, $2)
ON CONFLICT (hash, route_id) DO NOTHING`, hash, routeID)
		if err != nil {
			return fmt.Errorf("marking disrupted: %w", err)
		}
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM disruption WHERE hash = $1 AND route_id = $2`, hash, routeID)
	if err != nil {
		return fmt.Errorf("clearing disruption: %w", err)
	}
	return nil
}

func (s *PSQLStorage) GetReader(hash string) (SnapshotReader, error) {
	var count int
	if err := s.db.QueryRow(`SELECT count(*) FROM stops WHERE snapshot_hash = $1`, hash).Scan(&count); err != nil {
		return nil, fmt.Errorf("checking snapshot existence: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("snapshot %s does not exist", hash)
	}
	return &psqlSnapshot{db: s.db, hash: hash}, nil
}

func (s *PSQLStorage) GetWriter(hash string) (SnapshotWriter, error) {
	for _, query := range []string{
		`DELETE FROM stops WHERE snapshot_hash = $1`,
		`DELETE FROM routes WHERE snapshot_hash = $1`,
		`DELETE FROM walking_connections WHERE snapshot_hash = $1`,
		`DELETE FROM timetable_entries WHERE snapshot_hash = $1`,
	} {
		if _, err := s.db.Exec(query, hash); err != nil {
			return nil, fmt.Errorf("clearing existing snapshot data: %w", err)
		}
	}
	return &psqlSnapshotWriter{db: s.db, hash: hash}, nil
}

type psqlSnapshotWriter struct {
	db                  *sql.DB
	hash                string
	timetableInsertStmt *sql.Stmt
	timetableInsertTx   *sql.Tx
}

func (w *psqlSnapshotWriter) WriteStop(stop model.Stop) error {
	_, err := w.db.Exec(`
INSERT INTO stops (snapshot_hash, code, name, mode, lat, lon, locality_code, hub_score)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.hash, stop.Code, stop.Name, stop.Mode, stop.Lat, stop.Lon, stop.LocalityCode, stop.HubScore)
	if err != nil {
		return fmt.Errorf("inserting stop: %w", err)
	}
	return nil
}

func (w *psqlSnapshotWriter) WriteRoute(route model.Route) error {
	_, err := w.db.Exec(`
INSERT INTO routes (snapshot_hash, id, operator, name, mode)
VALUES ($1, $2, $3, $4, $5)`,
		w.hash, route.ID, route.Operator, route.Name, route.Mode)
	if err != nil {
		return fmt.Errorf("inserting route: %w", err)
	}
	return nil
}

func (w *psqlSnapshotWriter) WriteWalkingConnection(wc model.WalkingConnection) error {
	_, err := w.db.Exec(`
INSERT INTO walking_connections (snapshot_hash, from_stop, to_stop, walk_minutes, distance_m)
VALUES ($1, $2, $3, $4, $5)`,
		w.hash, wc.FromStop, wc.ToStop, wc.WalkMinutes, wc.DistanceM)
	if err != nil {
		return fmt.Errorf("inserting walking connection: %w", err)
	}
	return nil
}

func (w *psqlSnapshotWriter) BeginTimetable() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning timetable transaction: %w", err)
	}
	w.timetableInsertTx = tx

	stmt, err := tx.Prepare(`
INSERT INTO timetable_entries (snapshot_hash, route_id, stop_code, stop_sequence, arrival, departure, trip_id, days_of_week, valid_from, valid_to)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		tx.Rollback()
		w.timetableInsertTx = nil
		return fmt.Errorf("preparing timetable insert: %w", err)
	}
	w.timetableInsertStmt = stmt
	return nil
}

func (w *psqlSnapshotWriter) WriteTimetableEntry(entry model.TimetableEntry) error {
	_, err := w.timetableInsertStmt.Exec(
		w.hash, entry.RouteID, entry.StopCode, entry.StopSequence,
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

func (w *psqlSnapshotWriter) EndTimetable() error {
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

func (w *psqlSnapshotWriter) Close() error { return nil }

type psqlSnapshot struct {
	db   *sql.DB
	hash string
}

func (r *psqlSnapshot) Stops() ([]model.Stop, error) {
	rows, err := r.db.Query(`SELECT code, name, mode, lat, lon, locality_code, hub_score FROM stops WHERE snapshot_hash = $1`, r.hash)
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

func (r *psqlSnapshot) Routes() ([]model.Route, error) {
	rows, err := r.db.Query(`SELECT id, operator, name, mode FROM routes WHERE snapshot_hash = $1`, r.hash)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	var out []model.Route
	for rows.Next() {
		var rt model.Route
		if err := rows.Scan(&rt.ID, &rt.Operator, &rt.Name, &rt.Mode); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		out = append(out, rt)
	}
	return out, nil
}

func (r *psqlSnapshot) WalkingConnections() ([]model.WalkingConnection, error) {
	rows, err := r.db.Query(`SELECT from_stop, to_stop, walk_minutes, distance_m FROM walking_connections WHERE snapshot_hash = $1`, r.hash)
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

func (r *psqlSnapshot) TimetableEntries() ([]model.TimetableEntry, error) {
	rows, err := r.db.Query(`
SELECT route_id, stop_code, stop_sequence, arrival, departure, trip_id, days_of_week, valid_from, valid_to
FROM timetable_entries WHERE snapshot_hash = $1`, r.hash)
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

func (r *psqlSnapshot) Snapshot(disruptedRouteIDs []int) (model.Snapshot, error) {
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

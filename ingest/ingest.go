// Package ingest reads a zipped bundle of CSV files describing a
// transport-network snapshot — stops.csv, routes.csv, timetable.csv,
// walking_connections.csv — into a storage.SnapshotWriter. It is the
// boundary collaborator spec.md §6 calls the "data ingestion"
// component: the routing core (graph, cost and router) never uses this
// package, only the model.Snapshot it produces via
// storage.SnapshotReader; Manager calls it to ingest fetched bundles.
package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"github.com/lancasterlink/journeyplanner/storage"
)

// ParseSnapshot unpacks buf (a zip archive) and writes its contents
// into writer. stops.csv and routes.csv are required; timetable.csv
// and walking_connections.csv may each be absent, producing a
// snapshot with no scheduled services or no walking links
// respectively.
func ParseSnapshot(writer storage.SnapshotWriter, buf []byte) error {
	files := map[string]io.ReadCloser{
		"stops.csv":               nil,
		"routes.csv":              nil,
		"timetable.csv":           nil,
		"walking_connections.csv": nil,
	}

	defer func() {
		for _, rc := range files {
			if rc != nil {
				rc.Close()
			}
		}
	}()

	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return fmt.Errorf("unzipping: %w", err)
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		name := path[len(path)-1]

		if _, found := files[name]; !found {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Name, err)
		}
		files[name] = rc
	}

	for _, required := range []string{"stops.csv", "routes.csv"} {
		if files[required] == nil {
			return fmt.Errorf("missing %s", required)
		}
	}

	// LazyCSVReader survives sloppy quoting; the BOM reader strips a
	// leading unicode BOM if the file was exported from Excel.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	stopCodes, err := ParseStops(writer, files["stops.csv"])
	if err != nil {
		return fmt.Errorf("parsing stops.csv: %w", err)
	}

	routeIDs, err := ParseRoutes(writer, files["routes.csv"])
	if err != nil {
		return fmt.Errorf("parsing routes.csv: %w", err)
	}

	if files["walking_connections.csv"] != nil {
		if err := ParseWalkingConnections(writer, files["walking_connections.csv"], stopCodes); err != nil {
			return fmt.Errorf("parsing walking_connections.csv: %w", err)
		}
	}

	if files["timetable.csv"] != nil {
		if err := writer.BeginTimetable(); err != nil {
			return fmt.Errorf("beginning timetable: %w", err)
		}
		if err := ParseTimetable(writer, files["timetable.csv"], routeIDs, stopCodes); err != nil {
			return fmt.Errorf("parsing timetable.csv: %w", err)
		}
		if err := writer.EndTimetable(); err != nil {
			return fmt.Errorf("ending timetable: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing snapshot writer: %w", err)
	}

	return nil
}

package ingest

import (
	"fmt"
	"io"
	"math"

	"github.com/gocarina/gocsv"

	"github.com/lancasterlink/journeyplanner/model"
	"github.com/lancasterlink/journeyplanner/storage"
)

type walkingConnectionCSV struct {
	FromStop    string  `csv:"from_stop"`
	ToStop      string  `csv:"to_stop"`
	WalkMinutes float64 `csv:"walk_minutes"`
	DistanceM   float64 `csv:"distance_m"`
}

// ParseWalkingConnections reads walking_connections.csv. distance_m
// may be left blank, in which case it is filled in from the stops'
// lat/lon via haversineMetres — most survey data only records the
// walk time, not the straight-line distance.
func ParseWalkingConnections(writer storage.SnapshotWriter, data io.Reader, stops map[string]model.Stop) error {
	rows := []*walkingConnectionCSV{}
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("unmarshaling walking connections csv: %w", err)
	}

	for i, row := range rows {
		from, ok := stops[row.FromStop]
		if !ok {
			return fmt.Errorf("unknown from_stop: '%s' (row %d)", row.FromStop, i+1)
		}
		to, ok := stops[row.ToStop]
		if !ok {
			return fmt.Errorf("unknown to_stop: '%s' (row %d)", row.ToStop, i+1)
		}
		if row.WalkMinutes <= 0 {
			return fmt.Errorf("non-positive walk_minutes for %s -> %s (row %d)", row.FromStop, row.ToStop, i+1)
		}

		distance := row.DistanceM
		if distance == 0 {
			distance = haversineMetres(from.Lat, from.Lon, to.Lat, to.Lon)
		}

		if err := writer.WriteWalkingConnection(model.WalkingConnection{
			FromStop:    row.FromStop,
			ToStop:      row.ToStop,
			WalkMinutes: row.WalkMinutes,
			DistanceM:   distance,
		}); err != nil {
			return fmt.Errorf("writing walking connection %s -> %s: %w", row.FromStop, row.ToStop, err)
		}
	}

	return nil
}

// haversineMetres returns the great-circle distance between two
// lat/lon points, in metres.
func haversineMetres(aLat, aLon, bLat, bLon float64) float64 {
	const earthRadiusM = 6371000

	aLatRad := aLat * math.Pi / 180
	aLonRad := aLon * math.Pi / 180
	bLatRad := bLat * math.Pi / 180
	bLonRad := bLon * math.Pi / 180
	deltaLat := aLatRad - bLatRad
	deltaLon := aLonRad - bLonRad

	a := math.Cos(aLatRad)*math.Cos(bLatRad)*math.Pow(math.Sin(deltaLon/2), 2) + math.Pow(math.Sin(deltaLat/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return c * earthRadiusM
}

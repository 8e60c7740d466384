package ingest

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/lancasterlink/journeyplanner/model"
	"github.com/lancasterlink/journeyplanner/storage"
)

type stopCSV struct {
	Code         string  `csv:"stop_code"`
	Name         string  `csv:"stop_name"`
	Mode         string  `csv:"mode"`
	Lat          float64 `csv:"lat"`
	Lon          float64 `csv:"lon"`
	LocalityCode string  `csv:"locality_code"`
	HubScore     float64 `csv:"hub_score"`
}

// ParseStops reads stops.csv and returns every stop seen, keyed by
// code, so later files (timetable, walking connections) can validate
// their own stop_code references and, for walking connections,
// fall back to a computed distance.
func ParseStops(writer storage.SnapshotWriter, data io.Reader) (map[string]model.Stop, error) {
	rows := []*stopCSV{}
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling stops csv: %w", err)
	}

	stops := map[string]model.Stop{}
	for _, row := range rows {
		if row.Code == "" {
			return nil, fmt.Errorf("empty stop_code")
		}
		if _, seen := stops[row.Code]; seen {
			return nil, fmt.Errorf("repeated stop_code '%s'", row.Code)
		}

		if row.Name == "" {
			return nil, fmt.Errorf("empty stop_name for stop_code '%s'", row.Code)
		}

		mode := model.Mode(row.Mode)
		switch mode {
		case model.ModeBus, model.ModeRail, model.ModeTram, model.ModeWalk:
		default:
			return nil, fmt.Errorf("stop_code '%s' has invalid mode '%s'", row.Code, row.Mode)
		}

		if row.HubScore < 0 || row.HubScore > 1 {
			return nil, fmt.Errorf("stop_code '%s' has hub_score out of [0,1]: %v", row.Code, row.HubScore)
		}

		stop := model.Stop{
			Code:         row.Code,
			Name:         row.Name,
			Mode:         mode,
			Lat:          row.Lat,
			Lon:          row.Lon,
			LocalityCode: row.LocalityCode,
			HubScore:     row.HubScore,
		}

		if err := writer.WriteStop(stop); err != nil {
			return nil, fmt.Errorf("writing stop '%s': %w", row.Code, err)
		}
		stops[row.Code] = stop
	}

	return stops, nil
}

package ingest

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/lancasterlink/journeyplanner/model"
	"github.com/lancasterlink/journeyplanner/storage"
)

type routeCSV struct {
	ID       string `csv:"route_id"`
	Operator string `csv:"operator"`
	Name     string `csv:"route_name"`
	Mode     string `csv:"mode"`
}

// ParseRoutes reads routes.csv and returns the set of route ids seen.
func ParseRoutes(writer storage.SnapshotWriter, data io.Reader) (map[int]bool, error) {
	rows := []*routeCSV{}
	if err := gocsv.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling routes csv: %w", err)
	}

	ids := map[int]bool{}
	for _, row := range rows {
		if row.ID == "" {
			return nil, fmt.Errorf("route has no route_id")
		}
		id, err := strconv.Atoi(row.ID)
		if err != nil {
			return nil, fmt.Errorf("route_id '%s' is not an integer: %w", row.ID, err)
		}
		if ids[id] {
			return nil, fmt.Errorf("repeated route_id: '%d'", id)
		}
		ids[id] = true

		if row.Name == "" {
			return nil, fmt.Errorf("route_id '%d' has no route_name", id)
		}

		mode := model.Mode(row.Mode)
		switch mode {
		case model.ModeBus, model.ModeRail, model.ModeTram:
		default:
			return nil, fmt.Errorf("route_id '%d' has invalid mode '%s'", id, row.Mode)
		}

		if err := writer.WriteRoute(model.Route{
			ID:       id,
			Operator: row.Operator,
			Name:     row.Name,
			Mode:     mode,
		}); err != nil {
			return nil, fmt.Errorf("writing route '%d': %w", id, err)
		}
	}

	return ids, nil
}

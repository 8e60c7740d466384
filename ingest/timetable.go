package ingest

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/lancasterlink/journeyplanner/model"
	"github.com/lancasterlink/journeyplanner/storage"
)

type timetableCSV struct {
	RouteID      string `csv:"route_id"`
	StopCode     string `csv:"stop_code"`
	StopSequence uint32 `csv:"stop_sequence"`
	Arrival      string `csv:"arrival_time"`
	Departure    string `csv:"departure_time"`
	TripID       string `csv:"trip_id"`
	DaysOfWeek   string `csv:"days_of_week"`
	ValidFrom    string `csv:"valid_from"`
	ValidTo      string `csv:"valid_to"`
}

// parseClockField parses an "H:MM:SS" field, returning (nil, nil) for
// a blank field — the first stop of a trip has no arrival, the last
// has no departure (spec.md §3).
func parseClockField(s string) (*model.ClockTime, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("found %d parts in '%s'", len(parts), s)
	}

	hms := [3]int{}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = v
	}

	if hms[0] < 0 || hms[0] > 47 {
		return nil, fmt.Errorf("invalid hour in '%s'", s)
	}
	if hms[1] < 0 || hms[1] > 59 {
		return nil, fmt.Errorf("invalid minute in '%s'", s)
	}
	if hms[2] < 0 || hms[2] > 59 {
		return nil, fmt.Errorf("invalid second in '%s'", s)
	}

	return &model.ClockTime{Hour: hms[0] % 24, Minute: hms[1], Second: hms[2]}, nil
}

// ParseTimetable reads timetable.csv, validating that every row
// references a known route_id and stop_code, and that stop_sequence
// is unique within a trip. Entries are sorted by (trip_id,
// stop_sequence) before being written, matching the order
// BuildGraph's tripKey partition expects.
func ParseTimetable(
	writer storage.SnapshotWriter,
	data io.Reader,
	routeIDs map[int]bool,
	stops map[string]model.Stop,
) error {
	entries := []model.TimetableEntry{}
	stopSeq := map[string][]int{}

	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(row *timetableCSV) error {
		i++

		routeID, err := strconv.Atoi(row.RouteID)
		if err != nil {
			return errors.Wrapf(err, "parsing route_id (row %d)", i+1)
		}
		if !routeIDs[routeID] {
			return fmt.Errorf("unknown route_id: '%d' (row %d)", routeID, i+1)
		}
		if row.StopCode == "" {
			return fmt.Errorf("missing stop_code (row %d)", i+1)
		}
		if _, ok := stops[row.StopCode]; !ok {
			return fmt.Errorf("unknown stop_code: '%s' (row %d)", row.StopCode, i+1)
		}
		if row.TripID == "" {
			return fmt.Errorf("missing trip_id (row %d)", i+1)
		}

		arrival, err := parseClockField(row.Arrival)
		if err != nil {
			return errors.Wrapf(err, "parsing arrival_time (row %d)", i+1)
		}
		departure, err := parseClockField(row.Departure)
		if err != nil {
			return errors.Wrapf(err, "parsing departure_time (row %d)", i+1)
		}

		stopSeq[row.TripID] = append(stopSeq[row.TripID], int(row.StopSequence))

		entries = append(entries, model.TimetableEntry{
			RouteID:      routeID,
			StopCode:     row.StopCode,
			StopSequence: int(row.StopSequence),
			Arrival:      arrival,
			Departure:    departure,
			TripID:       row.TripID,
			DaysOfWeek:   row.DaysOfWeek,
			ValidFrom:    row.ValidFrom,
			ValidTo:      row.ValidTo,
		})

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unmarshaling timetable csv")
	}

	for tripID, seq := range stopSeq {
		seen := map[int]bool{}
		for _, s := range seq {
			if seen[s] {
				return fmt.Errorf("duplicate stop_sequence %d for trip_id '%s'", s, tripID)
			}
			seen[s] = true
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TripID != entries[j].TripID {
			return entries[i].TripID < entries[j].TripID
		}
		return entries[i].StopSequence < entries[j].StopSequence
	})

	for _, entry := range entries {
		if err := writer.WriteTimetableEntry(entry); err != nil {
			return errors.Wrapf(err, "writing timetable entry for trip '%s'", entry.TripID)
		}
	}

	return nil
}

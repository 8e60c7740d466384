package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lancasterlink/journeyplanner/model"
)

// clockPtrString renders a ClockTime pointer as "H:M:S" for storage,
// or as NULL if nil (arrival/departure absent on the first
// or last stop of a trip, per spec.md §3).
func clockPtrString(c *model.ClockTime) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmt.Sprintf("%d:%d:%d", c.Hour, c.Minute, c.Second), Valid: true}
}

// parseClockPtr is the inverse of clockPtrString.
func parseClockPtr(s sql.NullString) *model.ClockTime {
	if !s.Valid || s.String == "" {
		return nil
	}
	parts := strings.Split(s.String, ":")
	if len(parts) != 3 {
		return nil
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec, _ := strconv.Atoi(parts[2])
	return &model.ClockTime{Hour: h, Minute: m, Second: sec}
}

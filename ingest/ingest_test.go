package ingest_test

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lancasterlink/journeyplanner/ingest"
	"github.com/lancasterlink/journeyplanner/storage"
)

func buildZip(t testing.TB, files map[string][]string) []byte {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, lines := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(lines, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestParseSnapshotFullBundle(t *testing.T) {
	buf := buildZip(t, map[string][]string{
		"stops.csv": {
			"stop_code,stop_name,mode,lat,lon,locality_code,hub_score",
			"A,Town Centre,bus,54.05,-2.80,LAN,0.9",
			"B,Station,rail,54.06,-2.79,LAN,0.8",
		},
		"routes.csv": {
			"route_id,operator,route_name,mode",
			"1,Stagecoach,1 Town Centre,bus",
		},
		"timetable.csv": {
			"route_id,stop_code,stop_sequence,arrival_time,departure_time,trip_id,days_of_week,valid_from,valid_to",
			"1,A,1,,08:00:00,t1,1111100,2026-01-01,2026-12-31",
			"1,B,2,08:10:00,,t1,1111100,2026-01-01,2026-12-31",
		},
		"walking_connections.csv": {
			"from_stop,to_stop,walk_minutes,distance_m",
			"A,B,6,450",
		},
	})

	s := storage.NewMemoryStorage()
	w, err := s.GetWriter("test")
	require.NoError(t, err)

	require.NoError(t, ingest.ParseSnapshot(w, buf))

	r, err := s.GetReader("test")
	require.NoError(t, err)

	snap, err := r.Snapshot(nil)
	require.NoError(t, err)

	require.Len(t, snap.Stops, 2)
	require.Len(t, snap.Routes, 1)
	require.Len(t, snap.TimetableEntries, 2)
	require.Len(t, snap.WalkingConnections, 1)
	require.Equal(t, 450.0, snap.WalkingConnections[0].DistanceM)
}

func TestParseSnapshotMissingRequiredFile(t *testing.T) {
	buf := buildZip(t, map[string][]string{
		"routes.csv": {"route_id,operator,route_name,mode", "1,Stagecoach,1 Town Centre,bus"},
	})

	s := storage.NewMemoryStorage()
	w, err := s.GetWriter("test")
	require.NoError(t, err)

	err = ingest.ParseSnapshot(w, buf)
	require.Error(t, err)
}

func TestParseSnapshotWalkingDistanceFallback(t *testing.T) {
	buf := buildZip(t, map[string][]string{
		"stops.csv": {
			"stop_code,stop_name,mode,lat,lon,locality_code,hub_score",
			"A,Town Centre,bus,54.05,-2.80,LAN,0.9",
			"B,Station,rail,54.06,-2.79,LAN,0.8",
		},
		"routes.csv": {
			"route_id,operator,route_name,mode",
			"1,Stagecoach,1 Town Centre,bus",
		},
		"walking_connections.csv": {
			"from_stop,to_stop,walk_minutes,distance_m",
			"A,B,6,",
		},
	})

	s := storage.NewMemoryStorage()
	w, err := s.GetWriter("test")
	require.NoError(t, err)
	require.NoError(t, ingest.ParseSnapshot(w, buf))

	r, err := s.GetReader("test")
	require.NoError(t, err)
	snap, err := r.Snapshot(nil)
	require.NoError(t, err)

	require.Len(t, snap.WalkingConnections, 1)
	require.Greater(t, snap.WalkingConnections[0].DistanceM, 0.0)
}

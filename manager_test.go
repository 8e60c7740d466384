package journeyplanner_test

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	journeyplanner "github.com/lancasterlink/journeyplanner"
	"github.com/lancasterlink/journeyplanner/downloader"
	"github.com/lancasterlink/journeyplanner/model"
	"github.com/lancasterlink/journeyplanner/storage"
)

func buildBundle(t testing.TB, files map[string][]string) []byte {
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

type stubDownloader struct {
	body  []byte
	calls int
}

func (s *stubDownloader) Get(ctx context.Context, url string, headers map[string]string, options downloader.GetOptions) ([]byte, error) {
	s.calls++
	return s.body, nil
}

func sampleBundle(t testing.TB) []byte {
	return buildBundle(t, map[string][]string{
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
	})
}

func TestManagerLoadGraphFetchesOnlyOnce(t *testing.T) {
	s := storage.NewMemoryStorage()
	dl := &stubDownloader{body: sampleBundle(t)}
	m := journeyplanner.NewManager(s, dl)

	g1, err := m.LoadGraph(context.Background(), "https://example.com/network.zip")
	require.NoError(t, err)
	assert.NotNil(t, g1)
	assert.Equal(t, 1, dl.calls)

	g2, err := m.LoadGraph(context.Background(), "https://example.com/network.zip")
	require.NoError(t, err)
	assert.Same(t, g1, g2)
	assert.Equal(t, 1, dl.calls, "second load should reuse the cached snapshot, not refetch")
}

func TestManagerPlanAt(t *testing.T) {
	s := storage.NewMemoryStorage()
	dl := &stubDownloader{body: sampleBundle(t)}
	m := journeyplanner.NewManager(s, dl)

	plans, err := m.PlanAt(context.Background(), "https://example.com/network.zip", model.Query{
		Origin:      "A",
		Destination: "B",
		DepartTime:  model.ClockTime{Hour: 7, Minute: 0},
		MaxResults:  3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, plans)
	assert.Equal(t, "A", plans[0].Legs[0].FromStop)
}

func TestManagerApplyDisruptionsRebuildsGraph(t *testing.T) {
	s := storage.NewMemoryStorage()
	dl := &stubDownloader{body: sampleBundle(t)}
	m := journeyplanner.NewManager(s, dl)
	source := "https://example.com/network.zip"

	_, err := m.LoadGraph(context.Background(), source)
	require.NoError(t, err)

	err = m.ApplyDisruptions(context.Background(), source, []int{1})
	require.NoError(t, err)

	plans, err := m.PlanAt(context.Background(), source, model.Query{
		Origin:      "A",
		Destination: "B",
		DepartTime:  model.ClockTime{Hour: 7, Minute: 0},
		MaxResults:  3,
	})
	require.NoError(t, err)
	assert.Empty(t, plans, "route 1 is the only connection between A and B, so disrupting it should leave no plan")
}

func TestManagerApplyDisruptionsUnknownSource(t *testing.T) {
	s := storage.NewMemoryStorage()
	dl := &stubDownloader{}
	m := journeyplanner.NewManager(s, dl)

	err := m.ApplyDisruptions(context.Background(), "https://never-loaded.example.com", []int{1})
	assert.ErrorIs(t, err, journeyplanner.ErrNoSnapshot)
}

func TestManagerLoadGraphAsyncRequestsThenRefreshFetches(t *testing.T) {
	s := storage.NewMemoryStorage()
	dl := &stubDownloader{body: sampleBundle(t)}
	m := journeyplanner.NewManager(s, dl)
	source := "https://example.com/network.zip"

	graph, err := m.LoadGraphAsync(context.Background(), source, "dashboard", nil)
	assert.Nil(t, graph)
	assert.ErrorIs(t, err, journeyplanner.ErrNoSnapshot)
	assert.Equal(t, 0, dl.calls, "an async request must not fetch synchronously")

	requests, err := s.ListSnapshotRequests(source)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Len(t, requests[0].Consumers, 1)
	assert.Equal(t, "dashboard", requests[0].Consumers[0].Name)
	assert.NotEmpty(t, requests[0].Consumers[0].RequestID)

	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, 1, dl.calls, "refresh should pick up the pending async request")

	graph, err = m.LoadGraphAsync(context.Background(), source, "dashboard", nil)
	require.NoError(t, err)
	require.NotNil(t, graph)
	assert.Equal(t, 2, graph.NumStops())
}

func TestManagerRefreshRefetchesStaleSources(t *testing.T) {
	s := storage.NewMemoryStorage()
	dl := &stubDownloader{body: sampleBundle(t)}
	m := journeyplanner.NewManager(s, dl)
	m.RefreshInterval = 0

	_, err := m.LoadGraph(context.Background(), "https://example.com/network.zip")
	require.NoError(t, err)
	assert.Equal(t, 1, dl.calls)

	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, 2, dl.calls, "zero RefreshInterval means every known source is always stale")
}

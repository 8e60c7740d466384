package disruption_test

import (
	"context"
	"testing"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/lancasterlink/journeyplanner/disruption"
	"github.com/lancasterlink/journeyplanner/downloader"
	"github.com/lancasterlink/journeyplanner/storage"
)

func alertFeed(t testing.TB, routeIDs ...string) []byte {
	version := "2.0"
	incrementality := gtfsproto.FeedHeader_FULL_DATASET
	timestamp := uint64(1700000000)

	entities := []*gtfsproto.FeedEntity{}
	for i, routeID := range routeIDs {
		id := routeID
		entityID := "alert-" + routeID
		entities = append(entities, &gtfsproto.FeedEntity{
			Id: &entityID,
			Alert: &gtfsproto.Alert{
				InformedEntity: []*gtfsproto.EntitySelector{
					{RouteId: &id},
				},
			},
		})
		_ = i
	}

	msg := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: &version,
			Incrementality:      &incrementality,
			Timestamp:           &timestamp,
		},
		Entity: entities,
	}

	buf, err := proto.Marshal(msg)
	require.NoError(t, err)
	return buf
}

func TestParseExtractsDisruptedRoutes(t *testing.T) {
	feed, err := disruption.Parse(alertFeed(t, "12", "45"))
	require.NoError(t, err)

	assert.True(t, feed.DisruptedRouteIDs[12])
	assert.True(t, feed.DisruptedRouteIDs[45])
	assert.False(t, feed.DisruptedRouteIDs[99])
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	version := "3.0"
	msg := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{GtfsRealtimeVersion: &version},
	}
	buf, err := proto.Marshal(msg)
	require.NoError(t, err)

	_, err = disruption.Parse(buf)
	assert.Error(t, err)
}

type stubDownloader struct {
	body []byte
}

func (s *stubDownloader) Get(ctx context.Context, url string, headers map[string]string, options downloader.GetOptions) ([]byte, error) {
	return s.body, nil
}

func TestFetchAndApplyReconcilesDisruptionState(t *testing.T) {
	s := storage.NewMemoryStorage()
	w, err := s.GetWriter("snap1")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, s.SetDisrupted("snap1", 7, true))

	dl := &stubDownloader{body: alertFeed(t, "12")}

	feed, err := disruption.FetchAndApply(context.Background(), dl, s, "snap1", "https://example.com/alerts.pb")
	require.NoError(t, err)
	assert.True(t, feed.DisruptedRouteIDs[12])

	disrupted, err := s.ListDisruptedRouteIDs("snap1")
	require.NoError(t, err)
	assert.Equal(t, []int{12}, disrupted)
}

// Package disruption parses a GTFS-Realtime feed's Alert entities and
// turns them into the set of disrupted route ids spec.md §3 expects
// on a Snapshot. It is a boundary collaborator (spec.md §6): the core
// never imports this package or the protobuf bindings it depends on.
package disruption

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/lancasterlink/journeyplanner/downloader"
	"github.com/lancasterlink/journeyplanner/storage"
)

// CacheTTL is how long FetchAndApply lets a caching Downloader (such
// as downloader.Filesystem) reuse a previously fetched feed body
// instead of re-polling the alerts endpoint.
const CacheTTL = 2 * time.Minute

// Feed is the outcome of parsing one GTFS-Realtime alerts feed: the
// set of route ids an Alert entity names as affected, regardless of
// the alert's cause or severity — spec.md's Snapshot only tracks
// whether a route is disrupted, not why.
type Feed struct {
	Timestamp        uint64
	DisruptedRouteIDs map[int]bool
}

// Parse unmarshals a single GTFS-Realtime FeedMessage and extracts
// the disrupted route ids from its Alert entities. Alerts that name a
// trip or a stop but no route are ignored — spec.md's disruption
// model only operates at route granularity.
func Parse(feed []byte) (*Feed, error) {
	f := &gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(feed, f); err != nil {
		return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
	}

	header := f.GetHeader()
	version := header.GetGtfsRealtimeVersion()
	if version != "2.0" && version != "1.0" {
		return nil, fmt.Errorf("version %s not supported", version)
	}

	out := &Feed{
		Timestamp:        header.GetTimestamp(),
		DisruptedRouteIDs: map[int]bool{},
	}

	for _, entity := range f.GetEntity() {
		alert := entity.GetAlert()
		if alert == nil {
			continue
		}

		for _, informed := range alert.GetInformedEntity() {
			routeID := informed.GetRouteId()
			if routeID == "" {
				continue
			}
			id, err := strconv.Atoi(routeID)
			if err != nil {
				return nil, fmt.Errorf("alert references non-integer route_id %q: %w", routeID, err)
			}
			out.DisruptedRouteIDs[id] = true
		}
	}

	return out, nil
}

// FetchAndApply downloads the disruption feed at url via dl, parses
// it, and reconciles s's stored disruption state for snapshotHash so
// that exactly the routes named by the feed are marked disrupted —
// any previously-disrupted route absent from the new feed is cleared.
func FetchAndApply(ctx context.Context, dl downloader.Downloader, s storage.Storage, snapshotHash, url string) (*Feed, error) {
	body, err := dl.Get(ctx, url, nil, downloader.GetOptions{Cache: true, CacheTTL: CacheTTL})
	if err != nil {
		return nil, fmt.Errorf("downloading disruption feed: %w", err)
	}

	feed, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing disruption feed: %w", err)
	}

	previouslyDisrupted, err := s.ListDisruptedRouteIDs(snapshotHash)
	if err != nil {
		return nil, fmt.Errorf("listing previously disrupted routes: %w", err)
	}

	for routeID := range feed.DisruptedRouteIDs {
		if err := s.SetDisrupted(snapshotHash, routeID, true); err != nil {
			return nil, fmt.Errorf("marking route %d disrupted: %w", routeID, err)
		}
	}

	for _, routeID := range previouslyDisrupted {
		if !feed.DisruptedRouteIDs[routeID] {
			if err := s.SetDisrupted(snapshotHash, routeID, false); err != nil {
				return nil, fmt.Errorf("clearing disruption for route %d: %w", routeID, err)
			}
		}
	}

	return feed, nil
}

package journeyplanner

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lancasterlink/journeyplanner/downloader"
	"github.com/lancasterlink/journeyplanner/ingest"
	"github.com/lancasterlink/journeyplanner/model"
	"github.com/lancasterlink/journeyplanner/storage"
)

// DefaultRefreshInterval is how often Refresh re-fetches a snapshot
// source whose data may have gone stale.
const DefaultRefreshInterval = 12 * time.Hour

var ErrNoSnapshot = errors.New("no snapshot available for source")

// Manager loads transport-network Snapshots from storage (fetching
// and ingesting them on first use), builds the resulting Graph, and
// caches it so repeated Plan calls don't pay the BuildGraph cost
// every time. Grounded on tidbyt-gtfs/manager.go's
// LoadStatic/Refresh/refreshFeeds shape, adapted to Snapshot ingest
// instead of GTFS static feed parsing.
type Manager struct {
	RefreshInterval time.Duration

	// Headers (header name to value) are sent with every fetch, for
	// every source, for callers behind an API key or auth token.
	Headers map[string]string

	storage    storage.Storage
	downloader downloader.Downloader

	mu     sync.Mutex
	graphs map[string]*Graph // keyed by source
	hashes map[string]string // source -> snapshot hash backing the cached graph
}

func NewManager(s storage.Storage, dl downloader.Downloader) *Manager {
	return &Manager{
		RefreshInterval: DefaultRefreshInterval,
		storage:         s,
		downloader:      dl,
		graphs:          map[string]*Graph{},
		hashes:          map[string]string{},
	}
}

// LoadGraph returns the Graph for source, fetching and ingesting it
// first if storage has never seen this source before.
func (m *Manager) LoadGraph(ctx context.Context, source string) (*Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots, err := m.storage.ListSnapshots(storage.ListSnapshotsFilter{Source: source})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	if len(snapshots) == 0 {
		metadata, err := m.fetchAndIngest(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", source, err)
		}
		return m.buildAndCacheLocked(source, metadata.Hash)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].RetrievedAt.After(snapshots[j].RetrievedAt)
	})
	latest := snapshots[0]

	if cached, ok := m.graphs[source]; ok && m.hashes[source] == latest.Hash {
		return cached, nil
	}

	return m.buildAndCacheLocked(source, latest.Hash)
}

// LoadGraphAsync mirrors LoadGraph, except that when source has never
// been fetched before it does not block on the download: it records a
// SnapshotRequest noting that consumer asked for it (deduplicated by
// consumer name, with a fresh RequestID per ask so repeated calls from
// the same consumer don't pile up distinct rows) and returns
// ErrNoSnapshot immediately. A later call to Refresh notices the
// request has no snapshot behind it yet and fetches it, same as the
// teacher's LoadStaticAsync/refreshFeeds split between a synchronous
// and a fire-and-poll-later load path.
func (m *Manager) LoadGraphAsync(ctx context.Context, source, consumer string, headers map[string]string) (*Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots, err := m.storage.ListSnapshots(storage.ListSnapshotsFilter{Source: source})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	if len(snapshots) == 0 {
		if err := m.recordSnapshotRequest(source, consumer, headers); err != nil {
			return nil, err
		}
		return nil, ErrNoSnapshot
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].RetrievedAt.After(snapshots[j].RetrievedAt)
	})
	latest := snapshots[0]

	if cached, ok := m.graphs[source]; ok && m.hashes[source] == latest.Hash {
		return cached, nil
	}

	return m.buildAndCacheLocked(source, latest.Hash)
}

func (m *Manager) recordSnapshotRequest(source, consumer string, headers map[string]string) error {
	requests, err := m.storage.ListSnapshotRequests(source)
	if err != nil {
		return fmt.Errorf("listing snapshot requests: %w", err)
	}

	now := time.Now()
	req := storage.SnapshotRequest{Source: source, RefreshedAt: now}
	if len(requests) > 0 {
		req = requests[0]
		req.RefreshedAt = now
	}

	found := false
	for i, c := range req.Consumers {
		if c.Name == consumer {
			req.Consumers[i].RequestID = uuid.NewString()
			req.Consumers[i].UpdatedAt = now
			found = true
			break
		}
	}
	if !found {
		req.Consumers = append(req.Consumers, storage.SnapshotConsumer{
			Name:      consumer,
			RequestID: uuid.NewString(),
			Headers:   encodeHeaders(headers),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	return m.storage.WriteSnapshotRequest(req)
}

// Refresh re-fetches every source storage has ever seen whose most
// recent snapshot is older than RefreshInterval, and fetches (for the
// first time) every source with a pending LoadGraphAsync request and
// no snapshot yet. Grounded on tidbyt-gtfs/manager.go's Refresh, which
// likewise lists every known feed from storage rather than only the
// in-process cache, so a freshly-started process still refreshes
// sources a previous run ingested.
func (m *Manager) Refresh(ctx context.Context) error {
	all, err := m.storage.ListSnapshots(storage.ListSnapshotsFilter{})
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}
	seen := map[string]bool{}
	sources := make([]string, 0, len(all))
	for _, snap := range all {
		if !seen[snap.Source] {
			seen[snap.Source] = true
			sources = append(sources, snap.Source)
		}
	}

	for _, source := range sources {
		if err := m.refreshSource(ctx, source); err != nil {
			return fmt.Errorf("refreshing %s: %w", source, err)
		}
	}

	pending, err := m.storage.ListSnapshotRequests("")
	if err != nil {
		return fmt.Errorf("listing snapshot requests: %w", err)
	}
	for _, req := range pending {
		snapshots, err := m.storage.ListSnapshots(storage.ListSnapshotsFilter{Source: req.Source})
		if err != nil {
			return fmt.Errorf("listing snapshots: %w", err)
		}
		if len(snapshots) > 0 {
			continue
		}
		if _, err := m.fetchAndIngest(ctx, req.Source); err != nil {
			return fmt.Errorf("fetching requested %s: %w", req.Source, err)
		}
	}
	return nil
}

func (m *Manager) refreshSource(ctx context.Context, source string) error {
	snapshots, err := m.storage.ListSnapshots(storage.ListSnapshotsFilter{Source: source})
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[j].RetrievedAt.Before(snapshots[i].RetrievedAt)
	})
	mostRecent := snapshots[0]

	if time.Since(mostRecent.RetrievedAt) < m.RefreshInterval {
		return nil
	}

	metadata, err := m.fetchAndIngest(ctx, source)
	if err != nil {
		return fmt.Errorf("fetching: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, err = m.buildAndCacheLocked(source, metadata.Hash)
	return err
}

// encodeHeaders flattens headers into the single string column
// SnapshotConsumer.Headers, "key:value" pairs joined by commas, so a
// later async fetch can reconstruct the request headers that consumer
// needs.
func encodeHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(headers))
	for k, v := range headers {
		pairs = append(pairs, k+":"+v)
	}
	sort.Strings(pairs)
	encoded := ""
	for i, p := range pairs {
		if i > 0 {
			encoded += ","
		}
		encoded += p
	}
	return encoded
}

// ApplyDisruptions rebuilds the cached Graph for source from the
// snapshot currently backing it, with disruptedRouteIDs as its
// disruption set. It fetches and parses nothing itself: the caller
// obtains the route ids (for example via package disruption), which
// keeps this package free of the gtfs-realtime-bindings dependency.
func (m *Manager) ApplyDisruptions(ctx context.Context, source string, disruptedRouteIDs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, ok := m.hashes[source]
	if !ok {
		return ErrNoSnapshot
	}

	reader, err := m.storage.GetReader(hash)
	if err != nil {
		return fmt.Errorf("getting reader: %w", err)
	}
	snapshot, err := reader.Snapshot(disruptedRouteIDs)
	if err != nil {
		return fmt.Errorf("assembling snapshot: %w", err)
	}

	m.graphs[source] = BuildGraph(snapshot)
	return nil
}

func (m *Manager) buildAndCache(source, hash string) (*Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildAndCacheLocked(source, hash)
}

func (m *Manager) buildAndCacheLocked(source, hash string) (*Graph, error) {
	reader, err := m.storage.GetReader(hash)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	disrupted, err := m.storage.ListDisruptedRouteIDs(hash)
	if err != nil {
		return nil, fmt.Errorf("listing disrupted routes: %w", err)
	}

	snapshot, err := reader.Snapshot(disrupted)
	if err != nil {
		return nil, fmt.Errorf("assembling snapshot: %w", err)
	}

	graph := BuildGraph(snapshot)
	m.graphs[source] = graph
	m.hashes[source] = hash
	return graph, nil
}

// fetchAndIngest downloads source, hashes the body, and if that exact
// content hasn't been ingested before, parses it into storage.
func (m *Manager) fetchAndIngest(ctx context.Context, source string) (*storage.SnapshotMetadata, error) {
	body, err := m.downloader.Get(ctx, source, m.Headers, downloader.GetOptions{Timeout: 60 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(body))

	existing, err := m.storage.ListSnapshots(storage.ListSnapshotsFilter{Hash: hash})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	now := time.Now()
	if len(existing) > 0 {
		meta := existing[0]
		meta.Source = source
		meta.UpdatedAt = now
		if err := m.storage.WriteSnapshotMetadata(meta); err != nil {
			return nil, fmt.Errorf("writing metadata: %w", err)
		}
		return meta, nil
	}

	writer, err := m.storage.GetWriter(hash)
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}

	if err := ingest.ParseSnapshot(writer, body); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	metadata := &storage.SnapshotMetadata{
		Source:      source,
		Hash:        hash,
		RetrievedAt: now,
		UpdatedAt:   now,
	}
	if err := m.storage.WriteSnapshotMetadata(metadata); err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	return metadata, nil
}

// Storage returns the Storage backend this Manager reads and writes,
// for callers (such as the disrupt CLI command) that need direct
// access to disruption-state mutators not exposed on Manager itself.
func (m *Manager) Storage() storage.Storage {
	return m.storage
}

// SnapshotHash returns the snapshot hash currently backing source, if
// any has been loaded yet.
func (m *Manager) SnapshotHash(source string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, ok := m.hashes[source]
	return hash, ok
}

// PlanAt runs Plan against the Graph currently cached for source,
// loading it first if necessary.
func (m *Manager) PlanAt(ctx context.Context, source string, query model.Query) ([]model.JourneyPlan, error) {
	graph, err := m.LoadGraph(ctx, source)
	if err != nil {
		return nil, err
	}
	return Plan(graph, query), nil
}

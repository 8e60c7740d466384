package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lancasterlink/journeyplanner/disruption"
	"github.com/lancasterlink/journeyplanner/downloader"
)

var disruptCmd = &cobra.Command{
	Use:   "disrupt <route_id>",
	Short: "Marks or clears a route as disrupted for the current --source snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  disrupt,
}

var (
	disruptionURL string
	clear         bool
)

func init() {
	disruptCmd.Flags().StringVarP(&disruptionURL, "feed-url", "", "", "GTFS-Realtime alerts feed URL (reconciles against the feed instead of applying a single route id)")
	disruptCmd.Flags().BoolVarP(&clear, "clear", "", false, "Clear the disruption instead of setting it")
}

func disrupt(cmd *cobra.Command, args []string) error {
	if sourceURL == "" {
		return fmt.Errorf("--source is required")
	}

	manager, err := newManager()
	if err != nil {
		return err
	}
	s := manager.Storage()

	ctx := context.Background()
	if _, err := manager.LoadGraph(ctx, sourceURL); err != nil {
		return err
	}

	hash, ok := manager.SnapshotHash(sourceURL)
	if !ok {
		return fmt.Errorf("no snapshot loaded for %s", sourceURL)
	}

	if disruptionURL != "" {
		fs, err := downloader.NewFilesystem("./disruption-cache.json")
		if err != nil {
			return fmt.Errorf("creating disruption cache: %w", err)
		}

		feed, err := disruption.FetchAndApply(ctx, fs, s, hash, disruptionURL)
		if err != nil {
			return err
		}
		if err := manager.ApplyDisruptions(ctx, sourceURL, routeIDSlice(feed.DisruptedRouteIDs)); err != nil {
			return err
		}
		fmt.Printf("applied feed: %d route(s) disrupted\n", len(feed.DisruptedRouteIDs))
		return nil
	}

	routeID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid route id %q: %w", args[0], err)
	}

	if err := s.SetDisrupted(hash, routeID, !clear); err != nil {
		return err
	}

	disrupted, err := s.ListDisruptedRouteIDs(hash)
	if err != nil {
		return err
	}
	if err := manager.ApplyDisruptions(ctx, sourceURL, disrupted); err != nil {
		return err
	}

	if clear {
		fmt.Printf("route %d no longer disrupted\n", routeID)
	} else {
		fmt.Printf("route %d marked disrupted\n", routeID)
	}

	return nil
}

func routeIDSlice(set map[int]bool) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

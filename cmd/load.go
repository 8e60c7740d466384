package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	journeyplanner "github.com/lancasterlink/journeyplanner"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Fetches and ingests the --source snapshot bundle, then reports its size",
	Args:  cobra.NoArgs,
	RunE:  load,
}

var (
	asyncLoad    bool
	loadConsumer string
)

func init() {
	loadCmd.Flags().BoolVarP(&asyncLoad, "async", "", false, "Request the snapshot without blocking on the fetch; a later 'refresh' picks it up")
	loadCmd.Flags().StringVarP(&loadConsumer, "consumer", "", "cli", "Consumer name recorded against an --async request")
}

func load(cmd *cobra.Command, args []string) error {
	if sourceURL == "" {
		return fmt.Errorf("--source is required")
	}

	manager, err := newManager()
	if err != nil {
		return err
	}

	parsedHeaders, err := parseHeaders(headers)
	if err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}

	ctx := context.Background()

	if asyncLoad {
		graph, err := manager.LoadGraphAsync(ctx, sourceURL, loadConsumer, parsedHeaders)
		if err == journeyplanner.ErrNoSnapshot {
			fmt.Println("requested, not yet available: run 'refresh' then 'load' again")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("loaded %d stops, %d routes\n", graph.NumStops(), graph.NumRoutes())
		return nil
	}

	graph, err := manager.LoadGraph(ctx, sourceURL)
	if err != nil {
		return err
	}

	fmt.Printf("loaded %d stops, %d routes\n", graph.NumStops(), graph.NumRoutes())

	return nil
}

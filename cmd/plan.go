package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lancasterlink/journeyplanner/model"
)

var planCmd = &cobra.Command{
	Use:   "plan <origin_stop> <destination_stop>",
	Short: "Plans up to --results journeys between two stops",
	Args:  cobra.ExactArgs(2),
	RunE:  plan,
}

var (
	departAt string
	results  int
)

func init() {
	planCmd.Flags().StringVarP(&departAt, "depart-at", "t", "", "Departure time HH:MM (defaults to now)")
	planCmd.Flags().IntVarP(&results, "results", "n", 3, "Number of alternative plans to return")
}

func plan(cmd *cobra.Command, args []string) error {
	if sourceURL == "" {
		return fmt.Errorf("--source is required")
	}

	depart, err := parseDepartTime(departAt)
	if err != nil {
		return err
	}

	manager, err := newManager()
	if err != nil {
		return err
	}

	plans, err := manager.PlanAt(context.Background(), sourceURL, model.Query{
		Origin:      args[0],
		Destination: args[1],
		DepartTime:  depart,
		MaxResults:  results,
	})
	if err != nil {
		return err
	}

	if len(plans) == 0 {
		fmt.Println("no journeys found")
		return nil
	}

	for i, p := range plans {
		fmt.Printf("option %d: depart %s, arrive %s, %d transfer(s), cost %.1f\n",
			i+1, p.Departure(), p.Arrival(), p.NumTransfers, p.TotalCost)
		for _, leg := range p.Legs {
			if leg.RouteID == nil {
				fmt.Printf("  walk %s -> %s (%s - %s)\n", leg.FromStop, leg.ToStop, leg.Departure, leg.Arrival)
			} else {
				fmt.Printf("  route %d: %s -> %s (%s - %s)\n", *leg.RouteID, leg.FromStop, leg.ToStop, leg.Departure, leg.Arrival)
			}
		}
	}

	return nil
}

func parseDepartTime(s string) (model.ClockTime, error) {
	if s == "" {
		return model.NowClockTime(time.Now()), nil
	}
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return model.ClockTime{}, fmt.Errorf("invalid --depart-at %q, want HH:MM: %w", s, err)
	}
	return model.ClockTime{Hour: hour, Minute: minute}, nil
}

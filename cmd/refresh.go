package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetches any stale or async-requested snapshot sources known to storage",
	Args:  cobra.NoArgs,
	RunE:  refresh,
}

func refresh(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	if err := manager.Refresh(context.Background()); err != nil {
		return err
	}

	fmt.Println("refresh complete")
	return nil
}

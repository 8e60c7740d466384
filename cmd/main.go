package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	journeyplanner "github.com/lancasterlink/journeyplanner"
	"github.com/lancasterlink/journeyplanner/downloader"
	"github.com/lancasterlink/journeyplanner/storage"
)

var rootCmd = &cobra.Command{
	Use:          "journeyplanner",
	Short:        "Lancasterlink journey planner tool",
	Long:         "Loads a transport-network snapshot and plans journeys across it",
	SilenceUsage: true,
}

var (
	sourceURL  string
	headers    []string
	sqliteDir  string
	postgresDB string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&sourceURL, "source", "", "", "Snapshot bundle URL or file path")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "", []string{}, "HTTP header for fetching --source")
	rootCmd.PersistentFlags().StringVarP(&sqliteDir, "sqlite-dir", "", ".", "Directory for on-disk SQLite storage")
	rootCmd.PersistentFlags().StringVarP(&postgresDB, "postgres", "", "", "Postgres connection string (overrides SQLite storage)")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(disruptCmd)
	rootCmd.AddCommand(refreshCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func parseHeaders(raw []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range raw {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

func newStorage() (storage.Storage, error) {
	if postgresDB != "" {
		return storage.NewPSQLStorage(postgresDB, false)
	}
	return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: sqliteDir})
}

func newDownloader() downloader.Downloader {
	return downloader.NewMemory()
}

// newManager builds a Manager wired to the persistent --source header
// flags, so every subcommand sends the same request headers.
func newManager() (*journeyplanner.Manager, error) {
	s, err := newStorage()
	if err != nil {
		return nil, err
	}

	parsedHeaders, err := parseHeaders(headers)
	if err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	m := journeyplanner.NewManager(s, newDownloader())
	if len(parsedHeaders) > 0 {
		m.Headers = parsedHeaders
	}
	return m, nil
}

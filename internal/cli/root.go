// Package cli implements the change-correlator CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rcliao/change-correlator/internal/store"
	"github.com/spf13/cobra"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "change-correlator",
	Short: "Correlate incidents to changes with LLM-based filtering",
	Long: "Correlates change and incident event streams within a sliding time window,\n" +
		"using an LLM to filter noise titles and confirm causal pairs.\n" +
		"Classifier verdicts are cached in SQLite across runs.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Cache database path (default: $CHANGE_CORRELATOR_DB or ~/.change-correlator/cache.db)")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("CHANGE_CORRELATOR_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".change-correlator", "cache.db")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

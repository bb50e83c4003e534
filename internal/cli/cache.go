package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the classification cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Run:   runCacheStats,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached classification verdicts",
		Run:   runCacheClear,
	}
	clearCmd.Flags().StringP("kind", "k", "", "Only clear one kind: change_noise, incident_noise, or causality")

	cacheCmd.AddCommand(statsCmd, clearCmd)
	RootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), getDBPath())
	if err != nil {
		exitErr("cache stats", err)
	}

	b, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(b))
}

func runCacheClear(cmd *cobra.Command, args []string) {
	kind, _ := cmd.Flags().GetString("kind")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.ClearClassifications(cmd.Context(), kind)
	if err != nil {
		exitErr("cache clear", err)
	}

	fmt.Printf(`{"ok":true,"cleared":%d}`+"\n", n)
}

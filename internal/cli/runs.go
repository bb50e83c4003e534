package cli

import (
	"encoding/json"
	"fmt"

	"github.com/rcliao/change-correlator/internal/report"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded correlation runs",
		Long:  "List recorded runs, or show one run's pre-causality candidate counts by ID.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runRuns,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runRuns(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if len(args) == 1 {
		pairs, err := s.RawPairs(cmd.Context(), args[0])
		if err != nil {
			exitErr("runs", err)
		}
		b, _ := json.MarshalIndent(report.Build(pairs), "", "  ")
		fmt.Println(string(b))
		return
	}

	runs, err := s.ListRuns(cmd.Context(), limit)
	if err != nil {
		exitErr("runs", err)
	}

	b, _ := json.MarshalIndent(runs, "", "  ")
	fmt.Println(string(b))
}

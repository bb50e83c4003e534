package cli

import (
	"fmt"
	"time"

	"github.com/rcliao/change-correlator/internal/classify"
	"github.com/rcliao/change-correlator/internal/pipeline"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Run the correlation pipeline",
		Long: "Correlate changes to incidents: ingest both CSVs, drop noise titles,\n" +
			"count in-window matches per (incident, change) title pair, confirm\n" +
			"causality, and write the final counts as JSON.",
		Run: runCorrelate,
	}

	cmd.Flags().String("changes", "", "Changes CSV path (required)")
	cmd.Flags().String("incidents", "", "Incidents CSV path (required)")
	cmd.Flags().StringP("output", "o", "", "Output JSON path (required)")
	cmd.Flags().IntP("window-minutes", "w", 60, "Correlation window in minutes")
	cmd.Flags().StringP("model", "m", "gpt-4o-mini", "Classifier model name")
	cmd.Flags().Int("workers", 0, "Partition workers (0 = number of CPUs)")
	cmd.Flags().Bool("skip-causality", false, "Skip the causality pass and output raw candidate counts")

	cmd.MarkFlagRequired("changes")
	cmd.MarkFlagRequired("incidents")
	cmd.MarkFlagRequired("output")

	RootCmd.AddCommand(cmd)
}

func runCorrelate(cmd *cobra.Command, args []string) {
	changesPath, _ := cmd.Flags().GetString("changes")
	incidentsPath, _ := cmd.Flags().GetString("incidents")
	outputPath, _ := cmd.Flags().GetString("output")
	windowMinutes, _ := cmd.Flags().GetInt("window-minutes")
	modelName, _ := cmd.Flags().GetString("model")
	workers, _ := cmd.Flags().GetInt("workers")
	skipCausality, _ := cmd.Flags().GetBool("skip-causality")

	cfg := pipeline.Config{
		ChangesPath:   changesPath,
		IncidentsPath: incidentsPath,
		OutputPath:    outputPath,
		Window:        time.Duration(windowMinutes) * time.Minute,
		Model:         modelName,
		Workers:       workers,
		SkipCausality: skipCausality,
	}
	if err := cfg.Validate(); err != nil {
		exitErr("config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	inner, err := classify.NewOpenAI(modelName)
	if err != nil {
		exitErr("classifier", err)
	}
	classifier := classify.NewCached(inner, s, modelName)

	res, err := pipeline.Run(cmd.Context(), cfg, classifier, s)
	if err != nil {
		exitErr("correlate", err)
	}

	fmt.Printf("Done: wrote %d causal pairs to %s (run %s)\n",
		res.CausalPairs, outputPath, res.RunID)
}

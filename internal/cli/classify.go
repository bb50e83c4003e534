package cli

import (
	"encoding/json"
	"fmt"

	"github.com/rcliao/change-correlator/internal/classify"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "classify [title]",
		Short: "Classify a single title or pair",
		Long: "Call the classifier directly, through the same cache the pipeline uses.\n" +
			"With --pair, the two args are an incident title and a change title.",
		Args: cobra.MinimumNArgs(1),
		Run:  runClassify,
	}

	cmd.Flags().StringP("kind", "k", "change", "Title kind: change or incident")
	cmd.Flags().Bool("pair", false, "Classify an (incident, change) pair for causality")
	cmd.Flags().StringP("model", "m", "gpt-4o-mini", "Classifier model name")

	RootCmd.AddCommand(cmd)
}

func runClassify(cmd *cobra.Command, args []string) {
	kind, _ := cmd.Flags().GetString("kind")
	pair, _ := cmd.Flags().GetBool("pair")
	modelName, _ := cmd.Flags().GetString("model")

	if pair && len(args) != 2 {
		exitErr("classify", fmt.Errorf("--pair requires exactly two args: incident title, change title"))
	}
	if !pair && kind != string(classify.KindChange) && kind != string(classify.KindIncident) {
		exitErr("classify", fmt.Errorf("invalid kind %q (use change or incident)", kind))
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

	out := map[string]string{}
	if pair {
		label, err := classifier.ClassifyPair(cmd.Context(), args[0], args[1])
		if err != nil {
			exitErr("classify", err)
		}
		out["incident_title"] = args[0]
		out["change_title"] = args[1]
		out["label"] = string(label)
	} else {
		label, err := classifier.ClassifyTitle(cmd.Context(), classify.TitleKind(kind), args[0])
		if err != nil {
			exitErr("classify", err)
		}
		out["kind"] = kind
		out["title"] = args[0]
		out["label"] = string(label)
	}

	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}

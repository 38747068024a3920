package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/priority"
	"github.com/linnemanlabs/sift/internal/trainer"
)

var (
	trainDataset string
	trainModel   string
	trainJSON    bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the priority model and save it",
	Long: `Fits a fresh priority model from a labeled CSV (title, description,
priority) and writes it to the model path. Without --dataset the built-in
sample tickets are used.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVarP(&trainDataset, "dataset", "d", "", "labeled CSV to train from (empty = built-in sample)")
	trainCmd.Flags().StringVarP(&trainModel, "model", "m", DefaultModelPath, "file to write the trained model to")
	trainCmd.Flags().BoolVar(&trainJSON, "json", false, "output the training report as JSON")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, _ []string) error {
	if trainModel == "" {
		return fmt.Errorf("--model is required")
	}

	tr := trainer.New(priority.New(priority.Config{}), trainer.Options{
		DatasetPath: trainDataset,
		ModelPath:   trainModel,
		Logger:      log.Nop(),
	})
	rep, err := tr.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if trainJSON {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Trained on %d tickets from %s\n", rep.Examples, rep.Source)
	for _, p := range label.Priorities() {
		if n, ok := rep.ClassCounts[p.String()]; ok {
			cmd.Printf("  %-8s %d\n", p.String(), n)
		}
	}
	cmd.Printf("Vocabulary: %d terms\n", rep.VocabularySize)
	cmd.Printf("Model saved to %s\n", rep.ModelPath)
	return nil
}

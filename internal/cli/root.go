// Package cli implements the sift command line: offline model training and
// one-off ticket classification against a saved model.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// DefaultModelPath matches the server's -model-path default.
const DefaultModelPath = "data/priority_model.bin"

var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "Classify IT support tickets by priority and team",
	Long: `sift trains a TF-IDF + logistic regression priority model from labeled
tickets and uses it, together with keyword routing, to classify new tickets.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

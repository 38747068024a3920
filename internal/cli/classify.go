package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/priority"
	"github.com/linnemanlabs/sift/internal/routing"
	"github.com/linnemanlabs/sift/internal/textproc"
	"github.com/linnemanlabs/sift/internal/triage"
)

var (
	classifyModel string
	classifyDesc  string
	classifyJSON  bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [title]",
	Short: "Classify a ticket with a saved model",
	Long: `Loads the saved priority model and prints the predicted priority and
the team the ticket routes to. Nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

type classifyResult struct {
	Title    string         `json:"title"`
	Priority label.Priority `json:"priority"`
	Team     label.Team     `json:"team"`
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyModel, "model", "m", DefaultModelPath, "saved model file")
	classifyCmd.Flags().StringVarP(&classifyDesc, "description", "d", "", "ticket description")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	title := args[0]
	if err := triage.Validate(title, classifyDesc); err != nil {
		return err
	}

	cls := priority.New(priority.Config{})
	if err := cls.Load(classifyModel); err != nil {
		if errors.Is(err, priority.ErrModelNotFound) {
			return fmt.Errorf("no model at %s, run 'sift train' first", classifyModel)
		}
		return fmt.Errorf("load model: %w", err)
	}

	text := textproc.Combine(title, classifyDesc)
	p, err := cls.Predict(text)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	res := classifyResult{Title: title, Priority: p, Team: routing.Assign(text)}

	if classifyJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Priority: %s\n", res.Priority)
	cmd.Printf("Team:     %s\n", res.Team)
	return nil
}

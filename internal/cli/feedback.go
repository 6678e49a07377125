package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var feedbackTimeout time.Duration

// feedbackCmd represents the feedback command
var feedbackCmd = &cobra.Command{
	Use:   "feedback <claim-id> <comment>",
	Short: "Record feedback on a claim and re-verify it",
	Long: `Feedback attaches a comment to a claim (a dispute, a correction, new
context) and forces a fresh verification so the verdict reflects it.

Example:
  crisisguard feedback 6f1c9be2-... "the cited study was retracted"`,
	Args: cobra.ExactArgs(2),
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().DurationVar(&feedbackTimeout, "timeout", 3*time.Minute, "overall timeout")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
	defer cancel()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	v, err := a.pipeline.Feedback(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(v)
}

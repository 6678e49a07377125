package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	verifyForce   bool
	verifyTimeout time.Duration
	verifyHistory bool
	verifySimilar int
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim-id>",
	Short: "Retrieve evidence and produce a cited verdict for a claim",
	Long: `Verify retrieves external evidence for a stored claim and reasons over
it to produce a verdict with a harm score, a recommended action, and
citations drawn strictly from the retrieved evidence.

A recent verdict is reused unless --force is set. Only one verification
runs per claim at a time.

Example:
  crisisguard verify 6f1c9be2-...
  crisisguard verify 6f1c9be2-... --force
  crisisguard verify 6f1c9be2-... --history`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVar(&verifyForce, "force", false, "re-verify even when a recent verdict exists")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 3*time.Minute, "overall verification timeout")
	verifyCmd.Flags().BoolVar(&verifyHistory, "history", false, "print the full verdict history instead of verifying")
	verifyCmd.Flags().IntVar(&verifySimilar, "similar", 0, "also print the N most similar indexed claims")
}

func runVerify(cmd *cobra.Command, args []string) error {
	claimID := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if verifyHistory {
		history, err := a.store.VerdictHistory(ctx, claimID)
		if err != nil {
			return err
		}
		return printJSON(history)
	}

	v, err := a.pipeline.Verify(ctx, claimID, verifyForce)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ %s (confidence %.2f, harm %d, action %s)\n",
			v.Verdict, v.Confidence, v.HarmScore, v.Action)
	}

	if verifySimilar > 0 {
		similar, err := a.pipeline.FindSimilar(ctx, claimID, verifySimilar)
		if err != nil {
			return err
		}
		return printJSON(struct {
			Verdict any `json:"verdict"`
			Similar any `json:"similar_claims"`
		}{v, similar})
	}
	return printJSON(v)
}

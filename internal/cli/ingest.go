package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crisisguard/crisisguard/internal/pipeline"
)

var (
	ingestSource     string
	ingestSourceType string
	ingestTimeout    time.Duration
	ingestVerify     bool
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [text]",
	Short: "Submit text and extract a verifiable claim",
	Long: `Ingest runs claim detection over a submission. When a verifiable claim
is found it is persisted, embedded, and indexed for similarity search and
clustering. Text is read from the argument, or from stdin when omitted.

Example:
  crisisguard ingest "Drinking bleach cures covid" --source twitter --source-type social
  cat post.txt | crisisguard ingest
  crisisguard ingest "5G towers spread viruses" --verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "origin of the submission (url, handle, feed)")
	ingestCmd.Flags().StringVar(&ingestSourceType, "source-type", "manual", "source type (social, news, web, manual)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 2*time.Minute, "overall ingest timeout")
	ingestCmd.Flags().BoolVar(&ingestVerify, "verify", false, "verify the claim immediately after ingest")
}

func runIngest(cmd *cobra.Command, args []string) error {
	text, err := submissionText(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	claim, err := a.pipeline.Ingest(ctx, pipeline.IngestRequest{
		Text:       text,
		Source:     ingestSource,
		SourceType: ingestSourceType,
	})
	if errors.Is(err, pipeline.ErrNoClaimDetected) {
		fmt.Fprintln(os.Stderr, "No verifiable claim detected in submission")
		return err
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Claim %s (%s, confidence %.2f)\n",
			claim.ID, claim.ClaimType, claim.Confidence)
	}

	if !ingestVerify {
		return printJSON(claim)
	}

	v, err := a.pipeline.Verify(ctx, claim.ID, false)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}
	return printJSON(struct {
		Claim   any `json:"claim"`
		Verdict any `json:"verdict"`
	}{claim, v})
}

func submissionText(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

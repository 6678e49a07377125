package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var reconcileTimeout time.Duration

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Backfill missing embeddings and repair the vector index",
	Long: `Reconcile computes embeddings for claims that missed theirs during
ingest (for example during an embedding outage) and re-seats stored
vectors the index lost. Safe to run repeatedly, typically from cron.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().DurationVar(&reconcileTimeout, "timeout", 10*time.Minute, "overall reconcile timeout")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.pipeline.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Index holds %d vectors\n", a.index.Len())
	}
	return nil
}

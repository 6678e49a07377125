package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crisisguard/crisisguard/internal/pipeline"
)

var (
	clustersRefresh  bool
	clustersTrending bool
	clustersTimeout  time.Duration
)

// clustersCmd represents the clusters command
var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List or recompute claim clusters",
	Long: `Clusters groups recent claims by semantic similarity to surface
narratives spreading across sources. By default the latest stored
generation is printed; --refresh recomputes it first.

Example:
  crisisguard clusters
  crisisguard clusters --refresh
  crisisguard clusters --trending`,
	RunE: runClusters,
}

func init() {
	rootCmd.AddCommand(clustersCmd)

	clustersCmd.Flags().BoolVar(&clustersRefresh, "refresh", false, "recompute the cluster generation before listing")
	clustersCmd.Flags().BoolVar(&clustersTrending, "trending", false, "only show trending clusters")
	clustersCmd.Flags().DurationVar(&clustersTimeout, "timeout", 5*time.Minute, "overall refresh timeout")
}

func runClusters(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), clustersTimeout)
	defer cancel()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if clustersRefresh {
		if _, err := a.pipeline.RefreshClusters(ctx); err != nil {
			if errors.Is(err, pipeline.ErrRefreshInProgress) {
				fmt.Fprintln(os.Stderr, "A cluster refresh is already running")
			}
			return err
		}
	}

	clusters, err := a.store.LatestClusters(ctx)
	if err != nil {
		return err
	}

	if clustersTrending {
		kept := clusters[:0]
		for _, c := range clusters {
			if c.IsTrending {
				kept = append(kept, c)
			}
		}
		clusters = kept
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ %d clusters\n", len(clusters))
	}
	return printJSON(clusters)
}

package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var (
	claimsSearch  string
	claimsSince   time.Duration
	claimsLimit   int
	claimsSimilar string
)

// claimsCmd represents the claims command
var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Search and list stored claims",
	Long: `Claims lists stored claims, newest window first. --search runs a
keyword query over claim text; --similar finds the nearest neighbors of
a claim in the vector index.

Example:
  crisisguard claims --since 24h
  crisisguard claims --search "vaccine microchip"
  crisisguard claims --similar 6f1c9be2-... --limit 5`,
	RunE: runClaims,
}

func init() {
	rootCmd.AddCommand(claimsCmd)

	claimsCmd.Flags().StringVar(&claimsSearch, "search", "", "keyword query over claim text")
	claimsCmd.Flags().DurationVar(&claimsSince, "since", 24*time.Hour, "list claims created within this window")
	claimsCmd.Flags().IntVar(&claimsLimit, "limit", 20, "maximum results")
	claimsCmd.Flags().StringVar(&claimsSimilar, "similar", "", "find claims similar to this claim id")
}

func runClaims(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if claimsSimilar != "" {
		similar, err := a.pipeline.FindSimilar(ctx, claimsSimilar, claimsLimit)
		if err != nil {
			return err
		}
		return printJSON(similar)
	}

	if claimsSearch != "" {
		claims, err := a.store.SearchClaims(ctx, claimsSearch, claimsLimit)
		if err != nil {
			return err
		}
		return printJSON(claims)
	}

	claims, err := a.store.ClaimsSince(ctx, time.Now().UTC().Add(-claimsSince))
	if err != nil {
		return err
	}
	if claimsLimit > 0 && len(claims) > claimsLimit {
		claims = claims[len(claims)-claimsLimit:]
	}
	return printJSON(claims)
}

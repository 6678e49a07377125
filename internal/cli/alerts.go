package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var (
	alertsAll     bool
	alertsResolve string
)

// alertsCmd represents the alerts command
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List or resolve operator alerts",
	Long: `Alerts lists active operator alerts raised for high-harm verdicts and
trending clusters. Resolved alerts are hidden unless --all is set.

Example:
  crisisguard alerts
  crisisguard alerts --all
  crisisguard alerts --resolve 9c0f44a1-...`,
	RunE: runAlerts,
}

func init() {
	rootCmd.AddCommand(alertsCmd)

	alertsCmd.Flags().BoolVar(&alertsAll, "all", false, "include resolved alerts")
	alertsCmd.Flags().StringVar(&alertsResolve, "resolve", "", "mark the given alert resolved")
}

func runAlerts(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if alertsResolve != "" {
		if err := a.store.ResolveAlert(ctx, alertsResolve); err != nil {
			return err
		}
	}

	alerts, err := a.store.Alerts(ctx, !alertsAll)
	if err != nil {
		return err
	}
	return printJSON(alerts)
}

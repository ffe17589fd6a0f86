package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"syncpoint/internal/app/client"

	"github.com/spf13/cobra"
)

var statsJSON bool

var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cumulative synchronization counters for this client",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		stats, err := app.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch stats: %w", err)
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Printf("Client:        %s\n", app.ClientID())
		fmt.Printf("Cycles:        %d\n", stats.TotalCycles)
		fmt.Printf("Pushed:        %d\n", stats.TotalPushed)
		fmt.Printf("Pulled:        %d\n", stats.TotalPulled)
		fmt.Printf("Conflicts:     %d\n", stats.TotalConflicts)
		fmt.Printf("Resolved:      %d\n", stats.TotalResolved)
		fmt.Printf("Retried:       %d\n", stats.TotalRetried)
		if !stats.LastSync.IsZero() {
			fmt.Printf("Last sync:     %s\n", stats.LastSync.Format(time.RFC3339))
		}

		return nil
	},
}

func init() {
	StatsCmd.Flags().BoolVar(&statsJSON, "json", false, "output in JSON format")
}

package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"syncpoint/internal/app/client"

	"github.com/spf13/cobra"
)

var statusJSON bool

var StatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show progress of a synchronization session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		status, err := app.SessionStatus(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch session status: %w", err)
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}

		s := status.Session
		fmt.Printf("Session:   %s\n", s.ID)
		fmt.Printf("Status:    %s\n", s.Status)
		fmt.Printf("Progress:  %d/%d operations\n", s.CompletedOperations, s.TotalOperations)
		fmt.Printf("Started:   %s\n", s.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Last seen: %s\n", s.LastActivityAt.Format(time.RFC3339))

		if cp := status.Checkpoint; cp != nil {
			fmt.Printf("Checkpoint cursor: %d", cp.Cursor)
			if cp.LastOperationID != "" {
				fmt.Printf(" (last operation %s)", cp.LastOperationID)
			}
			fmt.Println()
		}

		if st := status.Stats; st != nil {
			fmt.Printf("Client totals: %d cycles, %d pushed, %d pulled\n",
				st.TotalCycles, st.TotalPushed, st.TotalPulled)
		}

		return nil
	},
}

func init() {
	StatusCmd.Flags().BoolVar(&statusJSON, "json", false, "output in JSON format")
}

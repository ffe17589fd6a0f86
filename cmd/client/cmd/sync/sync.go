package sync

import (
	"fmt"
	"time"

	"syncpoint/internal/app/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var batchSize int

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization cycle",
	Long: `Pushes queued local operations to the server in batches, then pulls
remote changes. If a previous cycle was interrupted, the cached resume
token continues it from the last committed batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		fmt.Println("Checking server connection...")
		if err := app.CheckConnection(cmd.Context()); err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}

		fmt.Println("Starting synchronization...")
		start := time.Now()

		resp, err := app.Sync(cmd.Context(), batchSize)
		if err != nil {
			return fmt.Errorf("synchronization failed: %w", err)
		}

		duration := time.Since(start)

		fmt.Println()
		if resp.Success {
			color.Green("Synchronization complete")
		} else {
			color.Yellow("Synchronization interrupted: %s", resp.Error)
			fmt.Println("Run 'syncpoint sync' again to resume from the last checkpoint.")
		}

		fmt.Printf("Duration: %v\n", duration.Round(time.Millisecond))
		fmt.Printf("Progress: %d/%d operations\n", resp.CompletedOperations, resp.TotalOperations)

		failed := 0
		for _, res := range resp.Operations {
			if !res.Success && res.Conflict == nil {
				failed++
			}
		}
		if failed > 0 {
			fmt.Printf("Failed operations: %d\n", failed)
		}

		if len(resp.Conflicts) > 0 {
			color.Yellow("Conflicts detected: %d", len(resp.Conflicts))
			fmt.Println("Use 'syncpoint conflict list' to inspect them.")
		}

		if len(resp.FailedRetries) > 0 {
			color.Red("Operations that exhausted retries: %d", len(resp.FailedRetries))
			for _, item := range resp.FailedRetries {
				fmt.Printf("  %s %s/%s: %s\n", item.Op, item.ResourceType, item.ResourceID, item.Error)
			}
		}

		if resp.HasMore {
			fmt.Println("More work remains; the session can be resumed.")
		}

		return nil
	},
}

func init() {
	SyncCmd.Flags().IntVarP(&batchSize, "batch", "b", 0, "override the per-type batch size (0 uses server defaults)")
}

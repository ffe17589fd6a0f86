// cmd/client/cmd/init.go
package cmd

import (
	"fmt"

	"syncpoint/cmd/client/cmd/conflict"
	"syncpoint/cmd/client/cmd/queue"
	syncmd "syncpoint/cmd/client/cmd/sync"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check connectivity to the synchronization server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.CheckConnection(cmd.Context()); err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		fmt.Println("server is reachable")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queue.QueueCmd)
	queue.QueueCmd.AddCommand(queue.AddCmd)
	queue.QueueCmd.AddCommand(queue.ListCmd)

	rootCmd.AddCommand(syncmd.SyncCmd)
	rootCmd.AddCommand(syncmd.StatusCmd)
	rootCmd.AddCommand(syncmd.StatsCmd)

	rootCmd.AddCommand(conflict.ConflictCmd)
	conflict.ConflictCmd.AddCommand(conflict.ListCmd)
	conflict.ConflictCmd.AddCommand(conflict.ResolveCmd)

	rootCmd.AddCommand(pingCmd)
}

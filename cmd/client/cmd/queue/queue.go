package queue

import (
	"github.com/spf13/cobra"
)

var QueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the offline pending queue",
	Long: `Operations captured while offline wait in a local queue and are
submitted to the server on the next sync.`,
}

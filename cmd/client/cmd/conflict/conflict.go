package conflict

import (
	"github.com/spf13/cobra"
)

var ConflictCmd = &cobra.Command{
	Use:   "conflict",
	Short: "Inspect and resolve synchronization conflicts",
	Long: `Conflicts the server could not resolve automatically stay pending
until a resolution policy is applied to them.`,
}

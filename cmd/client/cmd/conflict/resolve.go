package conflict

import (
	"fmt"

	"syncpoint/internal/app/client"
	"syncpoint/internal/domain/sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var resolvePolicy string

var ResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id>",
	Short: "Apply a resolution policy to a pending conflict",
	Long: `Resolves a conflict with one of the policies: keep_local,
keep_remote, merge or keep_both. A keep_local resolution queues the local
payload for re-push on the next sync.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		policy := sync.Policy(resolvePolicy)
		switch policy {
		case sync.PolicyKeepLocal, sync.PolicyKeepRemote, sync.PolicyMerge, sync.PolicyKeepBoth:
		default:
			return fmt.Errorf("unknown policy %q, expected keep_local, keep_remote, merge or keep_both", resolvePolicy)
		}

		resolved, err := app.ResolveConflict(cmd.Context(), args[0], policy)
		if err != nil {
			return fmt.Errorf("failed to resolve conflict: %w", err)
		}

		color.Green("Conflict %s resolved with %s", resolved.ID, resolved.Resolution)
		if policy == sync.PolicyKeepLocal {
			fmt.Println("The local payload will be re-pushed on the next sync.")
		}
		return nil
	},
}

func init() {
	ResolveCmd.Flags().StringVarP(&resolvePolicy, "policy", "p", "", "resolution policy")
	_ = ResolveCmd.MarkFlagRequired("policy")
}

package conflict

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"syncpoint/internal/app/client"

	"github.com/spf13/cobra"
)

var listJSON bool

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending conflicts for this client",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		conflicts, err := app.Conflicts(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list conflicts: %w", err)
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(conflicts)
		}

		if len(conflicts) == 0 {
			fmt.Println("no pending conflicts")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRESOURCE\tLOCAL\tREMOTE\tDETECTED")
		for _, c := range conflicts {
			fmt.Fprintf(w, "%s\t%s/%s\tv%d\tv%d\t%s\n",
				c.ID, c.ResourceType, c.ResourceID,
				c.Local.Version, c.Remote.Version,
				c.DetectedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	ListCmd.Flags().BoolVar(&listJSON, "json", false, "output in JSON format")
}

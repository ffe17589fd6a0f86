package queue

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
	Short: "Show operations waiting for the next sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		ops, err := app.PendingOperations()
		if err != nil {
			return fmt.Errorf("failed to read pending queue: %w", err)
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ops)
		}

		if len(ops) == 0 {
			fmt.Println("pending queue is empty")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tOPERATION\tRESOURCE\tBASE\tQUEUED AT")
		for _, op := range ops {
			fmt.Fprintf(w, "%s\t%s\t%s/%s\t%d\t%s\n",
				op.ID, op.Op, op.ResourceType, op.ResourceID, op.BaseVersion,
				op.Timestamp.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	ListCmd.Flags().BoolVar(&listJSON, "json", false, "output in JSON format")
}

package queue

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"syncpoint/internal/app/client"
	"syncpoint/internal/domain/sync"

	"github.com/spf13/cobra"
)

var (
	addType        string
	addResource    string
	addResourceID  string
	addPayloadFile string
	addBaseVersion int
)

var AddCmd = &cobra.Command{
	Use:   "add",
	Short: "Queue an operation for the next sync",
	Long: `Appends a create, update or delete operation to the local pending
queue. The payload is read from --payload-file or from stdin when the flag
is "-".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value("app").(*client.App)
		if app == nil {
			return fmt.Errorf("application is not initialized")
		}

		opType := sync.OpType(addType)
		switch opType {
		case sync.OpCreate, sync.OpUpdate, sync.OpDelete:
		default:
			return fmt.Errorf("unknown operation type %q, expected create, update or delete", addType)
		}

		var payload json.RawMessage
		if opType != sync.OpDelete {
			raw, err := readPayload(addPayloadFile)
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}
			if !json.Valid(raw) {
				return fmt.Errorf("payload is not valid JSON")
			}
			payload = raw
		}

		op := sync.Operation{
			ResourceType: addResource,
			ResourceID:   addResourceID,
			Op:           opType,
			Payload:      payload,
			BaseVersion:  addBaseVersion,
		}

		if err := app.QueueOperation(op); err != nil {
			return fmt.Errorf("failed to queue operation: %w", err)
		}

		fmt.Printf("queued %s of %s/%s\n", addType, addResource, addResourceID)
		return nil
	},
}

func readPayload(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("--payload-file is required for create and update")
	}
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func init() {
	AddCmd.Flags().StringVarP(&addType, "op", "o", "", "operation type: create, update or delete")
	AddCmd.Flags().StringVarP(&addResource, "type", "t", "", "resource type")
	AddCmd.Flags().StringVarP(&addResourceID, "id", "i", "", "resource identifier")
	AddCmd.Flags().StringVarP(&addPayloadFile, "payload-file", "f", "", "file with the JSON payload, '-' for stdin")
	AddCmd.Flags().IntVar(&addBaseVersion, "base-version", 0, "version the change is based on")

	_ = AddCmd.MarkFlagRequired("op")
	_ = AddCmd.MarkFlagRequired("type")
	_ = AddCmd.MarkFlagRequired("id")
}

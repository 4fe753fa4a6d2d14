package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facelock/internal/cloud"
	"github.com/kozaktomas/facelock/internal/config"
)

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Queue remote commands for a device",
}

var commandSendCmd = &cobra.Command{
	Use:   "send OPEN|ENROLL",
	Short: "Queue a command for a device",
	Long: `Queue a command the device picks up on its next poll.

Examples:
  # Open the door remotely
  facelock command send OPEN

  # Enroll the person in front of the camera as user 12
  facelock command send ENROLL --user-id 12`,
	Args: cobra.ExactArgs(1),
	RunE: runCommandSend,
}

func init() {
	rootCmd.AddCommand(commandCmd)
	commandCmd.AddCommand(commandSendCmd)

	commandSendCmd.Flags().String("device", "", "Device id (defaults to DEVICE_ID)")
	commandSendCmd.Flags().Int("user-id", 0, "Identity id for ENROLL")
}

// buildCommandPayload validates the command name and encodes its payload.
func buildCommandPayload(name string, userID int) (string, json.RawMessage, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	switch name {
	case cloud.CommandOpen:
		return name, nil, nil
	case cloud.CommandEnroll:
		if userID < 1 {
			return "", nil, fmt.Errorf("ENROLL requires --user-id >= 1")
		}
		payload, err := json.Marshal(cloud.EnrollPayload{UserID: userID})
		if err != nil {
			return "", nil, fmt.Errorf("encoding payload: %w", err)
		}
		return name, payload, nil
	default:
		return "", nil, fmt.Errorf("unknown command %q (want %s or %s)", name, cloud.CommandOpen, cloud.CommandEnroll)
	}
}

func runCommandSend(cmd *cobra.Command, args []string) error {
	name, payload, err := buildCommandPayload(args[0], mustGetInt(cmd, "user-id"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	cfg := config.Load()
	log := newLogger(cfg.Log.Level, cfg.Log.Format)

	deviceID := mustGetString(cmd, "device")
	if deviceID == "" {
		deviceID = cfg.DeviceID
	}

	backends, err := requireRecords(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	id, err := backends.records.EnqueueCommand(ctx, deviceID, name, payload)
	if err != nil {
		return fmt.Errorf("failed to queue command: %w", err)
	}
	fmt.Printf("Queued %s for %s (command %d)\n", name, deviceID, id)
	return nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facelock/internal/cloud"
	"github.com/kozaktomas/facelock/internal/config"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent access logs",
	Long: `Show the most recent access log entries recorded in the cloud for a device.

Examples:
  # Last 20 entries of this device
  facelock logs

  # Another device, as JSON
  facelock logs --device S3_LOCK_02 --limit 100 --json`,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().Int("limit", 20, "Maximum number of entries")
	logsCmd.Flags().String("device", "", "Device id (defaults to DEVICE_ID)")
	logsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runLogs(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()
	log := newLogger(cfg.Log.Level, cfg.Log.Format)

	deviceID := mustGetString(cmd, "device")
	if deviceID == "" {
		deviceID = cfg.DeviceID
	}
	if limit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	backends, err := requireRecords(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	entries, err := backends.records.AccessLogs(ctx, deviceID, limit)
	if err != nil {
		return fmt.Errorf("failed to load access logs: %w", err)
	}

	if jsonOutput {
		if entries == nil {
			entries = []cloud.AccessLog{}
		}
		return outputJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Printf("No access logs for %s\n", deviceID)
		return nil
	}
	fmt.Printf("Access logs for %s:\n", deviceID)
	for _, e := range entries {
		face := "-"
		if e.FaceID != nil {
			face = fmt.Sprintf("#%d", *e.FaceID)
		}
		fmt.Printf("  %s  %-5s  %s", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), face, e.Description)
		if e.ImageName != "" {
			fmt.Printf("  [%s]", e.ImageName)
		}
		fmt.Println()
	}
	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facelock/internal/config"
	"github.com/kozaktomas/facelock/internal/facematch"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Inspect and sync enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identities in the local store",
	Long: `List the identities held in the on-device store.

Run this while the controller is stopped; the state directory is locked by a
running server.`,
	RunE: runIdentitiesList,
}

var identitiesPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Merge cloud identities into the local store",
	Long: `Fetch every identity from the cloud and upsert it into the local store.

Examples:
  # Pull with a progress bar
  facelock identities pull

  # JSON output for scripting
  facelock identities pull --json`,
	RunE: runIdentitiesPull,
}

var identitiesPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload local identities to the cloud",
	RunE:  runIdentitiesPush,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd, identitiesPullCmd, identitiesPushCmd)

	identitiesListCmd.Flags().Bool("json", false, "Output as JSON")
	identitiesPullCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
	identitiesPushCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// IdentityInfo is one row of the identity listing.
type IdentityInfo struct {
	ID   int     `json:"id"`
	Norm float64 `json:"norm"`
}

// IdentitiesList is the JSON form of the listing.
type IdentitiesList struct {
	Identities []IdentityInfo `json:"identities"`
	Capacity   int            `json:"capacity"`
	NextID     int            `json:"next_id"`
}

// SyncIdentitiesResult summarizes a pull or push.
type SyncIdentitiesResult struct {
	Success       bool   `json:"success"`
	Total         int    `json:"total"`
	Synced        int    `json:"synced"`
	Skipped       int    `json:"skipped"`
	DurationMs    int64  `json:"duration_ms"`
	DurationHuman string `json:"duration_human,omitempty"`
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()
	log := newLogger(cfg.Log.Level, cfg.Log.Format)

	state, err := openLocalState(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer state.Close()

	list := IdentitiesList{
		Identities: []IdentityInfo{},
		Capacity:   state.store.Capacity(),
		NextID:     state.store.NextID(),
	}
	for _, r := range state.store.Records() {
		list.Identities = append(list.Identities, IdentityInfo{ID: r.ID, Norm: facematch.Norm(r.Embedding)})
	}

	if jsonOutput {
		return outputJSON(list)
	}

	fmt.Printf("Identities: %d/%d (next id %d)\n", len(list.Identities), list.Capacity, list.NextID)
	for _, info := range list.Identities {
		fmt.Printf("  #%-4d norm %.3f\n", info.ID, info.Norm)
	}
	return nil
}

func runIdentitiesPull(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()
	cfg := config.Load()
	log := newLogger(cfg.Log.Level, cfg.Log.Format)
	startTime := time.Now()

	backends, err := requireRecords(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	state, err := openLocalState(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer state.Close()

	identities, err := backends.service.FetchIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch identities: %w", err)
	}
	if !jsonOutput {
		fmt.Printf("Found %d identities in the cloud\n\n", len(identities))
	}

	bar := newSyncBar(len(identities), "Pulling identities", jsonOutput)
	result := SyncIdentitiesResult{Total: len(identities)}
	for _, ident := range identities {
		if err := state.store.Upsert(ident.ID, ident.Embedding); err != nil {
			result.Skipped++
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\nskipping identity %d: %v\n", ident.ID, err)
			}
		} else {
			result.Synced++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		fmt.Println()
	}

	if result.Synced > 0 {
		if err := state.store.Persist(ctx); err != nil {
			return fmt.Errorf("failed to persist identity store: %w", err)
		}
	}
	return finishSync(result, startTime, jsonOutput, "Pull")
}

func runIdentitiesPush(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()
	cfg := config.Load()
	log := newLogger(cfg.Log.Level, cfg.Log.Format)
	startTime := time.Now()

	backends, err := requireRecords(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	state, err := openLocalState(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer state.Close()

	records := state.store.Records()
	bar := newSyncBar(len(records), "Pushing identities", jsonOutput)
	result := SyncIdentitiesResult{Total: len(records)}
	for _, r := range records {
		if err := backends.service.UploadIdentity(ctx, r.ID, r.Embedding); err != nil {
			result.Skipped++
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\nfailed to push identity %d: %v\n", r.ID, err)
			}
		} else {
			result.Synced++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		fmt.Println()
	}
	return finishSync(result, startTime, jsonOutput, "Push")
}

func newSyncBar(n int, description string, quiet bool) *progressbar.ProgressBar {
	if quiet || n == 0 {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func finishSync(result SyncIdentitiesResult, startTime time.Time, jsonOutput bool, verb string) error {
	duration := time.Since(startTime)
	result.Success = true
	result.DurationMs = duration.Milliseconds()

	if jsonOutput {
		return outputJSON(result)
	}

	result.DurationHuman = formatDuration(duration)
	fmt.Printf("\n%s complete!\n", verb)
	fmt.Printf("  Identities: %d\n", result.Total)
	fmt.Printf("  Synced:     %d\n", result.Synced)
	if result.Skipped > 0 {
		fmt.Printf("  Skipped:    %d\n", result.Skipped)
	}
	fmt.Printf("  Duration:   %s\n", result.DurationHuman)
	return nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

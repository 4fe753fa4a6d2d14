package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facelock/internal/access"
	"github.com/kozaktomas/facelock/internal/camera"
	"github.com/kozaktomas/facelock/internal/config"
	"github.com/kozaktomas/facelock/internal/facematch"
	"github.com/kozaktomas/facelock/internal/lock"
	"github.com/kozaktomas/facelock/internal/vision"
	"github.com/kozaktomas/facelock/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the door controller",
	Long: `Run the recognition loop, the lock actuator, the exit button and remote
command polling, and serve the HTTP API with the live stream.

Without DATABASE_URL the controller runs offline: faces are still recognized and
the exit button works, but nothing is logged or synced.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("simulate", false, "Use a simulated door instead of GPIO")
	serveCmd.Flags().Duration("sim-open-for", 2*time.Second, "How long the simulated door stays open after the relay fires")
	serveCmd.Flags().String("gpio-root", lock.DefaultSysfsRoot, "sysfs GPIO directory")
	serveCmd.Flags().Bool("skip-sync", false, "Skip the startup identity sync from the cloud")
}

// startupSyncTimeout bounds the identity pull at startup.
const startupSyncTimeout = 30 * time.Second

// resolveServeHostPort applies the flag overrides on top of the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

// openDoorHardware returns GPIO lines or a simulated door.
func openDoorHardware(cmd *cobra.Command, cfg *config.Config, log logrus.FieldLogger) (*lock.Hardware, error) {
	if mustGetBool(cmd, "simulate") {
		openFor := mustGetDuration(cmd, "sim-open-for")
		fmt.Printf("Using simulated door (open for %s)\n", openFor)
		return lock.NewSimulatedDoor(openFor, log).Hardware(), nil
	}
	hw, err := lock.OpenHardware(mustGetString(cmd, "gpio-root"), cfg.GPIO.RelayPin, cfg.GPIO.DoorPin, cfg.GPIO.ButtonPin)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w", err)
	}
	fmt.Printf("GPIO ready (relay %d, door %d, button %d)\n", cfg.GPIO.RelayPin, cfg.GPIO.DoorPin, cfg.GPIO.ButtonPin)
	return hw, nil
}

// syncAtStartup merges cloud identities before the loop starts.
func syncAtStartup(ctx context.Context, ctrl *access.Controller) {
	ctx, cancel := context.WithTimeout(ctx, startupSyncTimeout)
	defer cancel()

	fmt.Printf("Syncing identities from the cloud...\n")
	n, err := ctrl.SyncAllFromCloud(ctx)
	if err != nil {
		fmt.Printf("Warning: identity sync failed: %v\n", err)
		return
	}
	fmt.Printf("Synced %d identities\n", n)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLogger(cfg.Log.Level, cfg.Log.Format)
	resolveServeHostPort(cmd, cfg)

	if cfg.Camera.URL == "" {
		return errors.New("CAMERA_URL environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := openLocalState(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer state.Close()
	fmt.Printf("Identity store: %d/%d slots used, next id %d\n",
		state.store.Len(), state.store.Capacity(), state.store.NextID())

	backends, err := openCloud(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()
	if !backends.service.Online() {
		fmt.Printf("No DATABASE_URL set, running offline\n")
	}

	hw, err := openDoorHardware(cmd, cfg, log)
	if err != nil {
		return err
	}

	// The actuator reports phases to the controller created right after it.
	var ctrl *access.Controller
	actuator := lock.NewActuator(lock.Config{
		Relay:    hw.Relay,
		Sensor:   hw.Sensor,
		Hold:     cfg.Timings.Lock.Hold,
		Poll:     cfg.Timings.Lock.Poll,
		Debounce: cfg.Timings.Lock.Debounce,
		OnPhase: func(p lock.Phase) {
			if ctrl != nil {
				ctrl.PhaseChanged(p)
			}
		},
		Logger: log,
	})
	defer actuator.Close()

	sidecar := vision.NewClient(cfg.Vision.URL)
	ctrl = access.New(access.Config{
		DeviceID:  cfg.DeviceID,
		Arbiter:   camera.NewArbiter(camera.NewHTTPDevice(cfg.Camera.URL)),
		Store:     state.store,
		Engine:    facematch.NewEngine(cfg.Match.Threshold),
		Detector:  sidecar,
		Extractor: sidecar,
		Door:      actuator,
		Cloud:     backends.service,
		Timings:   cfg.Timings,
		Logger:    log,
	})

	if backends.service.Online() && !mustGetBool(cmd, "skip-sync") {
		syncAtStartup(ctx, ctrl)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctrl.StartRecognition(ctx)
	}()
	go func() {
		defer wg.Done()
		ctrl.RunControlLoop(ctx, hw.Button)
	}()

	server := web.NewServer(cfg, ctrl, log)
	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("facelock %s on http://%s:%d (device %s)\n", Version, cfg.Web.Host, cfg.Web.Port, cfg.DeviceID)
	fmt.Println("Press Ctrl+C to stop")

	serveErr := server.Start()
	stop()
	wg.Wait()
	if serveErr != nil {
		return fmt.Errorf("starting server: %w", serveErr)
	}
	return nil
}

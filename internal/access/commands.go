package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/cloud"
	"github.com/kozaktomas/facelock/internal/constants"
	"github.com/kozaktomas/facelock/internal/lock"
)

// ErrUnknownCommand is returned for commands the device does not understand.
var ErrUnknownCommand = errors.New("unknown command")

// RemoteOpen opens the door and logs a remote unlock with a best-effort snapshot.
func (c *Controller) RemoteOpen(ctx context.Context) {
	c.OpenDoor()
	c.log.Info("remote unlock")

	score := constants.RemoteUnlockScore
	c.logAccess(ctx, cloud.AccessLog{
		Score:       &score,
		Description: constants.RemoteUnlockDescription,
	}, c.snapshot(ctx, c.timings.Stream.SnapshotTimeout))
}

// snapshot grabs one JPEG with a short camera timeout. It returns nil if the
// camera is busy or the capture fails.
func (c *Controller) snapshot(ctx context.Context, timeout time.Duration) []byte {
	lease, err := c.arb.Acquire(ctx, timeout)
	if err != nil {
		c.log.WithError(err).Debug("snapshot skipped")
		return nil
	}
	defer lease.Release()

	frame, err := lease.Capture(ctx)
	if err != nil {
		c.log.WithError(err).Warn("snapshot capture failed")
		return nil
	}
	snap, err := snapshotJPEG(frame, nil)
	if err != nil {
		return nil
	}
	return snap
}

// ProcessRemoteCommand executes cmd and marks it executed, whatever the outcome,
// so a failing command is not fetched again.
func (c *Controller) ProcessRemoteCommand(ctx context.Context, cmd cloud.Command) error {
	log := c.log.WithFields(logrus.Fields{"command_id": cmd.ID, "command": cmd.Name})
	log.Info("processing remote command")
	c.events.send(EventCommand, cmd.Name, map[string]int64{"id": cmd.ID})

	var err error
	switch cmd.Name {
	case cloud.CommandOpen:
		c.RemoteOpen(ctx)
	case cloud.CommandEnroll:
		var id int
		if id, err = cmd.EnrollTarget(); err == nil {
			err = c.Enroll(ctx, id)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
	if err != nil {
		log.WithError(err).Warn("remote command failed")
	}

	if markErr := c.cloud.MarkExecuted(ctx, cmd.ID); markErr != nil {
		log.WithError(markErr).Warn("failed to mark command executed")
	}
	return err
}

// PollRemoteCommands fetches and runs pending commands in order.
func (c *Controller) PollRemoteCommands(ctx context.Context) error {
	cmds, err := c.cloud.FetchPendingCommands(ctx)
	if err != nil {
		return fmt.Errorf("fetch commands: %w", err)
	}
	for _, cmd := range cmds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = c.ProcessRemoteCommand(ctx, cmd)
	}
	return nil
}

// RunControlLoop polls the exit button and, when online, the remote command
// queue until ctx ends. button may be nil.
func (c *Controller) RunControlLoop(ctx context.Context, button lock.Button) {
	ct := c.timings.Control
	poll := ct.ButtonPoll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	every := ct.CommandEvery
	if every <= 0 {
		every = 30
	}
	online := c.Online()
	if !online {
		c.log.Info("offline mode, remote commands disabled")
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if button != nil && c.buttonPressed(button) {
			c.log.Info("exit button pressed")
			c.OpenDoor()
			c.waitRelease(ctx, button, poll)
		}

		if online && tick%every == 0 {
			if err := c.PollRemoteCommands(ctx); err != nil && ctx.Err() == nil {
				c.log.WithError(err).Warn("command poll failed")
			}
		}
	}
}

func (c *Controller) buttonPressed(b lock.Button) bool {
	pressed, err := b.Pressed()
	if err != nil {
		c.log.WithError(err).Debug("button read failed")
		return false
	}
	return pressed
}

func (c *Controller) waitRelease(ctx context.Context, b lock.Button, poll time.Duration) {
	for c.buttonPressed(b) {
		if sleepCtx(ctx, poll) != nil {
			return
		}
	}
}

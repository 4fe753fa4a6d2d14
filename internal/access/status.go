package access

import (
	"context"
	"errors"

	"github.com/kozaktomas/facelock/internal/camera"
)

// Status is a point-in-time view of the controller.
type Status struct {
	DeviceID           string       `json:"device_id"`
	Online             bool         `json:"online"`
	RecognitionEnabled bool         `json:"recognition_enabled"`
	Enrolling          bool         `json:"enrolling"`
	EnrollmentPending  bool         `json:"enrollment_pending"`
	Identities         int          `json:"identities"`
	Capacity           int          `json:"capacity"`
	NextID             int          `json:"next_id"`
	DoorPhase          string       `json:"door_phase"`
	DoorSequences      int64        `json:"door_sequences"`
	Camera             camera.Stats `json:"camera"`
	Cycles             int64        `json:"cycles"`
	Matches            int64        `json:"matches"`
	Rejects            int64        `json:"rejects"`
	LastMatch          *MatchInfo   `json:"last_match,omitempty"`
}

// Status returns the current controller state.
func (c *Controller) Status() Status {
	return Status{
		DeviceID:           c.deviceID,
		Online:             c.Online(),
		RecognitionEnabled: c.enabled.Load(),
		Enrolling:          c.enrolling.Load(),
		EnrollmentPending:  c.pending.Load() != nil,
		Identities:         c.store.Len(),
		Capacity:           c.store.Capacity(),
		NextID:             c.store.NextID(),
		DoorPhase:          c.door.Phase().String(),
		DoorSequences:      c.door.Sequences(),
		Camera:             c.arb.Stats(),
		Cycles:             c.cycles.Load(),
		Matches:            c.matches.Load(),
		Rejects:            c.rejects.Load(),
		LastMatch:          c.lastMatch.Load(),
	}
}

// StreamFrame returns one JPEG for a live stream consumer. It gives up with
// camera.ErrBusy after the stream timeout so streaming never starves the loop.
func (c *Controller) StreamFrame(ctx context.Context) ([]byte, error) {
	lease, err := c.arb.Acquire(ctx, c.timings.Stream.CameraTimeout)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	frame, err := lease.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if frame.Format != camera.FormatJPEG {
		return nil, errors.New("stream requires JPEG frames")
	}
	return frame.Clone().Data, nil
}

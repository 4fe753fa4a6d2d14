package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/camera"
	"github.com/kozaktomas/facelock/internal/cloud"
	"github.com/kozaktomas/facelock/internal/facematch"
	"github.com/kozaktomas/facelock/internal/vision"
)

const snapshotQuality = 80

// StartRecognition runs the recognition loop until ctx ends.
func (c *Controller) StartRecognition(ctx context.Context) {
	c.log.Info("recognition loop started")
	defer c.log.Info("recognition loop stopped")

	for {
		wait := c.cycle(ctx)
		if ctx.Err() != nil {
			return
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// cycle runs one recognition step and returns how long to sleep before the next.
func (c *Controller) cycle(ctx context.Context) time.Duration {
	rt := c.timings.Recognition
	if c.enrolling.Load() {
		return rt.EnrollingBackoff
	}
	// A pending local enrollment runs even while recognition is disabled.
	if !c.enabled.Load() && c.pending.Load() == nil {
		return rt.DisabledBackoff
	}
	c.cycles.Add(1)

	lease, err := c.arb.Acquire(ctx, rt.CameraTimeout)
	if err != nil {
		if !errors.Is(err, camera.ErrBusy) && ctx.Err() == nil {
			c.log.WithError(err).Warn("camera acquire failed")
		}
		return rt.Period
	}
	defer lease.Release()

	frame, err := lease.Capture(ctx)
	if err != nil {
		c.log.WithError(err).Warn("capture failed")
		return rt.Period
	}

	res, err := c.loopPipeline.Embed(ctx, frame)
	if err != nil {
		return c.backoffFor(err)
	}

	if e := c.pending.Load(); e != nil && c.pending.CompareAndSwap(e, nil) {
		lease.Release()
		c.commitLocal(ctx, e, res.Embedding)
		return rt.Period
	}

	m, found := c.store.BestMatch(res.Embedding)
	switch c.engine.Decide(m, found) {
	case facematch.DecisionAccept:
	case facematch.DecisionReject:
		c.rejects.Add(1)
		c.log.WithFields(logrus.Fields{"face_id": m.ID, "score": m.Score}).Debug("face rejected")
		c.events.send(EventReject, "", m)
		return rt.Period
	default:
		return rt.Period
	}

	c.matches.Add(1)
	c.lastMatch.Store(&MatchInfo{ID: m.ID, Score: m.Score, At: time.Now()})
	c.log.WithFields(logrus.Fields{"face_id": m.ID, "score": m.Score}).Info("face matched")
	c.events.send(EventMatch, "", m)
	c.OpenDoor()

	var snap []byte
	logIt := c.logLimit.Allow()
	if logIt {
		if snap, err = snapshotJPEG(frame, res.Image); err != nil {
			c.log.WithError(err).Warn("snapshot encode failed")
		}
	}
	lease.Release()

	if logIt {
		score := m.Score
		id := m.ID
		c.logAccess(ctx, cloud.AccessLog{
			FaceID:      &id,
			Score:       &score,
			Description: cloud.MatchDescription(score),
		}, snap)
	}
	return rt.MatchHold
}

func (c *Controller) backoffFor(err error) time.Duration {
	rt := c.timings.Recognition
	switch {
	case errors.Is(err, vision.ErrCorruptFrame), errors.Is(err, vision.ErrFrameTooLarge):
		c.log.WithError(err).Debug("frame discarded")
		return rt.CorruptBackoff
	case errors.Is(err, vision.ErrNoFace):
		return rt.Period
	default:
		c.log.WithError(err).Warn("recognition failed")
		return rt.Period
	}
}

// commitLocal stores a locally enrolled face under a new id and resolves e.
func (c *Controller) commitLocal(ctx context.Context, e *Enrollment, emb []float32) {
	id, err := c.store.EnrollNew(emb)
	if err != nil {
		c.log.WithError(err).Error("local enrollment failed")
		c.events.send(EventEnrollFailed, err.Error(), nil)
		e.resolve(0, err)
		return
	}
	log := c.log.WithField("face_id", id)

	if err := c.store.Persist(ctx); err != nil {
		log.WithError(err).Error("failed to persist identity store")
	}
	c.logCloudErr(c.cloud.UploadIdentity(ctx, id, emb), "identity upload", logrus.Fields{"face_id": id})

	log.Info("local enrollment complete")
	c.events.send(EventEnrolled, "", map[string]int{"id": id})
	e.resolve(id, nil)
}

// logAccess uploads snap, if any, then records the access. The access is logged
// even when the upload fails, without an image reference.
func (c *Controller) logAccess(ctx context.Context, entry cloud.AccessLog, snap []byte) {
	if len(snap) > 0 {
		name := fmt.Sprintf("log_%s.jpg", uuid.NewString())
		err := c.cloud.UploadImage(ctx, name, snap)
		if err == nil {
			entry.ImageName = name
		}
		c.logCloudErr(err, "access image upload", logrus.Fields{"image": name})
	}
	c.logCloudErr(c.cloud.LogAccess(ctx, entry), "access log", logrus.Fields{"description": entry.Description})
}

// snapshotJPEG returns a JPEG copy of frame that outlives the lease. Raw frames
// are encoded from the decoded image.
func snapshotJPEG(frame *camera.Frame, img *vision.Image) ([]byte, error) {
	if frame.Format == camera.FormatJPEG {
		return frame.Clone().Data, nil
	}
	if img == nil {
		return nil, vision.ErrCorruptFrame
	}
	return vision.EncodeJPEG(img, snapshotQuality)
}

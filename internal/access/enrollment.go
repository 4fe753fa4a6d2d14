package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/vision"
)

// Enrollment is a pending local enrollment. The recognition loop resolves it with
// the id of the next face it sees.
type Enrollment struct {
	done chan struct{}
	once sync.Once
	id   int
	err  error
}

func newEnrollment() *Enrollment {
	return &Enrollment{done: make(chan struct{})}
}

func (e *Enrollment) resolve(id int, err error) {
	e.once.Do(func() {
		e.id = id
		e.err = err
		close(e.done)
	})
}

// Done is closed once the enrollment has a result.
func (e *Enrollment) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the enrollment resolves or ctx ends.
func (e *Enrollment) Wait(ctx context.Context) (int, error) {
	select {
	case <-e.done:
		return e.id, e.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// RequestLocalEnrollment registers an intent to enroll the next detected face
// under a new id. A request made while another is pending joins it.
func (c *Controller) RequestLocalEnrollment() *Enrollment {
	for {
		if e := c.pending.Load(); e != nil {
			return e
		}
		e := newEnrollment()
		if c.pending.CompareAndSwap(nil, e) {
			c.log.Info("local enrollment requested")
			return e
		}
	}
}

// CancelLocalEnrollment withdraws e if the loop has not claimed it yet.
func (c *Controller) CancelLocalEnrollment(e *Enrollment) bool {
	if c.pending.CompareAndSwap(e, nil) {
		e.resolve(0, context.Canceled)
		return true
	}
	return false
}

// LocalEnrollmentPending reports whether an intent waits for a face.
func (c *Controller) LocalEnrollmentPending() bool {
	return c.pending.Load() != nil
}

// Enroll captures a face and stores it under id. The recognition loop yields
// while it runs. A concurrent call fails with ErrEnrollmentInProgress.
func (c *Controller) Enroll(ctx context.Context, id int) error {
	if id < 1 {
		return ErrInvalidID
	}
	if !c.enrolling.CompareAndSwap(false, true) {
		return ErrEnrollmentInProgress
	}
	defer c.enrolling.Store(false)

	log := c.log.WithField("face_id", id)
	log.Info("enrollment started")

	err := c.enroll(ctx, id, log)
	if err != nil {
		log.WithError(err).Error("enrollment failed")
		c.events.send(EventEnrollFailed, err.Error(), map[string]int{"id": id})
		return err
	}
	log.Info("enrollment complete")
	c.events.send(EventEnrolled, "", map[string]int{"id": id})
	return nil
}

func (c *Controller) enroll(ctx context.Context, id int, log logrus.FieldLogger) error {
	et := c.timings.Enrollment
	if err := sleepCtx(ctx, et.Settle); err != nil {
		return err
	}

	lease, err := c.arb.Acquire(ctx, et.CameraTimeout)
	if err != nil {
		return fmt.Errorf("acquire camera: %w", err)
	}
	defer lease.Release()

	frame, err := lease.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	res, err := c.enrollPipeline.Embed(ctx, frame)
	var img *vision.Image
	if res != nil {
		img = res.Image
	}
	snap, _ := snapshotJPEG(frame, img)
	lease.Release()

	if len(snap) > 0 {
		name := fmt.Sprintf("face_%d_%s.jpg", id, uuid.NewString())
		c.logCloudErr(c.cloud.UploadImage(ctx, name, snap), "enrollment image upload", logrus.Fields{"image": name})
	}
	if err != nil {
		return err
	}

	if err := c.store.Upsert(id, res.Embedding); err != nil {
		return fmt.Errorf("store identity: %w", err)
	}
	if err := c.store.Persist(ctx); err != nil {
		log.WithError(err).Error("failed to persist identity store")
	}
	c.logCloudErr(c.cloud.UploadIdentity(ctx, id, res.Embedding), "identity upload", logrus.Fields{"face_id": id})
	return nil
}

// SyncIdentityFromCloud merges one identity into the store in memory.
func (c *Controller) SyncIdentityFromCloud(id int, embedding []float32) error {
	if err := c.store.Upsert(id, embedding); err != nil {
		return fmt.Errorf("sync identity %d: %w", id, err)
	}
	c.events.send(EventIdentitySynced, "", map[string]int{"id": id})
	return nil
}

// SyncAllFromCloud pulls every identity from the cloud, merges them and persists
// once. It returns how many were merged.
func (c *Controller) SyncAllFromCloud(ctx context.Context) (int, error) {
	identities, err := c.cloud.FetchIdentities(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch identities: %w", err)
	}

	merged := 0
	for _, ident := range identities {
		if err := c.SyncIdentityFromCloud(ident.ID, ident.Embedding); err != nil {
			c.log.WithError(err).WithField("face_id", ident.ID).Warn("skipping cloud identity")
			continue
		}
		merged++
	}
	if merged > 0 {
		if err := c.store.Persist(ctx); err != nil {
			return merged, fmt.Errorf("persist: %w", err)
		}
	}
	c.log.WithFields(logrus.Fields{"merged": merged, "fetched": len(identities)}).Info("cloud sync complete")
	return merged, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

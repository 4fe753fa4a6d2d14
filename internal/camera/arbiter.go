package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrBusy is returned when the camera could not be acquired before the timeout.
	ErrBusy = errors.New("camera busy")
	// ErrLeaseReleased is returned by Capture on a lease that was already released.
	ErrLeaseReleased = errors.New("camera lease released")
)

// Device is the imaging sensor. Frames returned by Capture are handed back with Return.
type Device interface {
	Capture(ctx context.Context) (*Frame, error)
	Return(f *Frame)
}

// Arbiter grants exclusive, timeout-bounded access to a Device.
// There is no fairness between waiters beyond the bounded wait.
type Arbiter struct {
	dev Device
	sem *semaphore.Weighted

	acquired atomic.Int64
	busy     atomic.Int64
	held     atomic.Bool
}

// NewArbiter creates an arbiter over dev.
func NewArbiter(dev Device) *Arbiter {
	return &Arbiter{
		dev: dev,
		sem: semaphore.NewWeighted(1),
	}
}

// Acquire waits up to timeout for the camera. It returns ErrBusy when the timeout
// elapses and the context error when ctx ends first. A non-positive timeout only
// succeeds if the camera is free right now.
func (a *Arbiter) Acquire(ctx context.Context, timeout time.Duration) (*Lease, error) {
	if timeout <= 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !a.sem.TryAcquire(1) {
			a.busy.Add(1)
			return nil, ErrBusy
		}
		return a.grant(), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.busy.Add(1)
		return nil, ErrBusy
	}
	return a.grant(), nil
}

func (a *Arbiter) grant() *Lease {
	a.acquired.Add(1)
	a.held.Store(true)
	return &Lease{arb: a}
}

// Held reports whether some caller currently holds the camera.
func (a *Arbiter) Held() bool {
	return a.held.Load()
}

// Stats is a snapshot of arbiter counters.
type Stats struct {
	Held     bool  `json:"held"`
	Acquired int64 `json:"acquired"`
	Busy     int64 `json:"busy"`
}

// Stats returns the acquisition counters.
func (a *Arbiter) Stats() Stats {
	return Stats{
		Held:     a.held.Load(),
		Acquired: a.acquired.Load(),
		Busy:     a.busy.Load(),
	}
}

// Lease is exclusive ownership of the camera. Release must be called on every path.
type Lease struct {
	arb *Arbiter

	mu       sync.Mutex
	frames   []*Frame
	released bool
}

// Capture takes a frame. The frame stays valid until Release.
func (l *Lease) Capture(ctx context.Context) (*Frame, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil, ErrLeaseReleased
	}
	f, err := l.arb.dev.Capture(ctx)
	if err != nil {
		return nil, err
	}
	l.frames = append(l.frames, f)
	return f, nil
}

// Release returns every outstanding frame to the device and frees the camera.
// Calling it more than once is a no-op.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return
	}
	l.released = true
	for _, f := range l.frames {
		l.arb.dev.Return(f)
	}
	l.frames = nil
	l.arb.held.Store(false)
	l.arb.sem.Release(1)
}

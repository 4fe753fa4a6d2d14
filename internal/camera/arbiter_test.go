package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDevice struct {
	mu       sync.Mutex
	captured int
	returned int
	err      error
}

func (d *fakeDevice) Capture(ctx context.Context) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.captured++
	return &Frame{Data: make([]byte, 4096), Format: FormatJPEG, Timestamp: time.Now()}, nil
}

func (d *fakeDevice) Return(f *Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.returned++
}

func TestAcquire_TimeoutThenImmediateAfterRelease(t *testing.T) {
	arb := NewArbiter(&fakeDevice{})
	ctx := context.Background()

	holder, err := arb.Acquire(ctx, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	start := time.Now()
	if _, err := arb.Acquire(ctx, 20*time.Millisecond); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if waited := time.Since(start); waited < 15*time.Millisecond {
		t.Errorf("returned after %v, expected to wait for the timeout", waited)
	}

	holder.Release()

	start = time.Now()
	lease, err := arb.Acquire(ctx, time.Second)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	defer lease.Release()
	if waited := time.Since(start); waited > 100*time.Millisecond {
		t.Errorf("Acquire after release took %v", waited)
	}
}

func TestAcquire_ZeroTimeout(t *testing.T) {
	arb := NewArbiter(&fakeDevice{})

	lease, err := arb.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("Acquire on free camera: %v", err)
	}
	if _, err := arb.Acquire(context.Background(), 0); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	lease.Release()
}

func TestAcquire_ContextCanceled(t *testing.T) {
	arb := NewArbiter(&fakeDevice{})
	holder, _ := arb.Acquire(context.Background(), time.Second)
	defer holder.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := arb.Acquire(ctx, 5*time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAcquire_SingleHolder(t *testing.T) {
	arb := NewArbiter(&fakeDevice{})

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				lease, err := arb.Acquire(context.Background(), time.Second)
				if err != nil {
					continue
				}
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(100 * time.Microsecond)
				inside.Add(-1)
				lease.Release()
			}
		}()
	}
	wg.Wait()

	if got := maxSeen.Load(); got != 1 {
		t.Errorf("observed %d concurrent holders", got)
	}
}

func TestLease_ReleaseReturnsFramesOnce(t *testing.T) {
	dev := &fakeDevice{}
	arb := NewArbiter(dev)

	lease, err := arb.Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	for range 3 {
		if _, err := lease.Capture(context.Background()); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}
	if !arb.Held() {
		t.Error("arbiter not marked held")
	}

	lease.Release()
	lease.Release()

	if dev.returned != 3 {
		t.Errorf("returned %d frames, want 3", dev.returned)
	}
	if arb.Held() {
		t.Error("arbiter still marked held")
	}
	if _, err := lease.Capture(context.Background()); !errors.Is(err, ErrLeaseReleased) {
		t.Errorf("Capture after release: expected ErrLeaseReleased, got %v", err)
	}

	// the double release must not have freed a second slot
	a, _ := arb.Acquire(context.Background(), time.Second)
	if _, err := arb.Acquire(context.Background(), 10*time.Millisecond); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy while held, got %v", err)
	}
	a.Release()
}

func TestLease_CaptureError(t *testing.T) {
	dev := &fakeDevice{err: errors.New("sensor timeout")}
	arb := NewArbiter(dev)

	lease, _ := arb.Acquire(context.Background(), time.Second)
	if _, err := lease.Capture(context.Background()); err == nil {
		t.Error("expected capture error")
	}
	lease.Release()
	if dev.returned != 0 {
		t.Errorf("returned %d frames, want 0", dev.returned)
	}
}

func TestArbiter_Stats(t *testing.T) {
	arb := NewArbiter(&fakeDevice{})
	lease, _ := arb.Acquire(context.Background(), time.Second)
	_, _ = arb.Acquire(context.Background(), 0)
	lease.Release()

	s := arb.Stats()
	if s.Acquired != 1 || s.Busy != 1 || s.Held {
		t.Errorf("Stats = %+v", s)
	}
}

// Package lock drives the door strike: a relay held open for a fixed time and then
// released once the door sensor reports the door closed again.
package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Phase is the state of the lock sequence.
type Phase int32

const (
	PhaseClosed Phase = iota
	PhaseOpenHold
	PhaseWaitClose
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseOpenHold:
		return "open_hold"
	case PhaseWaitClose:
		return "wait_close"
	default:
		return "unknown"
	}
}

// Relay energizes the strike.
type Relay interface {
	Set(energized bool) error
}

// DoorSensor reports the door contact.
type DoorSensor interface {
	IsClosed() (bool, error)
}

// Button is the inside exit button.
type Button interface {
	Pressed() (bool, error)
}

// Config configures an Actuator.
type Config struct {
	Relay    Relay
	Sensor   DoorSensor
	Hold     time.Duration // relay stays energized at least this long
	Poll     time.Duration // door sensor poll interval
	Debounce time.Duration // wait after the door reads closed before re-checking
	OnPhase  func(Phase)   // optional, called on every transition
	Logger   logrus.FieldLogger
}

// Actuator runs at most one lock sequence at a time.
type Actuator struct {
	cfg Config
	log logrus.FieldLogger

	active    atomic.Bool
	phase     atomic.Int32
	sequences atomic.Int64
	phaseMu   sync.Mutex // orders phase publications across sequences

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewActuator creates an actuator and de-energizes the relay.
func NewActuator(cfg Config) *Actuator {
	if cfg.Hold <= 0 {
		cfg.Hold = 4 * time.Second
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 200 * time.Millisecond
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Actuator{
		cfg:    cfg,
		log:    cfg.Logger.WithField("component", "lock"),
		ctx:    ctx,
		cancel: cancel,
	}
	if err := cfg.Relay.Set(false); err != nil {
		a.log.WithError(err).Error("Failed to de-energize relay")
	}
	return a
}

// OpenDoor starts a lock sequence unless one is already running, in which case the
// call is absorbed. It never blocks and reports whether this call started a sequence.
func (a *Actuator) OpenDoor() bool {
	if a.ctx.Err() != nil {
		return false
	}
	if !a.active.CompareAndSwap(false, true) {
		a.log.Debug("Lock sequence already active, ignoring trigger")
		return false
	}
	a.sequences.Add(1)
	a.wg.Add(1)
	go a.run()
	return true
}

// Active reports whether a sequence is running.
func (a *Actuator) Active() bool {
	return a.active.Load()
}

// Phase returns the current phase.
func (a *Actuator) Phase() Phase {
	return Phase(a.phase.Load())
}

// Sequences returns how many sequences have been started.
func (a *Actuator) Sequences() int64 {
	return a.sequences.Load()
}

// Wait blocks until the running sequence, if any, has finished.
func (a *Actuator) Wait() {
	a.wg.Wait()
}

// Close aborts a running sequence, leaves the relay de-energized and rejects
// further triggers.
func (a *Actuator) Close() {
	a.cancel()
	a.wg.Wait()
}

func (a *Actuator) setPhase(p Phase) {
	a.phaseMu.Lock()
	defer a.phaseMu.Unlock()
	a.phase.Store(int32(p))
	if p == PhaseClosed {
		// Anyone who observes CLOSED must be able to start the next sequence.
		a.active.Store(false)
	}
	if a.cfg.OnPhase != nil {
		a.cfg.OnPhase(p)
	}
}

func (a *Actuator) run() {
	defer a.wg.Done()

	if err := a.cfg.Relay.Set(true); err != nil {
		a.log.WithError(err).Error("Failed to energize relay")
		a.release()
		return
	}
	a.log.Info("Relay on, door unlocked")
	a.setPhase(PhaseOpenHold)

	if a.sleep(a.cfg.Hold) {
		a.setPhase(PhaseWaitClose)
		a.waitForClose()
	}
	a.release()
}

// waitForClose returns once the door has read closed twice, a debounce apart,
// or the actuator is closed.
func (a *Actuator) waitForClose() {
	for {
		if a.doorClosed() {
			if !a.sleep(a.cfg.Debounce) {
				return
			}
			if a.doorClosed() {
				a.log.Info("Door closed, locking")
				return
			}
			continue
		}
		if !a.sleep(a.cfg.Poll) {
			return
		}
	}
}

func (a *Actuator) doorClosed() bool {
	closed, err := a.cfg.Sensor.IsClosed()
	if err != nil {
		a.log.WithError(err).Warn("Door sensor read failed")
		return false
	}
	return closed
}

func (a *Actuator) release() {
	if err := a.cfg.Relay.Set(false); err != nil {
		a.log.WithError(err).Error("Failed to de-energize relay")
	}
	a.setPhase(PhaseClosed)
}

// sleep waits for d and reports false if the actuator was closed meanwhile.
func (a *Actuator) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-a.ctx.Done():
		return false
	}
}

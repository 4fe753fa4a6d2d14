package lock

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SimulatedDoor stands in for GPIO on machines without a strike. The door "opens"
// when the relay is energized and swings shut OpenFor later. Press fakes a button push.
type SimulatedDoor struct {
	OpenFor time.Duration

	mu        sync.Mutex
	energized bool
	openedAt  time.Time
	pressed   bool
	log       logrus.FieldLogger
}

// NewSimulatedDoor creates a closed simulated door.
func NewSimulatedDoor(openFor time.Duration, log logrus.FieldLogger) *SimulatedDoor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SimulatedDoor{OpenFor: openFor, log: log.WithField("component", "simulated_door")}
}

func (d *SimulatedDoor) Set(energized bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if energized && !d.energized {
		d.openedAt = time.Now()
	}
	d.energized = energized
	d.log.WithField("energized", energized).Debug("Relay set")
	return nil
}

func (d *SimulatedDoor) IsClosed() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openedAt.IsZero() {
		return true, nil
	}
	return time.Since(d.openedAt) >= d.OpenFor, nil
}

// Energized reports the relay state.
func (d *SimulatedDoor) Energized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.energized
}

// Press queues one button press, reported by the next Pressed call.
func (d *SimulatedDoor) Press() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pressed = true
}

func (d *SimulatedDoor) Pressed() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pressed
	d.pressed = false
	return p, nil
}

// Hardware returns the simulated door as a Hardware bundle.
func (d *SimulatedDoor) Hardware() *Hardware {
	return &Hardware{Relay: d, Sensor: d, Button: d}
}

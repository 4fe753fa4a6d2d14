package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is where the kernel exposes the legacy GPIO interface.
const DefaultSysfsRoot = "/sys/class/gpio"

// Pin is one sysfs GPIO line. ActiveLow inverts the logical level.
type Pin struct {
	dir       string
	activeLow bool
}

// OpenPin exports pin number n under root (if needed) and sets its direction
// ("in" or "out").
func OpenPin(root string, n int, direction string, activeLow bool) (*Pin, error) {
	if root == "" {
		root = DefaultSysfsRoot
	}
	dir := filepath.Join(root, "gpio"+strconv.Itoa(n))

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(n)), 0o200); err != nil {
			return nil, fmt.Errorf("export gpio %d: %w", n, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte(direction), 0o644); err != nil {
		return nil, fmt.Errorf("set gpio %d direction: %w", n, err)
	}
	return &Pin{dir: dir, activeLow: activeLow}, nil
}

// Read returns the logical level of the pin.
func (p *Pin) Read() (bool, error) {
	raw, err := os.ReadFile(filepath.Join(p.dir, "value"))
	if err != nil {
		return false, fmt.Errorf("read %s: %w", p.dir, err)
	}
	switch strings.TrimSpace(string(raw)) {
	case "1":
		return !p.activeLow, nil
	case "0":
		return p.activeLow, nil
	default:
		return false, fmt.Errorf("unexpected value %q in %s", raw, p.dir)
	}
}

// Write drives the pin to the given logical level.
func (p *Pin) Write(on bool) error {
	level := "0"
	if on != p.activeLow {
		level = "1"
	}
	if err := os.WriteFile(filepath.Join(p.dir, "value"), []byte(level), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p.dir, err)
	}
	return nil
}

// GPIORelay is a relay on an output pin.
type GPIORelay struct{ Pin *Pin }

func (r GPIORelay) Set(energized bool) error { return r.Pin.Write(energized) }

// GPIODoorSensor is a door contact on an input pin; logical high means closed.
type GPIODoorSensor struct{ Pin *Pin }

func (s GPIODoorSensor) IsClosed() (bool, error) { return s.Pin.Read() }

// GPIOButton is a push button on an input pin; logical high means pressed.
type GPIOButton struct{ Pin *Pin }

func (b GPIOButton) Pressed() (bool, error) { return b.Pin.Read() }

// Hardware bundles the three lines of a door.
type Hardware struct {
	Relay  Relay
	Sensor DoorSensor
	Button Button
}

// OpenHardware opens the relay (active-low), the door contact (closed pulls the
// line low) and the exit button (active-high).
func OpenHardware(root string, relayPin, doorPin, buttonPin int) (*Hardware, error) {
	relay, err := OpenPin(root, relayPin, "out", true)
	if err != nil {
		return nil, err
	}
	door, err := OpenPin(root, doorPin, "in", true)
	if err != nil {
		return nil, err
	}
	button, err := OpenPin(root, buttonPin, "in", false)
	if err != nil {
		return nil, err
	}
	return &Hardware{
		Relay:  GPIORelay{Pin: relay},
		Sensor: GPIODoorSensor{Pin: door},
		Button: GPIOButton{Pin: button},
	}, nil
}

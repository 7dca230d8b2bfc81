package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Command is one recorded device command, for assertions in tests.
type Command struct {
	DeviceID string
	Action   string // set_temperature | turn_on | turn_off | set_position
	Value    float64
}

// Fake is an in-memory Gateway for tests and offline development.
type Fake struct {
	mu       sync.Mutex
	temps    map[string]float64
	binaries map[string]bool
	fail     map[string]error
	commands []Command
	handlers map[int]func(StateChange)
	nextID   int
}

func NewFake() *Fake {
	return &Fake{
		temps:    make(map[string]float64),
		binaries: make(map[string]bool),
		fail:     make(map[string]error),
		handlers: make(map[int]func(StateChange)),
	}
}

var _ Gateway = (*Fake)(nil)

// SetTemp seeds a sensor/thermostat temperature reading.
func (f *Fake) SetTemp(deviceID string, temp float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.temps[deviceID] = temp
}

// SetBinary seeds a window/presence sensor state.
func (f *Fake) SetBinary(deviceID string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binaries[deviceID] = on
}

// FailWith makes every command for the device return err.
func (f *Fake) FailWith(deviceID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[deviceID] = err
}

// Commands returns a copy of all recorded commands, in order.
func (f *Fake) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.commands))
	copy(out, f.commands)
	return out
}

func (f *Fake) ReadTemperature(_ context.Context, deviceID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.temps[deviceID]
	if !ok {
		return 0, fmt.Errorf("read temperature %q: %w", deviceID, ErrDeviceUnavailable)
	}
	return t, nil
}

func (f *Fake) ReadBinary(_ context.Context, deviceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.binaries[deviceID]
	if !ok {
		return false, fmt.Errorf("read binary %q: %w", deviceID, ErrDeviceUnavailable)
	}
	return b, nil
}

func (f *Fake) SetTemperature(_ context.Context, deviceID string, temp float64) error {
	return f.record(deviceID, "set_temperature", temp)
}

func (f *Fake) TurnOn(_ context.Context, deviceID string) error {
	return f.record(deviceID, "turn_on", 0)
}

func (f *Fake) TurnOff(_ context.Context, deviceID string) error {
	return f.record(deviceID, "turn_off", 0)
}

func (f *Fake) SetValvePosition(_ context.Context, deviceID string, position int) error {
	return f.record(deviceID, "set_position", float64(position))
}

func (f *Fake) record(deviceID, action string, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[deviceID]; err != nil {
		return err
	}
	f.commands = append(f.commands, Command{DeviceID: deviceID, Action: action, Value: value})
	return nil
}

func (f *Fake) Subscribe(handler func(StateChange)) (func(), error) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}, nil
}

// Fire delivers a state change to every subscriber, as a device report would.
func (f *Fake) Fire(change StateChange) {
	if change.At.IsZero() {
		change.At = time.Now()
	}
	f.mu.Lock()
	handlers := make([]func(StateChange), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(change)
	}
}

// Package gateway abstracts the device layer: reading sensor values, issuing
// thermostat/switch/valve commands, and delivering external state-change
// notifications keyed by device id.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned when a device has not reported a value yet
// or its last report is stale.
var ErrDeviceUnavailable = errors.New("device unavailable")

// StateChange is an external notification that a device reported new state.
// Pointer fields are nil when the report did not include that attribute.
type StateChange struct {
	DeviceID           string
	TargetTemperature  *float64 // thermostat setpoint as reported by the device
	CurrentTemperature *float64
	Binary             *bool // window contact, presence, switch state
	At                 time.Time
}

// Gateway is the device abstraction consumed by the heating engine.
type Gateway interface {
	// ReadTemperature returns the last temperature reported by a sensor or
	// thermostat.
	ReadTemperature(ctx context.Context, deviceID string) (float64, error)
	// ReadBinary returns the open/closed (window) or home/away (presence)
	// state of a binary sensor.
	ReadBinary(ctx context.Context, deviceID string) (bool, error)
	// SetTemperature commands a thermostat or TRV setpoint.
	SetTemperature(ctx context.Context, deviceID string, temp float64) error
	// TurnOn / TurnOff command switches, pumps and relays.
	TurnOn(ctx context.Context, deviceID string) error
	TurnOff(ctx context.Context, deviceID string) error
	// SetValvePosition commands a motorized valve, 0 (closed) to 100 (open).
	SetValvePosition(ctx context.Context, deviceID string, position int) error
	// Subscribe registers a handler for external state changes. The returned
	// function unsubscribes.
	Subscribe(handler func(StateChange)) (func(), error)
}

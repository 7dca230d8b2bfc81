package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"smart_heating/internal/logger"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// MQTTGateway speaks the zigbee2mqtt topic convention: device state arrives on
// <base>/<device>, commands go to <base>/<device>/set.
type MQTTGateway struct {
	client    paho.Client
	baseTopic string
	log       *logger.Logger

	mu       sync.RWMutex
	states   map[string]deviceState
	handlers map[int]func(StateChange)
	nextID   int
}

type deviceState struct {
	temperature *float64
	setpoint    *float64
	binary      *bool
	updatedAt   time.Time
}

// MQTTConfig carries broker connection settings.
type MQTTConfig struct {
	BrokerURL string
	BaseTopic string
	Username  string
	Password  string
}

// NewMQTTGateway connects to the broker and subscribes to all device topics
// under the base topic.
func NewMQTTGateway(cfg MQTTConfig, log *logger.Logger) (*MQTTGateway, error) {
	g := &MQTTGateway{
		baseTopic: strings.TrimSuffix(cfg.BaseTopic, "/"),
		log:       log,
		states:    make(map[string]deviceState),
		handlers:  make(map[int]func(StateChange)),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID("smart-heating").
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			// (Re)subscribe after every connect; paho drops subscriptions on
			// a clean-session reconnect.
			token := c.Subscribe(g.baseTopic+"/+", 0, g.onMessage)
			if token.WaitTimeout(connectTimeout) && token.Error() != nil {
				log.Errorw("mqtt_subscribe_failed", "err", token.Error())
			}
		})

	g.client = paho.NewClient(opts)
	token := g.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout to %q", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker %q: %w", cfg.BrokerURL, err)
	}

	return g, nil
}

var _ Gateway = (*MQTTGateway)(nil)

// onMessage parses a device report, updates the cache and notifies subscribers.
func (g *MQTTGateway) onMessage(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	deviceID := strings.TrimPrefix(topic, g.baseTopic+"/")
	if deviceID == topic || strings.Contains(deviceID, "/") {
		return // not a plain device topic
	}

	var payload map[string]any
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		g.log.Debugw("mqtt_payload_not_json", "topic", topic)
		return
	}

	change := StateChange{DeviceID: deviceID, At: time.Now()}
	st := deviceState{updatedAt: change.At}

	if v, ok := numberField(payload, "local_temperature", "temperature"); ok {
		st.temperature = &v
		change.CurrentTemperature = &v
	}
	if v, ok := numberField(payload, "current_heating_setpoint", "occupied_heating_setpoint"); ok {
		st.setpoint = &v
		change.TargetTemperature = &v
	}
	if b, ok := binaryField(payload); ok {
		st.binary = &b
		change.Binary = &b
	}

	g.mu.Lock()
	prev := g.states[deviceID]
	if st.temperature == nil {
		st.temperature = prev.temperature
	}
	if st.setpoint == nil {
		st.setpoint = prev.setpoint
	}
	if st.binary == nil {
		st.binary = prev.binary
	}
	g.states[deviceID] = st
	handlers := make([]func(StateChange), 0, len(g.handlers))
	for _, h := range g.handlers {
		handlers = append(handlers, h)
	}
	g.mu.Unlock()

	for _, h := range handlers {
		h(change)
	}
}

// numberField returns the first numeric field found under the given keys.
func numberField(payload map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := payload[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

// binaryField normalizes the various on/open/home conventions devices use.
// zigbee2mqtt contact sensors report contact=true when CLOSED.
func binaryField(payload map[string]any) (bool, bool) {
	if v, ok := payload["contact"].(bool); ok {
		return !v, true
	}
	if v, ok := payload["occupancy"].(bool); ok {
		return v, true
	}
	if v, ok := payload["state"].(string); ok {
		switch strings.ToLower(v) {
		case "on", "open", "home", "detected", "true":
			return true, true
		case "off", "closed", "away", "clear", "false":
			return false, true
		}
	}
	return false, false
}

func (g *MQTTGateway) ReadTemperature(_ context.Context, deviceID string) (float64, error) {
	g.mu.RLock()
	st, ok := g.states[deviceID]
	g.mu.RUnlock()
	if !ok || st.temperature == nil {
		return 0, fmt.Errorf("read temperature %q: %w", deviceID, ErrDeviceUnavailable)
	}
	return *st.temperature, nil
}

func (g *MQTTGateway) ReadBinary(_ context.Context, deviceID string) (bool, error) {
	g.mu.RLock()
	st, ok := g.states[deviceID]
	g.mu.RUnlock()
	if !ok || st.binary == nil {
		return false, fmt.Errorf("read binary %q: %w", deviceID, ErrDeviceUnavailable)
	}
	return *st.binary, nil
}

func (g *MQTTGateway) SetTemperature(ctx context.Context, deviceID string, temp float64) error {
	return g.publishSet(ctx, deviceID, map[string]any{"current_heating_setpoint": temp})
}

func (g *MQTTGateway) TurnOn(ctx context.Context, deviceID string) error {
	return g.publishSet(ctx, deviceID, map[string]any{"state": "ON"})
}

func (g *MQTTGateway) TurnOff(ctx context.Context, deviceID string) error {
	return g.publishSet(ctx, deviceID, map[string]any{"state": "OFF"})
}

func (g *MQTTGateway) SetValvePosition(ctx context.Context, deviceID string, position int) error {
	return g.publishSet(ctx, deviceID, map[string]any{"position": position})
}

func (g *MQTTGateway) publishSet(_ context.Context, deviceID string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal command for %q: %w", deviceID, err)
	}

	// QoS 1: device commands must not be silently dropped.
	token := g.client.Publish(g.baseTopic+"/"+deviceID+"/set", 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %q: timeout", deviceID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %q: %w", deviceID, err)
	}
	return nil
}

// Subscribe registers a state-change handler and returns its unsubscribe func.
func (g *MQTTGateway) Subscribe(handler func(StateChange)) (func(), error) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.handlers[id] = handler
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.handlers, id)
		g.mu.Unlock()
	}, nil
}

// Close disconnects from the broker.
func (g *MQTTGateway) Close() {
	g.client.Disconnect(1000) // milliseconds
}

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	uuid "github.com/google/uuid"

	"github.com/tiiuae/uav_bridge/internal/types"
)

const (
	qos    = 1
	retain = false
)

type telemetry struct {
	Timestamp int64
	MessageID string

	Quick  types.QuickView
	Mode   types.FlightMode
	Armed  bool
	Status string
}

// Publisher forwards vehicle states to the device's telemetry topic, at most
// ten times a second and only when a newer state has arrived.
type Publisher struct {
	client   mqtt.Client
	deviceID string

	mu      sync.Mutex
	sent    bool
	current telemetry
}

func NewPublisher(client mqtt.Client, deviceID string) *Publisher {
	return &Publisher{client: client, deviceID: deviceID, sent: true}
}

func (p *Publisher) Receive(message types.Message) {
	if message.MessageType != types.MessageVehicleState {
		return
	}
	state, ok := message.Message.(types.VehicleState)
	if !ok {
		return
	}
	p.mu.Lock()
	p.current.Quick = state.Quick()
	p.current.Mode = state.Mode
	p.current.Armed = state.Armed
	p.current.Status = state.SystemStatus
	p.sent = false
	p.mu.Unlock()
}

// Run is the 10/s send loop.
func (p *Publisher) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	defer wg.Done()

	topic := fmt.Sprintf("/devices/%s/%s", p.deviceID, "events/telemetry")
	for {
		select {
		case <-time.After(100 * time.Millisecond):
			p.mu.Lock()
			if p.sent {
				// there's no new data to send
				p.mu.Unlock()
				break
			}
			p.current.Timestamp = time.Now().UnixNano() / 1000
			p.current.MessageID = uuid.New().String()
			b, _ := json.Marshal(p.current)
			p.sent = true
			p.mu.Unlock()
			p.client.Publish(topic, qos, retain, string(b))
		case <-ctx.Done():
			return
		}
	}
}

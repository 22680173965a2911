package missionsource

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/missionfile"
	"github.com/tiiuae/uav_bridge/internal/types"
)

const qos = 1

// MQTT keeps the latest route published on a (normally retained) topic.
type MQTT struct {
	topic string
	wait  time.Duration

	mu       sync.Mutex
	route    []types.Waypoint
	received chan struct{}
}

// NewMQTT subscribes to topic. FetchWaypoints waits up to wait for the first
// route to arrive.
func NewMQTT(client mqtt.Client, topic string, wait time.Duration) (*MQTT, error) {
	m := &MQTT{
		topic:    topic,
		wait:     wait,
		received: make(chan struct{}),
	}
	token := client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		m.handle(msg.Payload())
	})
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return nil, errors.WithMessagef(err, "subscribe %s", topic)
	}
	log.Printf("Waiting for mission route on %s", topic)
	return m, nil
}

func (m *MQTT) handle(payload []byte) {
	wps, err := missionfile.DecodeWaypoints(payload)
	if err != nil {
		log.Printf("Could not unmarshal route from %s: %v", m.topic, err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route = wps
	select {
	case <-m.received:
	default:
		close(m.received)
	}
	log.Printf("Got mission route with %d waypoints", len(wps))
}

func (m *MQTT) FetchWaypoints(ctx context.Context) ([]types.Waypoint, error) {
	timer := time.NewTimer(m.wait)
	defer timer.Stop()
	select {
	case <-m.received:
	case <-timer.C:
		return nil, errors.Errorf("no route received on %s within %s", m.topic, m.wait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Waypoint, len(m.route))
	copy(out, m.route)
	return out, nil
}

// Package commands executes control commands arriving over MQTT and
// publishes their results.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/failure"
	"github.com/tiiuae/uav_bridge/internal/types"
)

const (
	qos    = 1
	retain = false
)

type deviceState struct {
	StartedAt time.Time `json:"started_at"`
	Message   string    `json:"message"`
}

// Bridge is a bus handler that owns the MQTT command subscription.
type Bridge struct {
	client     mqtt.Client
	deviceID   string
	dispatcher *Dispatcher
	commands   chan []byte
}

func NewBridge(client mqtt.Client, deviceID string, dispatcher *Dispatcher) *Bridge {
	return &Bridge{
		client:     client,
		deviceID:   deviceID,
		dispatcher: dispatcher,
		commands:   make(chan []byte, 16),
	}
}

func (b *Bridge) Receive(message types.Message) {
}

// Run subscribes to the device's command topics and executes control
// commands one at a time until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	defer wg.Done()

	log.Printf("Subscribing to MQTT commands")
	commandTopic := fmt.Sprintf("/devices/%s/commands/", b.deviceID)
	token := b.client.Subscribe(fmt.Sprintf("%v#", commandTopic), qos, func(client mqtt.Client, msg mqtt.Message) {
		subfolder := strings.TrimPrefix(msg.Topic(), commandTopic)
		switch subfolder {
		case "control":
			log.Printf("Got control command: %v", string(msg.Payload()))
			select {
			case b.commands <- msg.Payload():
			default:
				log.Warnf("Command queue full, dropping: %v", string(msg.Payload()))
			}
		default:
			log.Printf("Unknown command subfolder: %v", subfolder)
		}
	})
	if !token.WaitTimeout(10 * time.Second) {
		log.Errorf("Subscribe to %s# timed out", commandTopic)
		return
	}
	if err := token.Error(); err != nil {
		log.Errorf("Error on subscribe: %v", err)
		return
	}
	b.publishDeviceState()

	for {
		select {
		case <-ctx.Done():
			b.client.Unsubscribe(fmt.Sprintf("%v#", commandTopic))
			return
		case data := <-b.commands:
			reply := b.handle(ctx, data)
			b.publishReply(reply)
			post(types.CreateMessage(types.MessageCommandResult, "commands", "*", reply))
		}
	}
}

func (b *Bridge) handle(ctx context.Context, data []byte) Reply {
	cmd, err := Decode(data)
	if err != nil {
		return Reply{
			ID:      cmd.ID,
			Command: cmd.Command,
			Error:   &ReplyError{Kind: failure.KindOf(err).String(), Message: err.Error()},
		}
	}
	return b.dispatcher.Dispatch(ctx, cmd)
}

func (b *Bridge) publishReply(reply Reply) {
	payload, err := json.Marshal(reply)
	if err != nil {
		log.Printf("Could not marshal reply: %v", err)
		return
	}
	topic := fmt.Sprintf("/devices/%s/events/command-result", b.deviceID)
	tok := b.client.Publish(topic, qos, retain, payload)
	if !tok.WaitTimeout(10 * time.Second) {
		log.Printf("Could not send command result within 10s")
		return
	}
	if err := tok.Error(); err != nil {
		log.Printf("Could not send command result: %v", err)
	}
}

func (b *Bridge) publishDeviceState() {
	topic := fmt.Sprintf("/devices/%s/state", b.deviceID)
	msg := deviceState{
		StartedAt: time.Now().UTC(),
		Message:   "uav bridge started",
	}
	payload, _ := json.Marshal(msg)
	b.client.Publish(topic, qos, retain, payload)
}

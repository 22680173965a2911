package types

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

type logger struct {
}

// NewLogger returns a bus receiver that logs all traffic except the
// high-rate vehicle state snapshots.
func NewLogger() MessageHandler {
	return &logger{}
}

func (l *logger) Receive(message Message) {
	if message.MessageType == MessageVehicleState {
		return
	}

	b, _ := json.Marshal(message.Message)
	log.Printf("Message: %s (%s -> %s): %s", message.MessageType, message.From, message.To, string(b))
}

func (l *logger) Run(ctx context.Context, wg *sync.WaitGroup, post PostFn) {
}

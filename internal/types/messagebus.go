package types

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

type PostFn = func(msg Message)

type MessageHandler interface {
	Run(ctx context.Context, wg *sync.WaitGroup, post PostFn)
	Receive(message Message)
}

// MessageBus delivers every posted message to all receivers in posting order.
type MessageBus struct {
	bus       chan Message
	receivers []MessageHandler
}

func NewMessageBus(bus chan Message, receivers ...MessageHandler) *MessageBus {
	return &MessageBus{bus, receivers}
}

func (mb *MessageBus) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	defer wg.Done()

	for _, x := range mb.receivers {
		go x.Run(ctx, wg, mb.post)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-mb.bus:
			for _, x := range mb.receivers {
				x.Receive(msg)
			}
		}
	}
}

// post blocks while the bus is full, except for vehicle state snapshots:
// those are superseded by the next poll and get dropped instead.
func (mb *MessageBus) post(msg Message) {
	busLen := len(mb.bus)
	busCapacity := cap(mb.bus)
	if busLen > busCapacity/2 {
		log.Warnf("Bus capacity over 50%% [ %d / %d ]", busLen, busCapacity)
	}

	if msg.MessageType != MessageVehicleState {
		mb.bus <- msg
		return
	}

	select {
	case mb.bus <- msg:
	default:
		log.Warn("Bus full, vehicle state dropped")
	}
}

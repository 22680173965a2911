package types

import (
	"time"

	"github.com/google/uuid"
)

// Bus message types
const (
	MessageVehicleState  = "vehicle-state"
	MessageCommandResult = "command-result"
)

type Message struct {
	Timestamp   time.Time   `json:"timestamp"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	ID          string      `json:"id"`
	MessageType string      `json:"message_type"`
	Message     interface{} `json:"message"`
}

func CreateMessage(messageType, from, to string, message interface{}) Message {
	return Message{
		Timestamp:   time.Now().UTC(),
		From:        from,
		To:          to,
		ID:          uuid.New().String(),
		MessageType: messageType,
		Message:     message,
	}
}

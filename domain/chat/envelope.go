package chat

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventMessage is the only realtime event interpreted by the server.
const EventMessage = "message"

// Envelope is the realtime frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MessagePayload is the data of an inbound "message" event.
type MessagePayload struct {
	Content string `json:"content"`
}

// BroadcastPayload is the data of an outbound "message" event.
type BroadcastPayload struct {
	Chat    uuid.UUID `json:"chat"`
	User    uuid.UUID `json:"user"`
	Content string    `json:"content"`
}

// EncodeBroadcast builds the frame pushed to the peers of the author.
func EncodeBroadcast(cmd PostMessageCommand) ([]byte, error) {
	data, err := json.Marshal(BroadcastPayload{
		Chat:    cmd.ChatID,
		User:    cmd.AuthorID,
		Content: cmd.Content,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: EventMessage, Data: data})
}

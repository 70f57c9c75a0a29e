package runtime

import (
	"chat-service/contract"
	"chat-service/domain/chat"
	"log/slog"
)

var _ contract.IDispatcher = (*Dispatcher)(nil)

// Dispatcher delivers an accepted message to every other session of its room.
//
// Delivery is best-effort: each peer gets a non-blocking enqueue on its own
// outbound queue, so a backed-up peer never delays the others or the sender.
// Failures are not reported to the sender.
type Dispatcher struct {
	registry contract.IRegistry
	log      *slog.Logger
}

func NewDispatcher(registry contract.IRegistry, log *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: log}
}

// Broadcast returns the number of peers the frame was queued for.
func (d *Dispatcher) Broadcast(origin contract.SessionSink, cmd chat.PostMessageCommand) int {
	frame, err := chat.EncodeBroadcast(cmd)
	if err != nil {
		d.log.Error("Failed to encode broadcast frame", "chat_id", cmd.ChatID, "error", err)
		return 0
	}

	delivered := 0
	for _, peer := range d.registry.Snapshot(cmd.ChatID) {
		if peer.ID() == origin.ID() {
			continue
		}
		if !peer.Deliver(frame) {
			d.log.Debug("Frame not delivered to peer",
				"chat_id", cmd.ChatID,
				"session_id", peer.ID(),
				"user_id", peer.UserID())
			continue
		}
		delivered++
	}
	return delivered
}

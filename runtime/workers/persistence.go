package workers

import (
	"chat-service/contract"
	"chat-service/domain/chat"
	"chat-service/errors"
	"context"
	goerrors "errors"
	"log/slog"
	"time"
)

const retryBackoff = 50 * time.Millisecond

var _ contract.Worker = (*PersistenceWorker)(nil)

// PersistenceWorker stores the messages accepted on live connections.
// Several workers may consume the same queue.
type PersistenceWorker struct {
	log         *slog.Logger
	writer      contract.IMessageWriter
	queue       <-chan chat.PostMessageCommand
	timeout     time.Duration
	maxAttempts int
}

func NewPersistenceWorker(
	log *slog.Logger,
	writer contract.IMessageWriter,
	queue <-chan chat.PostMessageCommand,
	timeout time.Duration,
	maxAttempts int) *PersistenceWorker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &PersistenceWorker{
		log:         log,
		writer:      writer,
		queue:       queue,
		timeout:     timeout,
		maxAttempts: maxAttempts,
	}
}

// Run consumes the queue until ctx is canceled, then stores whatever is
// still buffered before returning.
func (w *PersistenceWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case cmd, ok := <-w.queue:
			if !ok {
				return nil
			}
			w.Persist(cmd)
		}
	}
}

func (w *PersistenceWorker) drain() {
	for {
		select {
		case cmd, ok := <-w.queue:
			if !ok {
				return
			}
			w.Persist(cmd)
		default:
			return
		}
	}
}

// Persist writes one message under its own deadline. The outcome is only
// logged: nobody is waiting for it.
func (w *PersistenceWorker) Persist(cmd chat.PostMessageCommand) bool {
	log := w.log.With("chat_id", cmd.ChatID, "user_id", cmd.AuthorID)

	var err error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err = w.write(cmd)
		if err == nil {
			log.Debug("Message persisted", "attempt", attempt)
			return true
		}
		if !retryable(err) || attempt == w.maxAttempts {
			break
		}
		log.Warn("Message persistence failed, retrying", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * retryBackoff)
	}
	log.Error("Failed to persist message", "error", err)
	return false
}

func (w *PersistenceWorker) write(cmd chat.PostMessageCommand) error {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	_, err := w.writer.CreateMessage(ctx, cmd)
	return err
}

// A rejected message or a vanished chat will not succeed on a second try.
func retryable(err error) bool {
	return !goerrors.Is(err, errors.ErrValidation) && !goerrors.Is(err, errors.ErrNotFound)
}

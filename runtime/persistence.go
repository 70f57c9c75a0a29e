package runtime

import (
	"chat-service/contract"
	"chat-service/domain/chat"
	"chat-service/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"time"
)

var _ contract.IPersistenceBridge = (*PersistenceBridge)(nil)

type PersistenceConfig struct {
	QueueSize   int
	Workers     int
	Timeout     time.Duration
	MaxAttempts int
}

// PersistenceBridge moves message writes off the connection read loop.
//
// While running, Submit never blocks: the command goes to a buffered queue
// consumed by a supervised worker pool, or to a detached goroutine when the
// queue is full or the pool is not started yet. Either way the write outlives
// the connection that produced it.
type PersistenceBridge struct {
	log        *slog.Logger
	queue      chan chat.PostMessageCommand
	supervisor contract.ISupervisor
	workers    []*workers.PersistenceWorker
	fallback   *workers.PersistenceWorker

	mu       sync.RWMutex
	stopped  bool
	cancel   context.CancelFunc
	running  chan struct{}
	detached sync.WaitGroup
}

func NewPersistenceBridge(log *slog.Logger, writer contract.IMessageWriter,
	supervisor contract.ISupervisor, config PersistenceConfig) *PersistenceBridge {
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	log = log.With("component", "persistence")
	queue := make(chan chat.PostMessageCommand, config.QueueSize)

	pool := make([]*workers.PersistenceWorker, 0, config.Workers)
	for i := 0; i < config.Workers; i++ {
		pool = append(pool, workers.NewPersistenceWorker(log, writer, queue, config.Timeout, config.MaxAttempts))
	}
	return &PersistenceBridge{
		log:        log,
		queue:      queue,
		supervisor: supervisor,
		workers:    pool,
		fallback:   workers.NewPersistenceWorker(log, writer, nil, config.Timeout, config.MaxAttempts),
	}
}

// Start launches the worker pool in the background. The pool stops when ctx
// is canceled or Stop is called.
func (b *PersistenceBridge) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running != nil || b.stopped {
		return
	}

	ctx, b.cancel = context.WithCancel(ctx)
	for _, w := range b.workers {
		b.supervisor.Add(w)
	}
	b.running = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		b.supervisor.Run(ctx)
	}(b.running)
}

// Submit hands a message over for storage. Until Stop it returns
// immediately. Once the bridge is stopped nothing drains it anymore, so the
// message is written before Submit returns.
func (b *PersistenceBridge) Submit(cmd chat.PostMessageCommand) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		b.log.Debug("Persistence stopped, writing inline", "chat_id", cmd.ChatID)
		b.fallback.Persist(cmd)
		return
	}
	if b.running != nil {
		select {
		case b.queue <- cmd:
			return
		default:
			b.log.Warn("Persistence queue full, writing in background", "capacity", cap(b.queue))
		}
	}
	// Only reached while not stopped: Stop waits on detached after taking the
	// write lock, so no Add can race its Wait.
	b.detached.Add(1)
	go func() {
		defer b.detached.Done()
		b.fallback.Persist(cmd)
	}()
}

// Stop waits for the pool to exit, writes whatever it left in the queue and
// waits for every background write to end.
func (b *PersistenceBridge) Stop() {
	b.mu.Lock()
	b.stopped = true
	cancel, running := b.cancel, b.running
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		b.supervisor.Stop()
		<-running
	}
	// A worker canceled before its first run, or during a restart backoff,
	// never drains. The queue is closed to new commands from here on.
	if left := b.drain(); left > 0 {
		b.log.Info("Wrote messages left in the queue", "count", left)
	}
	b.detached.Wait()
	b.log.Info("Persistence stopped")
}

func (b *PersistenceBridge) drain() int {
	count := 0
	for {
		select {
		case cmd := <-b.queue:
			b.fallback.Persist(cmd)
			count++
		default:
			return count
		}
	}
}

// Pending is the number of messages waiting in the queue.
func (b *PersistenceBridge) Pending() int {
	return len(b.queue)
}

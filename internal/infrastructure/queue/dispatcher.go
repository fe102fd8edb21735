package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/assurminut/crm-identity/internal/api/metrics"
	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

var _ ports.AuditRecorder = (*Dispatcher)(nil)

// Dispatcher routes audit events to a fixed set of workers using consistent
// hashing on the target account id, guaranteeing per-account event ordering.
type Dispatcher struct {
	workers []chan domain.AuditEvent
	sink    ports.AuditSink
	log     zerolog.Logger

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers, each
// buffering up to queueSize events. Non-positive values fall back to the
// defaults.
func NewDispatcher(numWorkers, queueSize int, sink ports.AuditSink, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = channelBuffer
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuditEvent, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditEvent, queueSize)
	}
	return d
}

// Start launches all worker goroutines. Workers drain their queue and exit
// after Stop.
func (d *Dispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Record hands an event to the worker responsible for its target. It never
// blocks: when that worker's queue is full the event is dropped and counted.
func (d *Dispatcher) Record(event domain.AuditEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		metrics.AuditDroppedTotal.Inc()
		return
	}

	id := d.shardIndex(event.TargetID)
	select {
	case d.workers[id] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(d.workers[id])))
	default:
		metrics.AuditDroppedTotal.Inc()
		d.log.Warn().
			Str("action", string(event.Action)).
			Str("target_id", event.TargetID).
			Int("worker_id", id).
			Msg("audit queue full, event dropped")
	}
}

// Stop closes the queues and waits for workers to flush pending events or
// for ctx to end, whichever comes first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps a target id deterministically to a worker index.
func (d *Dispatcher) shardIndex(targetID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(targetID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan domain.AuditEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for event := range ch {
		metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := d.sink.Write(ctx, event)
		cancel()
		if err != nil {
			d.log.Error().Err(err).
				Str("event_id", event.ID).
				Str("action", string(event.Action)).
				Str("target_id", event.TargetID).
				Int("worker_id", id).
				Msg("audit write failed")
		}
	}
}

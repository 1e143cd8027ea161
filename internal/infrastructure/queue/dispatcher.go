package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/api/metrics"
)

const (
	defaultWorkers = 2
	channelBuffer  = 256
	deleteTimeout  = 30 * time.Second
)

// ObjectDeleter removes a stored object by key.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Dispatcher deletes orphaned media objects in the background. Keys are
// sharded over a fixed set of workers by hash, so repeated requests for the
// same key are handled in order by one worker.
type Dispatcher struct {
	workers []chan string
	deleter ObjectDeleter
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, deleter ObjectDeleter, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan string, numWorkers),
		deleter: deleter,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan string, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Reclaim schedules keys for deletion. It never blocks: when a worker's
// queue is full the key is dropped and logged.
func (d *Dispatcher) Reclaim(keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		idx := d.shardIndex(key)
		select {
		case d.workers[idx] <- key:
			metrics.MediaCleanupQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		default:
			metrics.MediaCleanupTotal.WithLabelValues("dropped").Inc()
			d.log.Warn().Str("key", key).Msg("media cleanup queue full, object left in storage")
		}
	}
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-ch:
			if !ok {
				return
			}
			metrics.MediaCleanupQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
			d.delete(ctx, id, key)
		}
	}
}

func (d *Dispatcher) delete(ctx context.Context, id int, key string) {
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := d.deleter.Delete(ctx, key); err != nil {
		metrics.MediaCleanupTotal.WithLabelValues("error").Inc()
		d.log.Error().Err(err).
			Str("key", key).
			Int("worker_id", id).
			Msg("media cleanup failed")
		return
	}
	metrics.MediaCleanupTotal.WithLabelValues("deleted").Inc()
	d.log.Debug().Str("key", key).Int("worker_id", id).Msg("orphaned media deleted")
}

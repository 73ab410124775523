package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// ErrStopped is returned for work submitted after Stop.
var ErrStopped = errors.New("serializer stopped")

// Job states. A job leaves pending exactly once: the worker claims it or the
// submitter withdraws it.
const (
	jobPending int32 = iota
	jobRunning
	jobWithdrawn
)

type job struct {
	ctx   context.Context
	key   string
	fn    func(ctx context.Context) error
	state atomic.Int32
	done  chan error
}

// Serializer routes work to a fixed set of workers using consistent hashing on
// a key, so two jobs for the same key never run concurrently and run in
// submission order. Jobs for different keys proceed in parallel.
type Serializer struct {
	mu      sync.RWMutex
	closed  bool
	workers []chan *job
	wg      sync.WaitGroup
	depth   *prometheus.GaugeVec
	log     zerolog.Logger
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithDepthGauge reports the number of pending jobs per worker on g, which
// must carry a single "worker_id" label.
func WithDepthGauge(g *prometheus.GaugeVec) Option {
	return func(s *Serializer) { s.depth = g }
}

// NewSerializer creates a Serializer with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewSerializer(numWorkers int, log zerolog.Logger, opts ...Option) *Serializer {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	s := &Serializer{
		workers: make([]chan *job, numWorkers),
		log:     log,
	}
	for i := range s.workers {
		s.workers[i] = make(chan *job, channelBuffer)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches all worker goroutines. They run until Stop.
func (s *Serializer) Start() {
	for i, ch := range s.workers {
		s.wg.Add(1)
		go func(id int, ch <-chan *job) {
			defer s.wg.Done()
			s.runWorker(id, ch)
		}(i, ch)
	}
}

// Stop refuses new work, lets every accepted job finish and waits for the
// workers to exit. Call it after the HTTP server has drained.
func (s *Serializer) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, ch := range s.workers {
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Int("workers", len(s.workers)).Msg("serializer stopped")
}

// Do runs fn on the worker responsible for key and waits for it to finish.
// When ctx ends while the job is still queued the job is withdrawn and
// ctx.Err() is returned. Once a worker has started the job, Do always returns
// its result.
func (s *Serializer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	j := &job{ctx: ctx, key: key, fn: fn, done: make(chan error, 1)}
	if err := s.submit(ctx, j); err != nil {
		return err
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobPending, jobWithdrawn) {
			return ctx.Err()
		}
		return <-j.done
	}
}

func (s *Serializer) submit(ctx context.Context, j *job) error {
	idx := s.shardIndex(j.key)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStopped
	}

	s.observe(idx, 1)
	select {
	case s.workers[idx] <- j:
		return nil
	case <-ctx.Done():
		s.observe(idx, -1)
		return ctx.Err()
	}
}

// shardIndex maps a key deterministically to a worker index.
func (s *Serializer) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(s.workers)))
}

func (s *Serializer) observe(worker int, delta float64) {
	if s.depth == nil {
		return
	}
	s.depth.WithLabelValues(strconv.Itoa(worker)).Add(delta)
}

func (s *Serializer) runWorker(id int, ch <-chan *job) {
	for j := range ch {
		s.observe(id, -1)

		// The submitter gave up before the job started; skip it.
		if err := j.ctx.Err(); err != nil && j.state.CompareAndSwap(jobPending, jobWithdrawn) {
			j.done <- err
			continue
		}
		if !j.state.CompareAndSwap(jobPending, jobRunning) {
			continue
		}

		err := j.fn(j.ctx)
		if err != nil {
			s.log.Debug().Err(err).
				Str("key", j.key).
				Int("worker_id", id).
				Msg("serialized job failed")
		}
		j.done <- err
	}
}

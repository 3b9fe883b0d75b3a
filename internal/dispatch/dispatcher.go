package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"hotdog/internal/broker"
	"hotdog/internal/logger"
	"hotdog/pkg/metrics"
	"hotdog/pkg/retry"
)

// ErrDispatcherClosed is returned by Submit once shutdown has been signaled.
// Submissions after shutdown fail visibly so the caller can account for the
// loss instead of hanging.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Envelope is the (topic, payload) pair produced for a record that survived
// the pipeline. It is consumed exactly once by the sink.
type Envelope struct {
	Topic   string
	Key     []byte
	Payload []byte
}

// Dispatcher sits between the pipeline and the sink: a bounded buffer whose
// capacity is a hard cap. When the buffer is full, Submit blocks the calling
// worker; slow downstream delivery throttles upstream intake rather than
// dropping or growing unbounded.
//
// Exactly one delivery goroutine owns the sink session. Transient sink
// failures are retried with bounded backoff and never surface to submitters.
type Dispatcher struct {
	ch       chan Envelope
	producer broker.Producer
	policy   retry.Policy
	logger   logger.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup

	done chan struct{}
}

func New(producer broker.Producer, buffer int, log logger.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if log == nil {
		log = logger.NopLogger()
	}
	// The envelope the delivery loop is currently publishing counts against
	// the cap, so the channel holds one less than the configured buffer.
	return &Dispatcher{
		ch:       make(chan Envelope, buffer-1),
		producer: producer,
		policy:   retry.UnboundedPolicy(),
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Start launches the delivery loop. ctx bounds delivery retries: once it is
// canceled, undeliverable envelopes are dropped with an error log instead of
// retried forever.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.deliveryLoop(ctx)
}

// Submit hands an envelope to the delivery loop, blocking while the buffer
// is at capacity. It returns ErrDispatcherClosed after Close.
func (d *Dispatcher) Submit(env Envelope) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		metrics.DispatchRejectedTotal.Inc()
		return ErrDispatcherClosed
	}
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	d.ch <- env
	metrics.DispatchSubmittedTotal.Inc()
	metrics.SetDispatchQueueDepth(len(d.ch))
	return nil
}

// Len reports the number of buffered envelopes.
func (d *Dispatcher) Len() int {
	return len(d.ch)
}

// Closed reports whether shutdown has been signaled.
func (d *Dispatcher) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close stops intake, waits for blocked submitters, lets the delivery loop
// drain the buffer, and finally closes the producer. ctx bounds the drain.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	// Submitters that passed the closed check may still be parked on a full
	// channel; the delivery loop keeps draining, so they finish.
	d.inflight.Wait()
	close(d.ch)

	select {
	case <-d.done:
	case <-ctx.Done():
		d.logger.Errorw("Dispatcher drain aborted",
			"remaining", len(d.ch),
			"error", ctx.Err(),
		)
	}

	return d.producer.Close()
}

func (d *Dispatcher) deliveryLoop(ctx context.Context) {
	defer close(d.done)

	for env := range d.ch {
		metrics.SetDispatchQueueDepth(len(d.ch))
		d.deliver(ctx, env)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) {
	err := retry.RetryNotify(ctx, d.policy,
		func() error {
			return d.producer.Publish(ctx, env.Topic, env.Key, env.Payload)
		},
		func(err error, next time.Duration) {
			d.logger.Warnw("Sink publish failed, backing off",
				"topic", env.Topic,
				"next_delay", next,
				"error", err,
			)
		},
	)
	if err != nil {
		// Only reachable when the retry context is canceled mid-shutdown.
		// The loss is logged, never silent.
		d.logger.Errorw("Envelope dropped after delivery retries",
			"topic", env.Topic,
			"error", err,
		)
	}
}

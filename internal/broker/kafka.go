package broker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"hotdog/internal/logger"
	"hotdog/pkg/metrics"
)

// KafkaProducer wraps a kafka-go writer behind a circuit breaker. The writer
// manages its own connections, so transient broker failures are retried by
// the dispatcher without the producer ever surfacing connection state to
// callers.
type KafkaProducer struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
	logger  logger.Logger
}

// NewKafkaProducer builds a producer from the opaque client settings map.
// `bootstrap.servers` is required; other recognized keys are translated to
// writer options and unknown keys are logged and ignored, so configurations
// written for librdkafka-style clients keep loading.
func NewKafkaProducer(conf map[string]string, log logger.Logger) (*KafkaProducer, error) {
	if log == nil {
		log = logger.NopLogger()
	}

	servers, ok := conf["bootstrap.servers"]
	if !ok || servers == "" {
		return nil, fmt.Errorf("kafka conf: bootstrap.servers is required")
	}

	brokers := strings.Split(servers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Async:        false,
	}

	for key, value := range conf {
		switch key {
		case "bootstrap.servers":
		case "batch.size":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("kafka conf: invalid batch.size %q: %w", value, err)
			}
			w.BatchSize = n
		case "batch.timeout.ms":
			ms, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("kafka conf: invalid batch.timeout.ms %q: %w", value, err)
			}
			w.BatchTimeout = time.Duration(ms) * time.Millisecond
		case "message.timeout.ms":
			ms, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("kafka conf: invalid message.timeout.ms %q: %w", value, err)
			}
			w.WriteTimeout = time.Duration(ms) * time.Millisecond
		case "required.acks":
			acks, err := parseRequiredAcks(value)
			if err != nil {
				return nil, err
			}
			w.RequiredAcks = acks
		default:
			log.Debugw("Ignoring unrecognized kafka setting", "key", key)
		}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "kafka-sink",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SinkBreakerState.Set(breakerStateValue(to))
			log.Warnw("Sink circuit breaker state changed",
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &KafkaProducer{
		writer:  w,
		breaker: breaker,
		logger:  log,
	}, nil
}

func parseRequiredAcks(value string) (kafka.RequiredAcks, error) {
	switch value {
	case "all", "-1":
		return kafka.RequireAll, nil
	case "1":
		return kafka.RequireOne, nil
	case "0":
		return kafka.RequireNone, nil
	default:
		return 0, fmt.Errorf("kafka conf: invalid required.acks %q", value)
	}
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, payload []byte) error {
	start := time.Now()
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx,
			kafka.Message{
				Topic: topic,
				Key:   key,
				Value: payload,
				Time:  time.Now(),
			},
		)
	})
	metrics.ObserveKafkaWriteDuration(time.Since(start))

	if err != nil {
		metrics.KafkaWriteErrorsTotal.WithLabelValues(topic).Inc()
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
	return nil
}

// BreakerOpen reports whether the sink circuit breaker is currently open.
func (p *KafkaProducer) BreakerOpen() bool {
	return p.breaker.State() == gobreaker.StateOpen
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

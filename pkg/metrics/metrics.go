package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hotdog_connections_total",
			Help: "Total number of accepted syslog connections (count)",
		},
	)

	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotdog_connections_active",
			Help: "Number of currently open syslog connections (count)",
		},
	)

	RecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hotdog_records_total",
			Help: "Total number of log records read from connections (count)",
		},
	)

	SyslogParseFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hotdog_syslog_parse_failures_total",
			Help: "Total number of lines that failed RFC 5424 parsing (count)",
		},
	)

	RuleMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotdog_rule_matches_total",
			Help: "Total number of rule matches (count)",
		},
		[]string{"rule"},
	)

	ActionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotdog_action_failures_total",
			Help: "Total number of action application failures (count)",
		},
		[]string{"rule"},
	)

	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotdog_evaluation_duration_us",
			Help:    "Rule evaluation duration per record in microseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)

	DispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotdog_dispatch_queue_depth",
			Help: "Number of envelopes buffered in the dispatcher (count)",
		},
	)

	DispatchSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hotdog_dispatch_submitted_total",
			Help: "Total number of envelopes accepted by the dispatcher (count)",
		},
	)

	DispatchRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hotdog_dispatch_rejected_total",
			Help: "Total number of envelopes rejected after dispatcher shutdown (count)",
		},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotdog_kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaWriteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotdog_kafka_write_errors_total",
			Help: "Total number of failed Kafka writes (count)",
		},
		[]string{"topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotdog_kafka_write_duration_ms",
			Help:    "Duration of Kafka writes in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	SinkBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotdog_sink_breaker_state",
			Help: "Sink circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
	)
)

func Register() {
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(RecordsTotal)
	prometheus.MustRegister(SyslogParseFailuresTotal)
	prometheus.MustRegister(RuleMatchesTotal)
	prometheus.MustRegister(ActionFailuresTotal)
	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(DispatchQueueDepth)
	prometheus.MustRegister(DispatchSubmittedTotal)
	prometheus.MustRegister(DispatchRejectedTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteErrorsTotal)
	prometheus.MustRegister(KafkaWriteDuration)
	prometheus.MustRegister(SinkBreakerState)
}

func ObserveEvaluationDuration(d time.Duration) {
	EvaluationDuration.Observe(float64(d.Microseconds()))
}

func ObserveKafkaWriteDuration(d time.Duration) {
	KafkaWriteDuration.Observe(float64(d.Milliseconds()))
}

func SetDispatchQueueDepth(depth int) {
	DispatchQueueDepth.Set(float64(depth))
}

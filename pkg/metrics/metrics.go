// Package metrics provides Prometheus metrics for the heather service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IndexQueryErrorsTotal counts index queries that failed and were treated as empty
	IndexQueryErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heather_index_query_errors_total",
			Help: "Total number of search index queries that failed",
		},
	)

	// IndexQueriesTotal counts index queries by mode
	IndexQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heather",
			Subsystem: "index",
			Name:      "queries_total",
			Help:      "Total number of search index queries by mode",
		},
		[]string{"mode"},
	)

	// IndexQueryDuration tracks index query latency
	IndexQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "heather",
			Subsystem: "index",
			Name:      "query_duration_seconds",
			Help:      "Duration of search index queries in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// MatchCountLookupsTotal counts name scorer lookups by outcome (miss, hit, error)
	MatchCountLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heather",
			Subsystem: "scoring",
			Name:      "match_count_lookups_total",
			Help:      "Total number of match count lookups by outcome",
		},
		[]string{"outcome"},
	)

	// ValuesBoundTotal counts metadata values bound to an authority key by confidence
	ValuesBoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heather",
			Subsystem: "authority",
			Name:      "values_bound_total",
			Help:      "Total number of metadata values bound to an identity",
		},
		[]string{"confidence"},
	)

	// RecordsWrittenTotal counts record writes by status (written, unchanged, failed)
	RecordsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heather",
			Subsystem: "authority",
			Name:      "records_total",
			Help:      "Total number of records processed by the authority writer",
		},
		[]string{"status"},
	)

	// IdentityRunsTotal counts per-identity units of work by kind and status
	IdentityRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heather",
			Subsystem: "runner",
			Name:      "identities_total",
			Help:      "Total number of identities processed by run kind and status",
		},
		[]string{"kind", "status"},
	)

	// ReviewTransitionsTotal counts potential match review transitions
	ReviewTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heather",
			Subsystem: "review",
			Name:      "transitions_total",
			Help:      "Total number of potential match review transitions",
		},
		[]string{"transition"},
	)

	// PotentialMatchesGenerated tracks the size of generated candidate sets
	PotentialMatchesGenerated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "heather",
			Subsystem: "review",
			Name:      "generated_matches",
			Help:      "Number of potential matches generated per identity",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// KafkaMessagesTotal tracks Kafka publishes and consumes
	KafkaMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heather",
			Subsystem: "kafka",
			Name:      "messages_total",
			Help:      "Total number of Kafka messages by direction and status",
		},
		[]string{"direction", "topic", "status"},
	)

	// HTTPRequestsTotal counts admin API requests by route and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heather",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of admin API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "heather",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of admin API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func RecordIndexQuery(mode string, durationSeconds float64, err error) {
	IndexQueriesTotal.WithLabelValues(mode).Inc()
	IndexQueryDuration.Observe(durationSeconds)
	if err != nil {
		IndexQueryErrorsTotal.Inc()
	}
}

func RecordMatchCountLookup(outcome string) {
	MatchCountLookupsTotal.WithLabelValues(outcome).Inc()
}

func RecordValueBound(confidence string) {
	ValuesBoundTotal.WithLabelValues(confidence).Inc()
}

func RecordRecordWrite(status string) {
	RecordsWrittenTotal.WithLabelValues(status).Inc()
}

func RecordIdentityRun(kind, status string) {
	IdentityRunsTotal.WithLabelValues(kind, status).Inc()
}

func RecordReviewTransition(transition string) {
	ReviewTransitionsTotal.WithLabelValues(transition).Inc()
}

func RecordKafkaMessage(direction, topic, status string) {
	KafkaMessagesTotal.WithLabelValues(direction, topic, status).Inc()
}

func RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// Package metrics holds the Prometheus collectors shared across the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompletionCalls counts provider calls by provider and outcome (ok|error|timeout).
	CompletionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quill",
		Name:      "completion_calls_total",
		Help:      "LLM completion calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	CompletionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quill",
		Name:      "completion_duration_seconds",
		Help:      "LLM completion latency.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"provider"})

	// NormalizerRungs counts which ladder rung recovered a response.
	NormalizerRungs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quill",
		Name:      "normalizer_rungs_total",
		Help:      "Model responses by expected shape and recovering ladder rung.",
	}, []string{"shape", "rung"})

	// Placeholders counts default values substituted for unusable output.
	Placeholders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quill",
		Name:      "placeholders_total",
		Help:      "Placeholder substitutions by component and reason.",
	}, []string{"component", "reason"})
)

var (
	// EventsPublished counts outgoing NATS events by subject and outcome (ok|error).
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quill",
		Name:      "events_published_total",
		Help:      "Domain events published by subject and outcome.",
	}, []string{"subject", "outcome"})

	EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quill",
		Name:      "events_handled_total",
		Help:      "Incoming events handled by subject and outcome.",
	}, []string{"subject", "outcome"})
)

package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consumer outcomes.
const (
	outcomeReceived     = "received"
	outcomeProcessed    = "processed"
	outcomeRetried      = "retried"
	outcomeUndecodable  = "undecodable"
	outcomeDeadLettered = "dead_lettered"
	outcomeDropped      = "dropped"
)

var (
	consumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_total",
			Help: "Kafka messages seen by the consumer, by outcome",
		},
		[]string{"topic", "consumer_group", "outcome"},
	)

	consumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Time from fetch to handler completion, retries included",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15},
		},
		[]string{"topic", "event_type"},
	)

	producerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_total",
			Help: "Kafka messages the producer attempted to write, by result",
		},
		[]string{"topic", "result"},
	)
)

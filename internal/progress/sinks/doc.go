// Package sinks implements concrete progress consumers: structured logging,
// Prometheus, the job repository, Kafka, Redis and Pub/Sub. Each sink
// satisfies progress.Sink and is safe for repeated Consume/Close cycles.
package sinks

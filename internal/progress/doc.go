// Package progress provides the non-blocking hub that carries crawl lifecycle
// events from running jobs to pluggable sinks. It batches events on a
// background goroutine and fans them out to consumers such as Prometheus
// metrics, the job repository, Kafka, Redis or Pub/Sub.
package progress

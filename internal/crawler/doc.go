// Package crawler implements the crawl engine: a per-job frontier with
// deduplication and depth control, politeness-aware fetch execution with
// retries, per-page extraction and SEO auditing, and streaming lifecycle
// events.
//
// A job is started with Engine.Start, which validates the job synchronously
// and returns a Run. The Run exposes the event stream and the final
// CrawlResult.
package crawler

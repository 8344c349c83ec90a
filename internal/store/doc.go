// Package store defines the persistence contract for crawl jobs and their
// pages. Implementations live in internal/storage; this package must not
// import database drivers or concrete clients.
package store

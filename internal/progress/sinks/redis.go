package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// DefaultRedisTTL is how long a job's live status survives its last update.
const DefaultRedisTTL = 24 * time.Hour

// RedisClient is the subset of *redis.Client the sink needs.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// LiveStatus is the per-job document kept in Redis.
type LiveStatus struct {
	JobID     string                 `json:"jobId"`
	Status    crawler.JobStatus      `json:"status"`
	Progress  *crawler.CrawlProgress `json:"progress,omitempty"`
	Completed bool                   `json:"completed"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// RedisSink keeps the latest progress snapshot of every job in Redis.
type RedisSink struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisSink builds a sink writing keys "<prefix><jobID>". A non-positive
// ttl selects DefaultRedisTTL.
func NewRedisSink(client RedisClient, prefix string, ttl time.Duration) (*RedisSink, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = "crawl:status:"
	}
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}, nil
}

// Consume collapses the batch to the newest status per job and writes each once.
func (s *RedisSink) Consume(ctx context.Context, batch []crawler.Event) error {
	latest := make(map[string]*LiveStatus)
	order := make([]string, 0)
	for _, evt := range batch {
		st, ok := latest[evt.JobID]
		if !ok {
			st = &LiveStatus{JobID: evt.JobID}
			latest[evt.JobID] = st
			order = append(order, evt.JobID)
		}
		switch evt.Type {
		case crawler.EventCrawlStarted:
			st.Status = crawler.JobStatusRunning
		case crawler.EventCrawlProgress:
			st.Progress = evt.Progress
			if st.Status == "" {
				st.Status = crawler.JobStatusRunning
			}
		case crawler.EventCrawlFinished:
			if evt.Result != nil {
				st.Status = evt.Result.Status
				st.Completed = evt.Result.Completed
				progress := evt.Result.Progress
				st.Progress = &progress
			}
		default:
			continue
		}
		st.UpdatedAt = evt.TS
	}

	var errs []error
	for _, jobID := range order {
		st := latest[jobID]
		if st.UpdatedAt.IsZero() {
			continue
		}
		payload, err := json.Marshal(st)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal status %s: %w", jobID, err))
			continue
		}
		if err := s.client.Set(ctx, s.prefix+jobID, payload, s.ttl).Err(); err != nil {
			errs = append(errs, fmt.Errorf("set status %s: %w", jobID, err))
		}
	}
	return errors.Join(errs...)
}

// Lookup reads the stored status for jobID. The boolean is false when Redis
// holds no entry.
func (s *RedisSink) Lookup(ctx context.Context, jobID string) (LiveStatus, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return LiveStatus{}, false, nil
		}
		return LiveStatus{}, false, fmt.Errorf("get status %s: %w", jobID, err)
	}
	var st LiveStatus
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return LiveStatus{}, false, fmt.Errorf("decode status %s: %w", jobID, err)
	}
	return st, true, nil
}

// Close implements the Sink interface; the client is owned by the caller.
func (s *RedisSink) Close(context.Context) error {
	return nil
}

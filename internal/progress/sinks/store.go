package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/store"
)

// StoreSink persists lifecycle events through a store.Repository:
// crawl-started marks the job running, pages are upserted by URL and errors
// bump the counter. crawl-finished stores the summary together with any page
// whose page-crawled event was dropped under backpressure.
type StoreSink struct {
	repo   store.Repository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.Repository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies the batch in order. A failing event does not stop the rest
// of the batch; the errors are joined and returned.
func (s *StoreSink) Consume(ctx context.Context, batch []crawler.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		if err := s.apply(ctx, evt); err != nil {
			s.logger.Warn("persist progress event",
				zap.String("job_id", evt.JobID),
				zap.String("type", string(evt.Type)),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *StoreSink) apply(ctx context.Context, evt crawler.Event) error {
	switch evt.Type {
	case crawler.EventCrawlStarted:
		if err := s.repo.MarkJobRunning(ctx, evt.JobID, evt.TS); err != nil {
			return fmt.Errorf("mark job running: %w", err)
		}
	case crawler.EventPageCrawled:
		if evt.Page == nil {
			return nil
		}
		if err := s.repo.UpsertPage(ctx, evt.JobID, *evt.Page); err != nil {
			return fmt.Errorf("upsert page: %w", err)
		}
	case crawler.EventCrawlError:
		if evt.Error == nil {
			return nil
		}
		if err := s.repo.IncrementErrors(ctx, evt.JobID, *evt.Error); err != nil {
			return fmt.Errorf("increment errors: %w", err)
		}
	case crawler.EventCrawlFinished:
		if evt.Result == nil {
			return nil
		}
		result := *evt.Result
		if result.JobID == "" {
			result.JobID = evt.JobID
		}
		if err := store.SaveResult(ctx, s.repo, result); err != nil {
			return fmt.Errorf("save result: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

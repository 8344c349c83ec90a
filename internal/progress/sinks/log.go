package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []crawler.Event) error {
	for _, evt := range batch {
		s.logger.Info("progress event", eventFields(evt)...)
	}
	return nil
}

func eventFields(evt crawler.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("job_id", evt.JobID),
		zap.String("type", string(evt.Type)),
		zap.Time("event_ts", evt.TS),
	}
	switch {
	case evt.Page != nil:
		fields = append(fields,
			zap.String("url", evt.Page.URL),
			zap.Int("status", evt.Page.StatusCode),
			zap.Int("bytes", evt.Page.Size),
			zap.Int("depth", evt.Page.Depth),
			zap.Duration("load_time", evt.Page.LoadTime),
			zap.Bool("rendered", evt.Page.Rendered),
		)
		if evt.Page.SEO != nil {
			fields = append(fields, zap.Int("seo_score", evt.Page.SEO.SEOScore))
		}
	case evt.Progress != nil:
		fields = append(fields,
			zap.Int("processed", evt.Progress.Processed),
			zap.Int("pending", evt.Progress.Pending),
			zap.Int("errors", evt.Progress.Errors),
			zap.Int("current_depth", evt.Progress.CurrentDepth),
		)
		if evt.Progress.ETA != nil {
			fields = append(fields, zap.Duration("eta", *evt.Progress.ETA))
		}
	case evt.Error != nil:
		fields = append(fields,
			zap.String("url", evt.Error.URL),
			zap.String("error", evt.Error.Message),
			zap.Int("status", evt.Error.StatusCode),
			zap.Int("attempts", evt.Error.Attempts),
		)
	case evt.Result != nil:
		fields = append(fields,
			zap.String("status", string(evt.Result.Status)),
			zap.Bool("completed", evt.Result.Completed),
			zap.Int("pages", len(evt.Result.Pages)),
			zap.Int("errors", len(evt.Result.Errors)),
			zap.Duration("duration", evt.Result.Duration),
		)
	}
	return fields
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

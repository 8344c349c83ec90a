package sinks

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// PublishResult is the pending outcome of one publish.
type PublishResult interface {
	Get(ctx context.Context) (serverID string, err error)
}

// Publisher abstracts a Pub/Sub topic.
type Publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) PublishResult
	Stop()
}

type topicPublisher struct {
	topic *pubsub.Topic
}

// NewTopicPublisher adapts topic to Publisher with per-job message ordering.
func NewTopicPublisher(topic *pubsub.Topic) Publisher {
	topic.EnableMessageOrdering = true
	return topicPublisher{topic: topic}
}

func (p topicPublisher) Publish(ctx context.Context, msg *pubsub.Message) PublishResult {
	return p.topic.Publish(ctx, msg)
}

func (p topicPublisher) Stop() {
	p.topic.Stop()
}

// PubSubSink publishes lifecycle events to a Pub/Sub topic. The job ID is the
// ordering key and both job ID and event type travel as attributes.
type PubSubSink struct {
	publisher Publisher
	filter    eventFilter
}

// NewPubSubSink wraps publisher. events limits the forwarded event types.
func NewPubSubSink(publisher Publisher, events []crawler.EventType) (*PubSubSink, error) {
	if publisher == nil {
		return nil, fmt.Errorf("pubsub publisher is not configured")
	}
	return &PubSubSink{publisher: publisher, filter: newEventFilter(events)}, nil
}

// Consume publishes every event and waits for the server acknowledgements.
func (s *PubSubSink) Consume(ctx context.Context, batch []crawler.Event) error {
	results := make([]PublishResult, 0, len(batch))
	for _, evt := range batch {
		if !s.filter.allows(evt.Type) {
			continue
		}
		data, err := encodeEvent(evt)
		if err != nil {
			return err
		}
		results = append(results, s.publisher.Publish(ctx, &pubsub.Message{
			Data:        data,
			OrderingKey: evt.JobID,
			Attributes: map[string]string{
				"job_id":     evt.JobID,
				"event_type": string(evt.Type),
			},
		}))
	}
	var errs []error
	for _, res := range results {
		if _, err := res.Get(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes and stops the publisher.
func (s *PubSubSink) Close(context.Context) error {
	s.publisher.Stop()
	return nil
}

package server

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/api"
	"github.com/JakeFAU/seo-crawler/internal/config"
	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/progress"
	"github.com/JakeFAU/seo-crawler/internal/progress/sinks"
	gcsstorage "github.com/JakeFAU/seo-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/seo-crawler/internal/storage/local"
	memoryStorage "github.com/JakeFAU/seo-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/seo-crawler/internal/storage/postgres"
	"github.com/JakeFAU/seo-crawler/internal/store"
)

// infra owns the external clients so they can be closed in reverse order.
type infra struct {
	logger  *zap.Logger
	hub     *progress.Hub
	gcs     *storage.Client
	pg      *pgstore.Repository
	redis   *redis.Client
	pubsub  *pubsub.Client
	pingers []api.Pinger
}

func (in *infra) setupStorage(ctx context.Context, cfg config.Config) (crawler.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		in.gcs = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		in.logger.Info("archiving pages to GCS", zap.String("bucket", cfg.Storage.GCSBucket))
		return blobs, nil
	case "local":
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		in.logger.Info("archiving pages to local disk", zap.String("path", cfg.Storage.LocalDir))
		return blobs, nil
	case "memory":
		in.logger.Info("archiving pages in memory")
		return memoryStorage.NewBlobStore(), nil
	default:
		in.logger.Info("page archive disabled")
		return nil, nil
	}
}

func (in *infra) setupRepository(ctx context.Context, cfg config.Config) (store.Repository, error) {
	if cfg.Database.DSN == "" {
		in.logger.Warn("no database DSN configured, keeping jobs in memory")
		return memoryStorage.NewJobStore(), nil
	}
	repo, err := pgstore.New(ctx, pgstore.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres repository init failed: %w", err)
	}
	in.pg = repo
	in.pingers = append(in.pingers, repo)
	if cfg.Database.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("postgres migrate failed: %w", err)
		}
		in.logger.Info("postgres schema applied")
	}
	return repo, nil
}

// setupProgressSinks returns the hub sinks and, when Redis is configured,
// the live-status reader backed by it.
func (in *infra) setupProgressSinks(
	ctx context.Context,
	cfg config.Config,
	repo store.Repository,
) ([]progress.Sink, *sinks.RedisSink, error) {
	sinkList := []progress.Sink{sinks.NewStoreSink(repo, in.logger.Named("progress_store"))}

	if cfg.Progress.Log {
		sinkList = append(sinkList, sinks.NewLogSink(in.logger.Named("progress_log")))
		in.logger.Debug("added progress log sink")
	}
	if cfg.Progress.Prometheus {
		promSink, err := sinks.NewPrometheusSink(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("prometheus sink init failed: %w", err)
		}
		sinkList = append(sinkList, promSink)
		in.logger.Debug("added progress prometheus sink")
	}

	if kc := cfg.Progress.Kafka; len(kc.Brokers) > 0 {
		writer, err := sinks.NewKafkaWriter(sinks.KafkaConfig{Brokers: kc.Brokers, Topic: kc.Topic})
		if err != nil {
			return nil, nil, fmt.Errorf("kafka writer init failed: %w", err)
		}
		kafkaSink, err := sinks.NewKafkaSink(writer, config.EventTypes(kc.Events))
		if err != nil {
			return nil, nil, fmt.Errorf("kafka sink init failed: %w", err)
		}
		sinkList = append(sinkList, kafkaSink)
		in.logger.Info("added progress kafka sink", zap.Strings("brokers", kc.Brokers), zap.String("topic", kc.Topic))
	}

	var live *sinks.RedisSink
	if rc := cfg.Progress.Redis; rc.Addr != "" {
		in.redis = redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		in.pingers = append(in.pingers, redisPinger{in.redis})
		redisSink, err := sinks.NewRedisSink(in.redis, rc.KeyPrefix, rc.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis sink init failed: %w", err)
		}
		live = redisSink
		sinkList = append(sinkList, redisSink)
		in.logger.Info("added progress redis sink", zap.String("addr", rc.Addr))
	}

	if pc := cfg.Progress.PubSub; pc.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, pc.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		in.pubsub = client
		psSink, err := sinks.NewPubSubSink(sinks.NewTopicPublisher(client.Topic(pc.Topic)), config.EventTypes(pc.Events))
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub sink init failed: %w", err)
		}
		sinkList = append(sinkList, psSink)
		in.logger.Info("added progress pubsub sink",
			zap.String("project", pc.ProjectID),
			zap.String("topic", pc.Topic),
		)
	}
	return sinkList, live, nil
}

// close flushes the hub first so sinks still have their clients.
func (in *infra) close(ctx context.Context) error {
	var errs []error
	if in.hub != nil {
		if err := in.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("progress hub close: %w", err))
		}
	}
	if in.pubsub != nil {
		if err := in.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pubsub client close: %w", err))
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis client close: %w", err))
		}
	}
	if in.gcs != nil {
		if err := in.gcs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gcs client close: %w", err))
		}
	}
	if in.pg != nil {
		in.pg.Close()
	}
	for _, err := range errs {
		in.logger.Warn("infrastructure close failed", zap.Error(err))
	}
	return errors.Join(errs...)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

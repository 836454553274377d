package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const bootstrapTopicWait = 5 * time.Second

// BootstrapConsumer creates cfg.Topic with a single partition when it is
// missing, then builds the reader. A failed topic check is only logged: the
// reader keeps retrying fetches until the topic shows up.
func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	spec := TopicSpec{Name: cfg.Topic, NumPartitions: 1, ReplicationFactor: 1, MaxWait: bootstrapTopicWait}
	if err := EnsureTopic(ctx, cfg.Brokers, spec, logger); err != nil {
		logger.Warn("topic not ready; consuming anyway", zap.String("topic", cfg.Topic), zap.Error(err))
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	return NewConsumer(cfg)
}

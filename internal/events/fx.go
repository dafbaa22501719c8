package events

import (
	"context"

	"github.com/smallbiznis/marketplace/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

// NewPublisher returns a Kafka publisher when events are enabled and a no-op
// publisher otherwise.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Publisher, error) {
	if !cfg.Events.Enabled || len(cfg.Events.Brokers) == 0 {
		log.Info("event publishing disabled")
		return NoopPublisher{}, nil
	}

	publisher, err := NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	log.Info("event publishing enabled",
		zap.Strings("brokers", cfg.Events.Brokers),
		zap.String("topic", cfg.Events.Topic),
	)
	return publisher, nil
}

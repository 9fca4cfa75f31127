package middleware

import (
	"context"
	"time"

	"reservd/pkg/kafka"
	"reservd/pkg/logger"
)

// Logging logs every publish with its outcome and latency.
func Logging(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		duration := time.Since(start)

		if err != nil {
			log.Error("Kafka publish failed",
				"key", msg.Key,
				"event_id", msg.Headers[kafka.HeaderEventID],
				"event_type", msg.Headers[kafka.HeaderEventType],
				"duration_ms", duration.Milliseconds(),
				"error", err,
			)
			return err
		}

		log.Debug("Kafka publish succeeded",
			"key", msg.Key,
			"event_id", msg.Headers[kafka.HeaderEventID],
			"event_type", msg.Headers[kafka.HeaderEventType],
			"duration_ms", duration.Milliseconds(),
		)
		return nil
	}
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Mabdi59/tournapro/metrics"
)

const DefaultRedisChannel = "tournapro:events"

// RedisBridge relays events between instances over Redis pub/sub. Local
// events are queued and published in the background so a slow or absent
// Redis never holds up a request; when the queue is full the event is dropped.
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	queue   chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRedisBridge(client *redis.Client, channel, origin string, buffer int, logger *slog.Logger, m *metrics.Metrics) *RedisBridge {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &RedisBridge{
		client:  client,
		channel: channel,
		origin:  origin,
		queue:   make(chan Event, buffer),
		logger:  logger,
		metrics: m,
	}
}

// Forward is a Handler for the local notifier. Events that came from another
// instance are not sent back out.
func (b *RedisBridge) Forward(_ context.Context, e Event) {
	if e.Origin != "" && e.Origin != b.origin {
		return
	}
	select {
	case b.queue <- e:
	default:
		if b.metrics != nil {
			b.metrics.EventsDropped.WithLabelValues("redis").Inc()
		}
		b.logger.Warn("redis event queue full, dropping event",
			slog.String("event_type", string(e.Type)),
			slog.String("event_id", e.ID.String()),
		)
	}
}

// Run publishes queued events until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.queue:
			body, err := json.Marshal(e)
			if err != nil {
				b.logger.Error("failed to encode event for redis", slog.Any("error", err))
				continue
			}
			if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil && !errors.Is(err, context.Canceled) {
				if b.metrics != nil {
					b.metrics.EventsDropped.WithLabelValues("redis").Inc()
				}
				b.logger.Error("failed to publish event to redis",
					slog.String("channel", b.channel),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Listen hands events published by other instances to deliver until ctx is
// cancelled. Events from this instance are skipped because they were already
// delivered locally.
func (b *RedisBridge) Listen(ctx context.Context, deliver Handler) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.logger.Warn("discarding malformed event from redis", slog.Any("error", err))
				continue
			}
			if e.Origin == b.origin {
				continue
			}
			deliver(ctx, e)
		}
	}
}

package workers

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"inphrone-backend/internal/common/logger"
	"inphrone-backend/internal/features/notification/models"
	"inphrone-backend/internal/features/notification/queue"
)

const (
	readBlock    = 5 * time.Second
	readCount    = 10
	errorBackoff = time.Second
	// a new group reads the stream from its first entry so emails queued
	// before the first worker start are still delivered
	groupStartID = "0"
)

// StreamConsumer is the consumer group subset of a Redis client
type StreamConsumer interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

type EmailSender interface {
	Send(ctx context.Context, req models.EmailRequest) (*models.EmailResult, error)
}

// NotificationWorker delivers queued emails. Entries are acknowledged after
// handling whether or not the send succeeded; failures are only logged.
type NotificationWorker struct {
	rdb      StreamConsumer
	sender   EmailSender
	stream   string
	group    string
	consumer string
}

func NewNotificationWorker(rdb StreamConsumer, sender EmailSender, stream, group, consumer string) *NotificationWorker {
	return &NotificationWorker{
		rdb:      rdb,
		sender:   sender,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

// Start consumes the stream until ctx is cancelled
func (w *NotificationWorker) Start(ctx context.Context) {
	err := w.rdb.XGroupCreateMkStream(ctx, w.stream, w.group, groupStartID).Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		logger.Error().Err(err).Str("stream", w.stream).Msg("Failed to create consumer group")
	}

	logger.Info().Str("stream", w.stream).Str("group", w.group).Msg("Notification worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Notification worker stopped")
			return
		default:
		}

		entries, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.group,
			Consumer: w.consumer,
			Streams:  []string{w.stream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if stderrors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Failed to read notification stream")
			w.backoff(ctx)
			continue
		}

		for _, stream := range entries {
			for _, msg := range stream.Messages {
				w.process(ctx, msg)
				if err := w.rdb.XAck(ctx, w.stream, w.group, msg.ID).Err(); err != nil {
					logger.Warn().Err(err).Str("id", msg.ID).Msg("Failed to ack notification")
				}
			}
		}
	}
}

func (w *NotificationWorker) process(ctx context.Context, msg redis.XMessage) {
	req, err := queue.Decode(msg.Values)
	if err != nil {
		logger.Warn().Err(err).Str("id", msg.ID).Msg("Dropping malformed notification")
		return
	}

	if _, err := w.sender.Send(ctx, req); err != nil {
		logger.Error().
			Err(err).
			Str("id", msg.ID).
			Str("type", string(req.Type)).
			Msg("Failed to send email")
	}
}

func (w *NotificationWorker) backoff(ctx context.Context) {
	t := time.NewTimer(errorBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// JobChannel is the LISTEN/NOTIFY channel signalled when a job is enqueued.
const JobChannel = "job_queue"

// Listen holds one pooled connection on LISTEN channel and performs a
// non-blocking send on wake for every notification. It reconnects after
// errors until ctx is cancelled.
//
// Notifications are only a latency optimization: workers still poll, so a
// dropped notification delays a job by at most one poll interval.
func Listen(ctx context.Context, pool *pgxpool.Pool, channel string, wake chan<- struct{}, logger *zap.Logger) {
	for {
		err := listenOnce(ctx, pool, channel, wake)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("listener disconnected, reconnecting", zap.String("channel", channel), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func listenOnce(ctx context.Context, pool *pgxpool.Pool, channel string, wake chan<- struct{}) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			return err
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

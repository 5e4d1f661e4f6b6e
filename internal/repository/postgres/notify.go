package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Notify sends payload on a Postgres NOTIFY channel.
func (r *Repository) Notify(ctx context.Context, channel string, payload []byte) error {
	_, err := r.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload))
	return translateError(err)
}

// Listen holds a dedicated connection subscribed to channel and invokes handle for each
// notification until ctx is cancelled.
func (r *Repository) Listen(ctx context.Context, channel string, handle func(payload []byte)) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN "+pgx.Identifier{channel}.Sanitize())
	}()

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		handle([]byte(notification.Payload))
	}
}

package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/geoscraper/tile-service/internal/types"
)

// maxNotifyPayload is Postgres' limit on a NOTIFY payload
const maxNotifyPayload = 8000

// Execer is the subset of pgxpool.Pool used for publishing
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGNotifier publishes task snapshots with pg_notify
type PGNotifier struct {
	db      Execer
	channel string
}

// NewPGNotifier creates a publisher on channel
func NewPGNotifier(db Execer, channel string) *PGNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PGNotifier{db: db, channel: channel}
}

// Publish sends the encoded task on the channel
func (n *PGNotifier) Publish(ctx context.Context, t *types.Task) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	if len(data) > maxNotifyPayload {
		return fmt.Errorf("task %d snapshot is %d bytes, over the notify limit", t.ID, len(data))
	}
	if _, err := n.db.Exec(ctx, "SELECT pg_notify($1, $2)", n.channel, string(data)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", n.channel, err)
	}
	return nil
}

// Relay listens on a Postgres channel and forwards payloads into a Hub.
// pq.Listener reconnects on its own; notifications sent while disconnected are lost.
type Relay struct {
	dsn     string
	channel string
	hub     *Hub
	logger  zerolog.Logger
}

// NewRelay creates a relay from channel into hub
func NewRelay(dsn, channel string, hub *Hub, logger zerolog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		dsn:     dsn,
		channel: channel,
		hub:     hub,
		logger:  logger.With().Str("component", "relay").Str("channel", channel).Logger(),
	}
}

// Run listens until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	listener := pq.NewListener(r.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			r.logger.Warn().Err(err).Msg("Notification listener disconnected")
		case pq.ListenerEventReconnected:
			r.logger.Info().Msg("Notification listener reconnected")
		}
	})
	defer listener.Close()

	if err := listener.Listen(r.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.channel, err)
	}
	r.logger.Info().Msg("Relaying task notifications")

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil follows a reconnect
			if n == nil {
				continue
			}
			r.hub.Broadcast([]byte(n.Extra))
		case <-ping.C:
			go listener.Ping()
		}
	}
}

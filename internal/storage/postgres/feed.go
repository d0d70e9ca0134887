package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/dicehall/internal/room"
)

// notifyChannel is the pg_notify channel fired by the room_rolls trigger.
const notifyChannel = "room_rolls_events"

// feedEventBuffer bounds the per-subscription delivery channel. A consumer
// that falls this far behind loses the subscription and must resync.
const feedEventBuffer = 64

// Listener delivers room change events over PostgreSQL LISTEN/NOTIFY. The
// trigger payload carries only identifiers; the full row is re-fetched so
// large roll payloads never hit the 8000-byte NOTIFY limit.
type Listener struct {
	pool   *pgxpool.Pool
	rolls  *RollRepository
	logger *zap.Logger
}

// NewListener creates a Listener backed by the given pool.
//
// Precondition: pool must be connected; logger must be non-nil.
func NewListener(pool *Pool, logger *zap.Logger) *Listener {
	return &Listener{
		pool:   pool.DB(),
		rolls:  NewRollRepository(pool.DB()),
		logger: logger,
	}
}

// notifyPayload is the JSON body produced by the room_rolls trigger.
type notifyPayload struct {
	Op     string `json:"op"`
	RoomID string `json:"room_id"`
	RollID int64  `json:"roll_id"`
}

// Subscribe opens a change subscription for one room. Each subscription holds
// a dedicated connection for the lifetime of the LISTEN.
//
// Postcondition: The returned subscription's channel is closed after Close,
// context cancellation, or a terminal connection error; a connection error is
// preceded by a FeedDown event.
func (l *Listener) Subscribe(ctx context.Context, roomID string) (room.Subscription, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listening on %s: %w", notifyChannel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		ch:     make(chan room.FeedEvent, feedEventBuffer),
		cancel: cancel,
	}
	go sub.loop(subCtx, conn, l, roomID)
	return sub, nil
}

type subscription struct {
	ch     chan room.FeedEvent
	cancel context.CancelFunc
}

// Events implements room.Subscription.
func (s *subscription) Events() <-chan room.FeedEvent {
	return s.ch
}

// Close implements room.Subscription. Safe to call more than once.
func (s *subscription) Close() error {
	s.cancel()
	return nil
}

// loop blocks on notifications until the context is cancelled or the
// connection dies. The connection is destroyed on exit rather than returned
// to the pool, since a pooled connection must not carry a LISTEN.
func (s *subscription) loop(ctx context.Context, conn *pgxpool.Conn, l *Listener, roomID string) {
	defer close(s.ch)
	defer func() {
		conn.Conn().Close(context.Background())
		conn.Release()
	}()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.deliver(ctx, room.FeedDown{Err: fmt.Errorf("waiting for notification: %w", err)})
			return
		}

		var payload notifyPayload
		if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
			l.logger.Warn("malformed feed payload",
				zap.String("payload", n.Payload),
				zap.Error(err),
			)
			continue
		}
		if payload.RoomID != roomID {
			continue
		}

		row, err := l.rolls.rollByID(ctx, payload.RoomID, payload.RollID)
		if err != nil {
			if errors.Is(err, room.ErrRollNotFound) {
				// Row vanished between notify and fetch.
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.deliver(ctx, room.FeedDown{Err: fmt.Errorf("fetching notified roll: %w", err)})
			return
		}

		var ev room.FeedEvent
		switch payload.Op {
		case "INSERT":
			ev = room.RollInserted{Row: row}
		case "UPDATE":
			ev = room.RollUpdated{Row: row}
		default:
			l.logger.Warn("unknown feed op", zap.String("op", payload.Op))
			continue
		}
		if !s.deliver(ctx, ev) {
			return
		}
	}
}

// deliver sends one event without blocking past cancellation. A full buffer
// counts as a lost subscription: the consumer is told the feed is down and
// the loop exits so it can resync.
func (s *subscription) deliver(ctx context.Context, ev room.FeedEvent) bool {
	select {
	case s.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case s.ch <- room.FeedDown{Err: errors.New("feed consumer too slow")}:
	default:
	}
	return false
}

var _ room.Feed = (*Listener)(nil)

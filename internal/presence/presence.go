// Package presence tracks who is currently in a room using Redis. Each
// member owns one TTL-bound record; membership changes are nudged over
// pub/sub and every nudge triggers a full snapshot rebuild, so consumers
// always see replacement lists rather than deltas.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cory-johannsen/dicehall/internal/config"
	"github.com/cory-johannsen/dicehall/internal/room"
)

const (
	connectTimeout = 5 * time.Second
	// syncBuffer bounds pending snapshots; stale ones are dropped in favor
	// of newer state.
	syncBuffer = 4
)

// Tracker implements room.Presence over a Redis client.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTracker connects to Redis and returns a presence Tracker.
//
// Precondition: ttl must be >= 1s; logger must be non-nil.
// Postcondition: Returns a connected Tracker or a non-nil error.
func NewTracker(cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) (*Tracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &Tracker{client: client, ttl: ttl, logger: logger}, nil
}

// Close releases the Redis client.
func (t *Tracker) Close() error {
	return t.client.Close()
}

// Join opens a presence channel for one room membership. The channel delivers
// a full member snapshot on every membership nudge and on each TTL refresh
// tick, which also catches silently expired records.
func (t *Tracker) Join(ctx context.Context, roomID, key string) (room.PresenceChannel, error) {
	pubsub := t.client.Subscribe(ctx, eventsChannel(roomID))
	// Force the subscription onto the wire before reporting success.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to presence events: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	ch := &channel{
		client: t.client,
		roomID: roomID,
		key:    key,
		ttl:    t.ttl,
		logger: t.logger,
		syncCh: make(chan []room.PresenceUser, syncBuffer),
		pubsub: pubsub,
		cancel: cancel,
	}
	go ch.loop(loopCtx)
	return ch, nil
}

type channel struct {
	client *redis.Client
	roomID string
	key    string
	ttl    time.Duration
	logger *zap.Logger
	syncCh chan []room.PresenceUser
	pubsub *redis.PubSub
	cancel context.CancelFunc

	mu   sync.Mutex
	last *room.PresenceUser
}

// Track publishes this member's presence record and nudges the room.
// Calling it again overwrites the record, which is how nickname changes
// propagate.
func (c *channel) Track(ctx context.Context, user room.PresenceUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding presence record: %w", err)
	}

	c.mu.Lock()
	c.last = &user
	c.mu.Unlock()

	if err := c.client.Set(ctx, userKey(c.roomID, c.key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing presence record: %w", err)
	}
	if err := c.client.Publish(ctx, eventsChannel(c.roomID), "sync").Err(); err != nil {
		return fmt.Errorf("nudging presence channel: %w", err)
	}
	return nil
}

// Sync implements room.PresenceChannel.
func (c *channel) Sync() <-chan []room.PresenceUser {
	return c.syncCh
}

// Leave removes this member's record and closes the channel. Safe to call
// more than once.
func (c *channel) Leave(ctx context.Context) error {
	c.cancel()
	if err := c.client.Del(ctx, userKey(c.roomID, c.key)).Err(); err != nil {
		return fmt.Errorf("removing presence record: %w", err)
	}
	return c.client.Publish(ctx, eventsChannel(c.roomID), "sync").Err()
}

// loop rebuilds and delivers snapshots until the context is cancelled. The
// refresh tick re-arms this member's TTL so the record outlives the key
// expiry as long as the channel is open.
func (c *channel) loop(ctx context.Context) {
	defer close(c.syncCh)
	defer func() { _ = c.pubsub.Close() }()

	interval := c.ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	msgs := c.pubsub.Channel()
	c.deliverSnapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			c.deliverSnapshot(ctx)
		case <-ticker.C:
			c.refresh(ctx)
			c.deliverSnapshot(ctx)
		}
	}
}

// refresh re-arms the TTL on this member's record.
func (c *channel) refresh(ctx context.Context) {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last == nil {
		return
	}

	data, err := json.Marshal(*last)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, userKey(c.roomID, c.key), data, c.ttl).Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("refreshing presence record",
			zap.String("room_id", c.roomID),
			zap.Error(err),
		)
	}
}

// deliverSnapshot scans all records for the room and pushes a replacement
// member list. When the consumer lags, the oldest pending snapshot is dropped.
func (c *channel) deliverSnapshot(ctx context.Context) {
	users, err := c.snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("building presence snapshot",
				zap.String("room_id", c.roomID),
				zap.Error(err),
			)
		}
		return
	}

	select {
	case c.syncCh <- users:
		return
	default:
	}
	select {
	case <-c.syncCh:
	default:
	}
	select {
	case c.syncCh <- users:
	default:
	}
}

// snapshot collects every live presence record for the room.
func (c *channel) snapshot(ctx context.Context) ([]room.PresenceUser, error) {
	prefix := roomKeyPrefix(c.roomID)

	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning presence keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return []room.PresenceUser{}, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching presence records: %w", err)
	}

	state := make(map[string][]room.PresenceUser, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}
		var user room.PresenceUser
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			c.logger.Warn("malformed presence record",
				zap.String("key", keys[i]),
				zap.Error(err),
			)
			continue
		}
		state[keys[i]] = append(state[keys[i]], user)
	}
	return room.FlattenPresence(state), nil
}

func roomKeyPrefix(roomID string) string {
	return "presence:room:" + roomID + ":user:"
}

func userKey(roomID, key string) string {
	return roomKeyPrefix(roomID) + key
}

func eventsChannel(roomID string) string {
	return "presence:room:" + roomID + ":events"
}

var (
	_ room.Presence        = (*Tracker)(nil)
	_ room.PresenceChannel = (*channel)(nil)
)

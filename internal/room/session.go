package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/dicehall/internal/game/dice"
	"github.com/cory-johannsen/dicehall/internal/game/visibility"
)

// Session tuning defaults.
const (
	// DefaultReconnectBackoff is the fixed one-shot delay before a
	// dropped subscription is re-opened.
	DefaultReconnectBackoff = 2 * time.Second
	// teardownTimeout bounds collaborator cleanup calls made outside a
	// caller-supplied context.
	teardownTimeout = 5 * time.Second
	// reconnectTimeout bounds the resynchronization fetch after a dropped
	// connection.
	reconnectTimeout = 30 * time.Second
)

// Config holds session tuning knobs.
type Config struct {
	// ReconnectBackoff is the fixed delay before reconnecting after a
	// feed failure. Zero selects DefaultReconnectBackoff.
	ReconnectBackoff time.Duration
}

// Session owns exactly one logical room membership at a time, reconciling
// local-optimistic state against the store's change feed.
//
// All exported methods are safe for concurrent use. Mutation flows through
// the pure merge reducers in merge.go; feed and presence messages are
// consumed by a single event-loop goroutine per subscription.
type Session struct {
	store    Store
	feed     Feed
	presence Presence
	logger   *zap.Logger
	userID   string
	backoff  time.Duration

	mu        sync.RWMutex
	joinToken int64
	room      *Room
	rolls     []RoomRoll
	users     []PresenceUser
	status    Status
	nickname  string
	lastErr   error

	sub            Subscription
	pch            PresenceChannel
	runCancel      context.CancelFunc
	reconnectTimer *time.Timer
}

// NewSession creates a Session for one client identity.
//
// store and feed may be nil when no backend is configured; Join then returns
// ErrNotConfigured and the caller degrades to solo mode. presence may be nil
// independently (rooms work without a who-is-here list).
//
// Precondition: logger must be non-nil; userID and nickname must be
// non-empty.
func NewSession(store Store, feed Feed, presence Presence, userID, nickname string, cfg Config, logger *zap.Logger) *Session {
	backoff := cfg.ReconnectBackoff
	if backoff <= 0 {
		backoff = DefaultReconnectBackoff
	}
	return &Session{
		store:    store,
		feed:     feed,
		presence: presence,
		logger:   logger,
		userID:   userID,
		nickname: nickname,
		backoff:  backoff,
		status:   StatusDisconnected,
	}
}

// Join finds or creates the room for slug, loads its history, and opens the
// change subscription and presence channel. Any previous membership is torn
// down first.
//
// Every suspension point re-checks the join token, so a call superseded by a
// newer Join (or by Leave) silently discards its results instead of
// clobbering shared state. Errors are room-scoped and retryable: the caller
// may re-invoke Join with the same slug. No partial join state is retained
// on failure.
func (s *Session) Join(ctx context.Context, slug string) error {
	if s.store == nil || s.feed == nil {
		return ErrNotConfigured
	}

	s.mu.Lock()
	s.joinToken++
	token := s.joinToken
	s.teardownLocked()
	s.room = nil
	s.rolls = nil
	s.users = nil
	s.lastErr = nil
	s.status = StatusJoining
	s.mu.Unlock()

	rm, err := s.findOrCreateRoom(ctx, slug)
	if err != nil {
		return s.failJoin(token, slug, err)
	}

	rows, err := s.store.RollsByRoom(ctx, rm.ID)
	if err != nil {
		return s.failJoin(token, slug, err)
	}
	// History renders instantly; it never replays animation.
	history := make([]RoomRoll, 0, len(rows))
	for _, row := range rows {
		history = append(history, s.rowToRoll(row, false))
	}

	if !s.tokenCurrent(token) {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())

	sub, err := s.feed.Subscribe(runCtx, rm.ID)
	if err != nil {
		cancel()
		return s.failJoin(token, slug, err)
	}

	var pch PresenceChannel
	if s.presence != nil {
		pch, err = s.presence.Join(runCtx, rm.ID, s.userID)
		if err != nil {
			cancel()
			_ = sub.Close()
			return s.failJoin(token, slug, err)
		}
	}

	s.mu.Lock()
	if token != s.joinToken {
		s.mu.Unlock()
		cancel()
		_ = sub.Close()
		if pch != nil {
			_ = pch.Leave(ctx)
		}
		return nil
	}
	s.room = &Room{ID: rm.ID, Slug: rm.Slug}
	s.rolls = history
	s.users = nil
	s.status = StatusConnected
	s.sub = sub
	s.pch = pch
	s.runCancel = cancel
	nickname := s.nickname
	s.mu.Unlock()

	go s.run(runCtx, token, sub, pch)

	if pch != nil {
		if err := pch.Track(ctx, PresenceUser{Nickname: nickname, OnlineAt: time.Now()}); err != nil {
			s.logger.Warn("tracking presence", zap.String("slug", slug), zap.Error(err))
		}
	}

	s.logger.Info("joined room",
		zap.String("slug", rm.Slug),
		zap.String("room_id", rm.ID),
		zap.Int("history", len(history)),
	)
	return nil
}

// findOrCreateRoom resolves slug to a room, creating it on first join. When
// creation loses a race to another client, the slug is re-fetched once
// before giving up.
func (s *Session) findOrCreateRoom(ctx context.Context, slug string) (Room, error) {
	rm, err := s.store.RoomBySlug(ctx, slug)
	if err == nil {
		return rm, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		return Room{}, err
	}

	rm, err = s.store.CreateRoom(ctx, slug)
	if err == nil {
		return rm, nil
	}
	if errors.Is(err, ErrRoomExists) {
		return s.store.RoomBySlug(ctx, slug)
	}
	return Room{}, err
}

// failJoin records a join failure unless the call was superseded, in which
// case the result is silently discarded.
func (s *Session) failJoin(token int64, slug string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.joinToken {
		return nil
	}
	s.room = nil
	s.rolls = nil
	s.status = StatusDisconnected
	s.lastErr = err
	return fmt.Errorf("joining room %q: %w", slug, err)
}

// BroadcastRoll appends an optimistic local copy of roll and persists the
// row. The later echoed insert event is deduplicated by roll ID, so the
// optimistic copy is authoritative for this client.
//
// A persist failure is logged and swallowed: the local copy stays visible to
// the roller. This local-first trade-off is deliberate.
func (s *Session) BroadcastRoll(ctx context.Context, roll dice.Roll, nickname string, vis visibility.Visibility) error {
	if !vis.Valid() {
		return fmt.Errorf("%w: %q", visibility.ErrInvalidVisibility, vis)
	}

	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return ErrNotInRoom
	}
	rm := *s.room
	rr := RoomRoll{
		Roll:          roll,
		Nickname:      nickname,
		AuthorID:      s.userID,
		IsLocal:       true,
		ShouldAnimate: true,
		Visibility:    vis,
		IsRevealed:    vis.InitialRevealed(),
	}
	s.rolls = MergeInsert(s.rolls, rr)
	s.mu.Unlock()

	row := RollRow{
		RoomID:     rm.ID,
		RollID:     roll.ID,
		UserID:     s.userID,
		Nickname:   nickname,
		Roll:       roll,
		Visibility: string(vis),
		IsRevealed: rr.IsRevealed,
	}
	if err := s.store.InsertRoll(ctx, row); err != nil {
		s.logger.Error("persisting roll",
			zap.Int64("roll_id", roll.ID),
			zap.String("room_id", rm.ID),
			zap.Error(err),
		)
	}
	return nil
}

// BroadcastCPSpend replaces a roll's dice with the bonus-extended array,
// optimistically locally and then in the store.
func (s *Session) BroadcastCPSpend(ctx context.Context, rollID int64, updated dice.Roll) error {
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return ErrNotInRoom
	}
	rm := *s.room

	var existing *RoomRoll
	for i := range s.rolls {
		if s.rolls[i].ID == rollID {
			existing = &s.rolls[i]
			break
		}
	}
	if existing == nil {
		s.mu.Unlock()
		return ErrRollNotFound
	}
	s.rolls = MergeUpdate(s.rolls, RollRow{
		RoomID:     rm.ID,
		RollID:     rollID,
		Roll:       updated,
		IsRevealed: existing.IsRevealed,
	})
	s.mu.Unlock()

	if err := s.store.UpdateRollData(ctx, rm.ID, rollID, updated); err != nil {
		s.logger.Error("persisting bonus dice",
			zap.Int64("roll_id", rollID),
			zap.String("room_id", rm.ID),
			zap.Error(err),
		)
	}
	return nil
}

// RevealRoll discloses one of this client's secret or hidden rolls to the
// room. The transition is monotonic and idempotent; only the original roller
// may reveal.
func (s *Session) RevealRoll(ctx context.Context, rollID int64) error {
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return ErrNotInRoom
	}
	rm := *s.room
	merged, _, err := MergeReveal(s.rolls, rollID, s.userID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.rolls = merged
	s.mu.Unlock()

	if err := s.store.SetRevealed(ctx, rm.ID, rollID); err != nil {
		s.logger.Error("persisting reveal",
			zap.Int64("roll_id", rollID),
			zap.String("room_id", rm.ID),
			zap.Error(err),
		)
	}
	return nil
}

// SetNickname changes this client's display name and re-publishes presence
// when a channel is open.
func (s *Session) SetNickname(ctx context.Context, nickname string) error {
	s.mu.Lock()
	s.nickname = nickname
	pch := s.pch
	s.mu.Unlock()

	if pch == nil {
		return nil
	}
	return pch.Track(ctx, PresenceUser{Nickname: nickname, OnlineAt: time.Now()})
}

// Leave tears down the subscription and presence channel and clears all room
// state. Safe to call when already disconnected.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinToken++
	s.teardownLocked()
	s.room = nil
	s.rolls = nil
	s.users = nil
	s.lastErr = nil
	s.status = StatusDisconnected
}

// teardownLocked cancels the event loop, closes the subscription and
// presence channel, and stops any pending reconnect timer.
//
// Precondition: s.mu must be held.
func (s *Session) teardownLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	if s.sub != nil {
		_ = s.sub.Close()
		s.sub = nil
	}
	if s.pch != nil {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		_ = s.pch.Leave(ctx)
		cancel()
		s.pch = nil
	}
}

// run is the single-threaded reconciliation loop for one subscription. Each
// message type maps onto one pure merge function.
func (s *Session) run(ctx context.Context, token int64, sub Subscription, pch PresenceChannel) {
	events := sub.Events()
	var syncCh <-chan []PresenceUser
	if pch != nil {
		syncCh = pch.Sync()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.scheduleReconnect(token, errors.New("change feed closed"))
				return
			}
			if down, isDown := ev.(FeedDown); isDown {
				s.scheduleReconnect(token, down.Err)
				return
			}
			s.applyFeedEvent(token, ev)
		case users, ok := <-syncCh:
			if !ok {
				syncCh = nil
				continue
			}
			s.applyPresence(token, users)
		}
	}
}

func (s *Session) applyFeedEvent(token int64, ev FeedEvent) {
	switch e := ev.(type) {
	case RollInserted:
		rr := s.rowToRoll(e.Row, true)
		s.mu.Lock()
		if token == s.joinToken && s.room != nil && e.Row.RoomID == s.room.ID {
			s.rolls = MergeInsert(s.rolls, rr)
		}
		s.mu.Unlock()
	case RollUpdated:
		s.mu.Lock()
		if token == s.joinToken && s.room != nil && e.Row.RoomID == s.room.ID {
			s.rolls = MergeUpdate(s.rolls, e.Row)
		}
		s.mu.Unlock()
	}
}

func (s *Session) applyPresence(token int64, users []PresenceUser) {
	s.mu.Lock()
	if token == s.joinToken && s.room != nil {
		s.users = users
	}
	s.mu.Unlock()
}

// scheduleReconnect arms the one-shot reconnect timer. A newer disconnect
// replaces any pending timer; only one may be pending at a time.
func (s *Session) scheduleReconnect(token int64, cause error) {
	s.mu.Lock()
	if token != s.joinToken || s.room == nil {
		s.mu.Unlock()
		return
	}
	s.status = StatusReconnecting
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	delay := s.backoff
	s.reconnectTimer = time.AfterFunc(delay, func() { s.reconnect(token) })
	s.mu.Unlock()

	s.logger.Warn("change feed down",
		zap.Duration("backoff", delay),
		zap.Error(cause),
	)
}

// reconnect re-fetches the full roll history (recovering anything missed
// while disconnected), re-opens the subscription, and re-publishes presence.
// This is a resynchronization, not a blind resubscribe.
func (s *Session) reconnect(token int64) {
	ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
	defer cancel()

	s.mu.Lock()
	if token != s.joinToken || s.room == nil {
		s.mu.Unlock()
		return
	}
	rm := *s.room
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	if s.sub != nil {
		_ = s.sub.Close()
		s.sub = nil
	}
	s.mu.Unlock()

	rows, err := s.store.RollsByRoom(ctx, rm.ID)
	if err != nil {
		s.scheduleReconnect(token, fmt.Errorf("resynchronizing history: %w", err))
		return
	}
	history := make([]RoomRoll, 0, len(rows))
	for _, row := range rows {
		history = append(history, s.rowToRoll(row, false))
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	sub, err := s.feed.Subscribe(runCtx, rm.ID)
	if err != nil {
		runCancel()
		s.scheduleReconnect(token, fmt.Errorf("resubscribing: %w", err))
		return
	}

	s.mu.Lock()
	if token != s.joinToken || s.room == nil {
		s.mu.Unlock()
		runCancel()
		_ = sub.Close()
		return
	}
	s.rolls = MergeHistory(history, s.rolls)
	s.sub = sub
	s.runCancel = runCancel
	s.status = StatusConnected
	nickname := s.nickname
	pch := s.pch
	s.mu.Unlock()

	go s.run(runCtx, token, sub, pch)

	if pch != nil {
		if err := pch.Track(ctx, PresenceUser{Nickname: nickname, OnlineAt: time.Now()}); err != nil {
			s.logger.Warn("re-tracking presence", zap.Error(err))
		}
	}

	s.logger.Info("resynchronized room",
		zap.String("room_id", rm.ID),
		zap.Int("history", len(history)),
	)
}

// rowToRoll maps a stored row into a RoomRoll for this viewer. IsLocal is
// derived by comparing the row's author identity against this client's.
func (s *Session) rowToRoll(row RollRow, animate bool) RoomRoll {
	vis, err := visibility.Parse(row.Visibility)
	if err != nil {
		// Unknown stored visibility: withhold rather than expose.
		s.logger.Warn("unknown roll visibility",
			zap.Int64("roll_id", row.RollID),
			zap.String("visibility", row.Visibility),
		)
		vis = visibility.Secret
	}
	return RoomRoll{
		Roll:          row.Roll,
		Nickname:      row.Nickname,
		AuthorID:      row.UserID,
		IsLocal:       row.UserID != "" && row.UserID == s.userID,
		ShouldAnimate: animate,
		Visibility:    vis,
		IsRevealed:    row.IsRevealed,
	}
}

func (s *Session) tokenCurrent(token int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return token == s.joinToken
}

// Room returns the joined room, if any.
func (s *Session) Room() (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return Room{}, false
	}
	return *s.room, true
}

// Rolls returns a snapshot of the merged roll ledger, oldest first.
func (s *Session) Rolls() []RoomRoll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomRoll, len(s.rolls))
	copy(out, s.rolls)
	return out
}

// Users returns a snapshot of the current presence list.
func (s *Session) Users() []PresenceUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PresenceUser, len(s.users))
	copy(out, s.users)
	return out
}

// Status returns the session's connection state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Nickname returns this client's current display name.
func (s *Session) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

// Err returns the last room-scoped error, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

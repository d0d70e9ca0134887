package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/dicehall/internal/presence"
	"github.com/cory-johannsen/dicehall/internal/room"
	"github.com/cory-johannsen/dicehall/internal/testutil"
)

const presenceWait = 10 * time.Second

func newTracker(t *testing.T) *presence.Tracker {
	t.Helper()
	rc := testutil.NewRedisContainer(t)
	tracker, err := presence.NewTracker(rc.Config, 30*time.Second, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })
	return tracker
}

// waitForUsers reads snapshots until one matches the predicate or the
// deadline passes.
func waitForUsers(t *testing.T, ch room.PresenceChannel, ok func([]room.PresenceUser) bool) []room.PresenceUser {
	t.Helper()
	deadline := time.After(presenceWait)
	for {
		select {
		case users, open := <-ch.Sync():
			require.True(t, open, "presence channel closed unexpectedly")
			if ok(users) {
				return users
			}
		case <-deadline:
			t.Fatal("timed out waiting for presence snapshot")
			return nil
		}
	}
}

func TestTracker_TrackAndSync(t *testing.T) {
	tracker := newTracker(t)
	ctx := context.Background()

	ch, err := tracker.Join(ctx, "room-1", "user-a")
	require.NoError(t, err)
	defer func() { _ = ch.Leave(ctx) }()

	require.NoError(t, ch.Track(ctx, room.PresenceUser{Nickname: "Swift Falcon", OnlineAt: time.Now()}))

	users := waitForUsers(t, ch, func(u []room.PresenceUser) bool { return len(u) == 1 })
	assert.Equal(t, "Swift Falcon", users[0].Nickname)
}

func TestTracker_TwoMembers(t *testing.T) {
	tracker := newTracker(t)
	ctx := context.Background()

	chA, err := tracker.Join(ctx, "room-2", "user-a")
	require.NoError(t, err)
	defer func() { _ = chA.Leave(ctx) }()
	require.NoError(t, chA.Track(ctx, room.PresenceUser{Nickname: "Swift Falcon", OnlineAt: time.Now()}))

	chB, err := tracker.Join(ctx, "room-2", "user-b")
	require.NoError(t, err)
	defer func() { _ = chB.Leave(ctx) }()
	require.NoError(t, chB.Track(ctx, room.PresenceUser{Nickname: "Bronze Wolf", OnlineAt: time.Now()}))

	// Both sides converge on the same two-member snapshot.
	waitForUsers(t, chA, func(u []room.PresenceUser) bool { return len(u) == 2 })
	waitForUsers(t, chB, func(u []room.PresenceUser) bool { return len(u) == 2 })

	// Leaving nudges the survivor back down to one member.
	require.NoError(t, chB.Leave(ctx))
	users := waitForUsers(t, chA, func(u []room.PresenceUser) bool { return len(u) == 1 })
	assert.Equal(t, "Swift Falcon", users[0].Nickname)
}

func TestTracker_RoomsAreIsolated(t *testing.T) {
	tracker := newTracker(t)
	ctx := context.Background()

	chA, err := tracker.Join(ctx, "room-3", "user-a")
	require.NoError(t, err)
	defer func() { _ = chA.Leave(ctx) }()
	require.NoError(t, chA.Track(ctx, room.PresenceUser{Nickname: "Swift Falcon", OnlineAt: time.Now()}))

	chOther, err := tracker.Join(ctx, "room-4", "user-b")
	require.NoError(t, err)
	defer func() { _ = chOther.Leave(ctx) }()
	require.NoError(t, chOther.Track(ctx, room.PresenceUser{Nickname: "Bronze Wolf", OnlineAt: time.Now()}))

	users := waitForUsers(t, chA, func(u []room.PresenceUser) bool { return len(u) >= 1 })
	for _, u := range users {
		assert.NotEqual(t, "Bronze Wolf", u.Nickname, "other room's member must not appear")
	}
}

func TestTracker_RetrackChangesNickname(t *testing.T) {
	tracker := newTracker(t)
	ctx := context.Background()

	ch, err := tracker.Join(ctx, "room-5", "user-a")
	require.NoError(t, err)
	defer func() { _ = ch.Leave(ctx) }()

	require.NoError(t, ch.Track(ctx, room.PresenceUser{Nickname: "Swift Falcon", OnlineAt: time.Now()}))
	waitForUsers(t, ch, func(u []room.PresenceUser) bool {
		return len(u) == 1 && u[0].Nickname == "Swift Falcon"
	})

	require.NoError(t, ch.Track(ctx, room.PresenceUser{Nickname: "Crimson Lynx", OnlineAt: time.Now()}))
	users := waitForUsers(t, ch, func(u []room.PresenceUser) bool {
		return len(u) == 1 && u[0].Nickname == "Crimson Lynx"
	})
	assert.Len(t, users, 1, "re-track replaces the record, it does not add one")
}

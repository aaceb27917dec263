package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbattle/internal/domain"
)

func TestCreateRoom(t *testing.T) {
	r := NewRegistry()

	roomID, err := r.CreateRoom("alice")
	require.NoError(t, err)
	assert.Len(t, roomID, domain.RoomIDLength)

	info, ok := r.GetRoomInfo(roomID)
	require.True(t, ok)
	require.Len(t, info.Users, 1)
	assert.Equal(t, "alice", info.Users[0].Username)
	assert.False(t, info.Users[0].Ready)
}

func TestCreateRoomInvalidUsername(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateRoom("")
	assert.ErrorIs(t, err, domain.ErrUsernameEmpty)
}

func TestJoinRoomIdempotent(t *testing.T) {
	r := NewRegistry()
	roomID, err := r.CreateRoom("alice")
	require.NoError(t, err)

	require.NoError(t, r.JoinRoom(roomID, "bob"))
	require.NoError(t, r.JoinRoom(roomID, "bob"))

	info, _ := r.GetRoomInfo(roomID)
	assert.Equal(t, []string{"alice", "bob"}, info.Usernames())

	// Re-joining never resets readiness.
	require.NoError(t, r.SetReady(roomID, "bob"))
	require.NoError(t, r.JoinRoom(roomID, "bob"))
	info, _ = r.GetRoomInfo(roomID)
	assert.True(t, info.Users[1].Ready)
}

func TestJoinRoomNotFound(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.JoinRoom("NOROOM00", "bob"), ErrRoomNotFound)
}

func TestSetReady(t *testing.T) {
	r := NewRegistry()
	roomID, err := r.CreateRoom("alice")
	require.NoError(t, err)

	assert.ErrorIs(t, r.SetReady("NOROOM00", "alice"), ErrRoomNotFound)
	assert.ErrorIs(t, r.SetReady(roomID, "mallory"), ErrParticipantNotFound)

	require.NoError(t, r.SetReady(roomID, "alice"))
	info, _ := r.GetRoomInfo(roomID)
	assert.True(t, info.Users[0].Ready)
}

func TestAllReady(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.AllReady("NOROOM00"))

	roomID, err := r.CreateRoom("alice")
	require.NoError(t, err)
	assert.False(t, r.AllReady(roomID))

	require.NoError(t, r.SetReady(roomID, "alice"))
	assert.True(t, r.AllReady(roomID))

	// A new unready member flips the room back.
	require.NoError(t, r.JoinRoom(roomID, "bob"))
	assert.False(t, r.AllReady(roomID))

	require.NoError(t, r.SetReady(roomID, "bob"))
	assert.True(t, r.AllReady(roomID))

	// An empty room is never all-ready.
	require.NoError(t, r.LeaveRoom(roomID, "alice"))
	require.NoError(t, r.LeaveRoom(roomID, "bob"))
	assert.False(t, r.AllReady(roomID))
}

func TestLeaveRoom(t *testing.T) {
	r := NewRegistry()
	roomID, err := r.CreateRoom("alice")
	require.NoError(t, err)
	require.NoError(t, r.JoinRoom(roomID, "bob"))

	require.NoError(t, r.LeaveRoom(roomID, "bob"))
	require.NoError(t, r.LeaveRoom(roomID, "bob"))
	info, _ := r.GetRoomInfo(roomID)
	assert.Equal(t, []string{"alice"}, info.Usernames())

	assert.ErrorIs(t, r.LeaveRoom("NOROOM00", "bob"), ErrRoomNotFound)

	// Removing the last participant keeps the room alive.
	require.NoError(t, r.LeaveRoom(roomID, "alice"))
	_, ok := r.GetRoomInfo(roomID)
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	r := NewRegistry()
	roomID, err := r.CreateRoom("alice")
	require.NoError(t, err)

	assert.Empty(t, r.Sweep(time.Hour))

	time.Sleep(time.Millisecond)
	evicted := r.Sweep(0)
	assert.Equal(t, []string{roomID}, evicted)
	_, ok := r.GetRoomInfo(roomID)
	assert.False(t, ok)
}

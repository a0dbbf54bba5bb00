package repositories

import (
	apperrors "chat-bridge/errors"

	"chat-bridge/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Room_RoundTrip(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	room := domain.NewRoom("CHAT-042")
	room.AddMember(domain.Member{
		UserID:       "u1",
		AssignedRole: domain.RoleChild,
		Model:        domain.ModelNarrative,
		JoinedAt:     time.Now().UTC(),
	})
	req.NoError(repository.CreateRoom(room))

	fetched, err := repository.GetRoom("CHAT-042")
	req.NoError(err)
	req.Equal("CHAT-042", fetched.Code)
	req.Equal(domain.StatusWaiting, fetched.Status)
	req.False(fetched.BroadcastDispatched)
	req.Equal(1, fetched.Occupancy())

	m, ok := fetched.Member("u1")
	req.True(ok)
	req.Equal(domain.RoleChild, m.AssignedRole)
	req.Equal(domain.ModelNarrative, m.Model)
}

func Test_Room_NotFound(t *testing.T) {
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	_, err := repository.GetRoom("CHAT-999")
	require.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func Test_Room_FieldUpdates(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	room := domain.NewRoom("CHAT-100")
	room.AddMember(domain.Member{UserID: "u1", JoinedAt: time.Now().UTC()})
	room.AddMember(domain.Member{UserID: "u2", JoinedAt: time.Now().UTC()})
	req.NoError(repository.SaveRoom(room))

	req.NoError(repository.SetBroadcastDispatched("CHAT-100", true))
	req.NoError(repository.UpdateStatus("CHAT-100", domain.StatusReady))

	fetched, err := repository.GetRoom("CHAT-100")
	req.NoError(err)
	req.True(fetched.BroadcastDispatched)
	req.Equal(domain.StatusReady, fetched.Status)
	// Field updates must not disturb membership.
	req.Equal(2, fetched.Occupancy())
}

func Test_Room_FieldUpdate_MissingRoom(t *testing.T) {
	repository := NewRoomRepository(openTestDB(t), slog.Default())
	err := repository.SetBroadcastDispatched("CHAT-404", true)
	require.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func Test_Room_List(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openTestDB(t), slog.Default())

	for _, code := range []string{"CHAT-101", "CHAT-102", "CHAT-103"} {
		req.NoError(repository.SaveRoom(domain.NewRoom(code)))
	}
	rooms, err := repository.ListRooms()
	req.NoError(err)
	req.Len(rooms, 3)
}

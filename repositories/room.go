package repositories

import (
	apperrors "chat-bridge/errors"

	"chat-bridge/domain"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const roomKeyPrefix = "room:"

// RoomRepository persists rooms in BadgerDB, one document per room under
// "room:{code}". Every operation touches exactly one document; the store
// is used as if it offered no multi-document transactions and no
// compare-and-swap, so concurrent read-modify-write cycles on the same
// room may overwrite each other. The status recomputation layer above is
// what makes that tolerable.
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log}
}

func roomKey(code string) []byte {
	return []byte(roomKeyPrefix + code)
}

func (r RoomRepository) GetRoom(code string) (*domain.Room, error) {
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(code))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperrors.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading room %s: %w", code, err)
	}
	return decodeRoom(data)
}

// CreateRoom writes a fresh room document. Rooms are created lazily on
// the first join attempt for an unseen code; if two clients race here the
// later write wins, which is harmless because both wrote an empty room.
func (r RoomRepository) CreateRoom(room *domain.Room) error {
	return r.SaveRoom(room)
}

func (r RoomRepository) SaveRoom(room *domain.Room) error {
	data, err := encodeRoom(room)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.Code), data)
	})
}

// UpdateStatus rewrites only the status field of the room document.
func (r RoomRepository) UpdateStatus(code string, status domain.Status) error {
	return r.updateField(code, func(room *domain.Room) {
		room.Status = status
	})
}

// SetBroadcastDispatched rewrites only the broadcast flag. This is the
// optimistic "flag-then-verify" write of the dispatch protocol; it is
// atomic for this document but is not a test-and-set against a prior read.
func (r RoomRepository) SetBroadcastDispatched(code string, dispatched bool) error {
	return r.updateField(code, func(room *domain.Room) {
		room.BroadcastDispatched = dispatched
	})
}

func (r RoomRepository) updateField(code string, mutate func(*domain.Room)) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(code))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		room, err := decodeRoom(data)
		if err != nil {
			return err
		}
		mutate(room)
		updated, err := encodeRoom(room)
		if err != nil {
			return err
		}
		return txn.Set(roomKey(code), updated)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrRoomNotFound
	}
	return err
}

// ListRooms scans every room document. Operator surface only.
func (r RoomRepository) ListRooms() ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomKeyPrefix)
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				room, err := decodeRoom(value)
				if err != nil {
					return err
				}
				rooms = append(rooms, *room)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}

package repositories

import (
	"chat-bridge/domain"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// MessageRepository persists messages in BadgerDB. Messages are
// append-only and immutable; nothing here updates or deletes.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// Append persists a message.
// The key is formatted as "msg:{room_code}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func (m MessageRepository) Append(message domain.Message) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.RoomCode,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	data, err := encodeMessage(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// ListByRoom retrieves every message of a room in ascending creation
// order, via a forward prefix scan over the padded-timestamp keys.
// The read path is a fresh full scan each call; there is no cursor.
func (m MessageRepository) ListByRoom(code string) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", code))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

// CountByRole is the count-by-filter operation of the store boundary,
// used by the status derivation to learn whether any user message exists.
func (m MessageRepository) CountByRole(code string, role domain.MessageRole) (int, error) {
	messages, err := m.ListByRoom(code)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, message := range messages {
		if message.Role == role {
			count++
		}
	}
	return count, nil
}

// HasCanonical reports whether a system message with exactly the given
// content already exists in the room. This content-based dedup is the
// ultimate backstop of the one-time broadcast protocol.
func (m MessageRepository) HasCanonical(code, content string) (bool, error) {
	messages, err := m.ListByRoom(code)
	if err != nil {
		return false, err
	}
	for _, message := range messages {
		if message.Role == domain.MessageRoleSystem && message.Content == content {
			return true, nil
		}
	}
	return false, nil
}

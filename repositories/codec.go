package repositories

import (
	"chat-bridge/domain"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// On-disk representations. The store only guarantees atomicity per
// document, so rooms and messages are each encoded as one self-contained
// CBOR value.

type diskMember struct {
	UserID   string `cbor:"user_id"`
	Role     string `cbor:"role,omitempty"`
	Model    string `cbor:"model,omitempty"`
	JoinedAt int64  `cbor:"joined_at"`
}

type diskRoom struct {
	Code                string       `cbor:"code"`
	Members             []diskMember `cbor:"members"`
	Status              string       `cbor:"status"`
	BroadcastDispatched bool         `cbor:"broadcast_dispatched"`
	CreatedAt           int64        `cbor:"created_at"`
}

type diskMessage struct {
	ID       string  `cbor:"id"`
	RoomCode string  `cbor:"room_code"`
	SenderID string  `cbor:"sender_id"`
	Role     string  `cbor:"role"`
	Content  string  `cbor:"content"`
	At       int64   `cbor:"at"`
	Target   *string `cbor:"target,omitempty"`
}

func encodeRoom(room *domain.Room) ([]byte, error) {
	disk := diskRoom{
		Code:                room.Code,
		Status:              string(room.Status),
		BroadcastDispatched: room.BroadcastDispatched,
		CreatedAt:           room.CreatedAt.UnixNano(),
	}
	for _, m := range room.Members {
		disk.Members = append(disk.Members, diskMember{
			UserID:   m.UserID,
			Role:     string(m.AssignedRole),
			Model:    string(m.Model),
			JoinedAt: m.JoinedAt.UnixNano(),
		})
	}
	return cbor.Marshal(disk)
}

func decodeRoom(data []byte) (*domain.Room, error) {
	var disk diskRoom
	if err := cbor.Unmarshal(data, &disk); err != nil {
		return nil, err
	}
	room := &domain.Room{
		Code:                disk.Code,
		Status:              domain.Status(disk.Status),
		BroadcastDispatched: disk.BroadcastDispatched,
		CreatedAt:           time.Unix(0, disk.CreatedAt).UTC(),
	}
	for _, m := range disk.Members {
		room.Members = append(room.Members, domain.Member{
			UserID:       m.UserID,
			AssignedRole: domain.Role(m.Role),
			Model:        domain.ConversationModel(m.Model),
			JoinedAt:     time.Unix(0, m.JoinedAt).UTC(),
		})
	}
	return room, nil
}

func encodeMessage(message domain.Message) ([]byte, error) {
	return cbor.Marshal(diskMessage{
		ID:       message.ID.String(),
		RoomCode: message.RoomCode,
		SenderID: message.SenderID,
		Role:     string(message.Role),
		Content:  message.Content,
		At:       message.CreatedAt.UnixNano(),
		Target:   message.VisibilityTarget,
	})
}

func decodeMessage(data []byte) (domain.Message, error) {
	var disk diskMessage
	if err := cbor.Unmarshal(data, &disk); err != nil {
		return domain.Message{}, err
	}
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:               parsedID,
		RoomCode:         disk.RoomCode,
		SenderID:         disk.SenderID,
		Role:             domain.MessageRole(disk.Role),
		Content:          disk.Content,
		CreatedAt:        time.Unix(0, disk.At).UTC(),
		VisibilityTarget: disk.Target,
	}, nil
}

// DecodeStoredRoom exposes the disk codec for the badger inspector.
func DecodeStoredRoom(data []byte) (*domain.Room, error) {
	return decodeRoom(data)
}

// DecodeStoredMessage exposes the disk codec for the badger inspector.
func DecodeStoredMessage(data []byte) (domain.Message, error) {
	return decodeMessage(data)
}

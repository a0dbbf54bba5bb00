// Package domain contains core concepts of the mediated chat system.
// This file defines Message events and the per-recipient visibility rules.
// Messages are immutable once created.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole tags who authored a message.
type MessageRole string

const (
	MessageRoleUser   MessageRole = "user"
	MessageRoleAI     MessageRole = "ai"
	MessageRoleSystem MessageRole = "system"
)

// ReplySenderID is the synthetic sender identity of generated replies.
const ReplySenderID = "ai"

// Message represents an immutable chat event.
// VisibilityTarget restricts who may read it; nil means broadcast to the
// whole room and is only ever valid for system messages.
type Message struct {
	ID               uuid.UUID
	RoomCode         string
	SenderID         string
	Role             MessageRole
	Content          string
	CreatedAt        time.Time
	VisibilityTarget *string
}

// NewUserMessage builds a user submission. A user's own text is visible
// only to itself; this is the privacy property the whole system exists
// to provide.
func NewUserMessage(roomCode, senderID, content string) Message {
	target := senderID
	return Message{
		ID:               uuid.New(),
		RoomCode:         roomCode,
		SenderID:         senderID,
		Role:             MessageRoleUser,
		Content:          content,
		CreatedAt:        time.Now().UTC(),
		VisibilityTarget: &target,
	}
}

// NewReplyMessage builds a generated reply addressed to a single member.
func NewReplyMessage(roomCode, targetUserID, content string) Message {
	target := targetUserID
	return Message{
		ID:               uuid.New(),
		RoomCode:         roomCode,
		SenderID:         ReplySenderID,
		Role:             MessageRoleAI,
		Content:          content,
		CreatedAt:        time.Now().UTC(),
		VisibilityTarget: &target,
	}
}

// NewSystemMessage builds a broadcast visible to every member.
func NewSystemMessage(roomCode, content string) Message {
	return Message{
		ID:        uuid.New(),
		RoomCode:  roomCode,
		SenderID:  string(MessageRoleSystem),
		Role:      MessageRoleSystem,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// VisibleTo applies the visibility partition for a requester:
// system broadcasts are visible to everyone, user submissions only to
// their author, generated replies only to their addressee.
func (m Message) VisibleTo(requesterID string) bool {
	switch m.Role {
	case MessageRoleSystem:
		return m.VisibilityTarget == nil || *m.VisibilityTarget == ""
	case MessageRoleUser:
		return m.SenderID == requesterID
	case MessageRoleAI:
		return m.VisibilityTarget != nil && *m.VisibilityTarget == requesterID
	default:
		return false
	}
}

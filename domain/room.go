// Package domain contains core concepts of the mediated chat system.
// This file defines Room entities, membership and the status derivation rules.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting Status = "WAITING" // fewer than 2 members
	StatusReady   Status = "READY"   // 2+ members, conversation not started yet
	StatusActive  Status = "ACTIVE"  // 2+ members, broadcast sent, at least one user message
	StatusEnded   Status = "ENDED"   // terminal, set administratively only
)

// Role is the declared family position of a member.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// ConversationModel selects the responder's reply style.
type ConversationModel string

const (
	ModelNarrative     ConversationModel = "narrative"
	ModelArgumentative ConversationModel = "argumentative"
)

// RoomCapacity is the hard member limit. The protocol itself is designed
// around exactly two active participants; the spare slot absorbs rejoins
// from a device that lost its stored identity.
const RoomCapacity = 3

var roomCodePattern = regexp.MustCompile(`^CHAT-\d{3}$`)

// ValidRoomCode reports whether code matches the canonical CHAT-NNN format.
func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// NewRoomCode returns a random code in the canonical format.
func NewRoomCode() string {
	return fmt.Sprintf("CHAT-%03d", 100+rand.Intn(900))
}

// NewUserID returns a fresh anonymous participant identity.
func NewUserID() string {
	return "user_" + uuid.NewString()
}

// Member is a participant identity joined to a room.
type Member struct {
	UserID       string
	AssignedRole Role
	Model        ConversationModel
	JoinedAt     time.Time
}

// Room is a coordination session keyed by a short code.
// The Status field is a cache of DerivedStatus, never authoritative on its own.
type Room struct {
	Code                string
	Members             []Member
	Status              Status
	BroadcastDispatched bool
	CreatedAt           time.Time
}

func NewRoom(code string) *Room {
	return &Room{
		Code:      code,
		Status:    StatusWaiting,
		CreatedAt: time.Now().UTC(),
	}
}

// Occupancy counts members with a usable identity.
func (r *Room) Occupancy() int {
	n := 0
	for _, m := range r.Members {
		if m.UserID != "" {
			n++
		}
	}
	return n
}

// Member returns the member with the given id, if present.
func (r *Room) Member(userID string) (Member, bool) {
	for _, m := range r.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// OtherMember returns the first member that is not userID.
func (r *Room) OtherMember(userID string) (Member, bool) {
	for _, m := range r.Members {
		if m.UserID != "" && m.UserID != userID {
			return m, true
		}
	}
	return Member{}, false
}

// AddMember appends a member. Capacity and duplicate checks belong to the
// coordinator; membership mutation itself stays dumb.
func (r *Room) AddMember(m Member) {
	r.Members = append(r.Members, m)
}

// SetRole updates the assigned role of an existing member in place.
// It reports whether anything changed.
func (r *Room) SetRole(userID string, role Role) bool {
	for i, m := range r.Members {
		if m.UserID == userID && role != "" && m.AssignedRole != role {
			r.Members[i].AssignedRole = role
			return true
		}
	}
	return false
}

// DerivedStatus recomputes the lifecycle state from primary facts.
// ENDED is sticky: derivation never resurrects an administratively
// closed room.
func (r *Room) DerivedStatus(hasUserMessage bool) Status {
	if r.Status == StatusEnded {
		return StatusEnded
	}
	return DeriveStatus(r.Occupancy(), r.BroadcastDispatched, hasUserMessage)
}

// DeriveStatus is the pure status function of the three primary facts:
// occupancy, the broadcast flag, and the existence of a user-authored message.
func DeriveStatus(occupancy int, dispatched bool, hasUserMessage bool) Status {
	switch {
	case occupancy < 2:
		return StatusWaiting
	case dispatched && hasUserMessage:
		return StatusActive
	default:
		return StatusReady
	}
}

// StatusReport is the answer to a status query. When the store cannot be
// reached, UnknownStatus stands in for the truth.
type StatusReport struct {
	Exists    bool   `json:"exists"`
	Occupancy int    `json:"occupancy"`
	Capacity  int    `json:"capacity"`
	Status    Status `json:"status"`
}

// UnknownStatus is returned when the room is absent or the store failed.
// Callers treat "cannot determine" the same as "not yet ready".
func UnknownStatus() StatusReport {
	return StatusReport{Exists: false, Occupancy: 0, Capacity: RoomCapacity, Status: StatusWaiting}
}

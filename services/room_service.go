package services

import (
	apperrors "chat-bridge/errors"

	"chat-bridge/contract"
	"chat-bridge/domain"
	"chat-bridge/observability"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type IRoomService interface {
	GetStatus(code string) domain.StatusReport
	Join(ctx context.Context, cmd JoinCommand) (*domain.Room, error)
	Allocate() (code, userID string)
	EndRoom(code string) error
	SweepIdle(idleTTL time.Duration, now time.Time) ([]string, error)
}

// JoinCommand carries one join attempt.
type JoinCommand struct {
	Code   string
	UserID string
	Model  domain.ConversationModel
	Role   domain.Role
}

// RoomService owns the room lifecycle: lazy creation, the join protocol
// with its convergence polling, and status recomputation. Status is never
// trusted from storage; it is re-derived from membership and message facts
// on every read and written back only as a cache.
type RoomService struct {
	rooms            contract.IRoomRepository
	messages         contract.IMessageRepository
	log              *slog.Logger
	convergeAttempts int
	convergeDelay    time.Duration
}

func NewRoomService(
	rooms contract.IRoomRepository,
	messages contract.IMessageRepository,
	log *slog.Logger,
	convergeAttempts int,
	convergeDelay time.Duration,
) *RoomService {
	return &RoomService{
		rooms:            rooms,
		messages:         messages,
		log:              log,
		convergeAttempts: convergeAttempts,
		convergeDelay:    convergeDelay,
	}
}

// GetStatus recomputes the room status from primary facts and writes the
// result back when it drifted. It fails soft: an unreachable store yields
// the "does not exist yet" report instead of an error, because callers
// treat "cannot determine" the same as "not yet ready".
func (s *RoomService) GetStatus(code string) domain.StatusReport {
	room, err := s.rooms.GetRoom(code)
	if errors.Is(err, apperrors.ErrRoomNotFound) {
		return domain.UnknownStatus()
	}
	if err != nil {
		observability.StoreFailures.Inc()
		s.log.Error("status read failed, downgrading to unknown", "room", code, "err", err)
		return domain.UnknownStatus()
	}

	hasUserMessage := s.hasUserMessage(code)
	status := room.DerivedStatus(hasUserMessage)
	if status != room.Status {
		// Opportunistic cache write-back. A lost update here is repaired
		// by the next reader.
		if err := s.rooms.UpdateStatus(code, status); err != nil {
			observability.StoreFailures.Inc()
			s.log.Warn("status write-back failed", "room", code, "err", err)
		}
	}
	return domain.StatusReport{
		Exists:    true,
		Occupancy: room.Occupancy(),
		Capacity:  domain.RoomCapacity,
		Status:    status,
	}
}

func (s *RoomService) hasUserMessage(code string) bool {
	count, err := s.messages.CountByRole(code, domain.MessageRoleUser)
	if err != nil {
		observability.StoreFailures.Inc()
		s.log.Warn("user message count failed, assuming none", "room", code, "err", err)
		return false
	}
	return count > 0
}

const allocateAttempts = 5

// Allocate hands out a fresh room code and participant identity for
// clients that do not bring their own. Nothing is reserved here; the
// code only becomes a room on the first join. A taken code merely joins
// an existing room, so after a few occupied draws the last candidate is
// returned as-is.
func (s *RoomService) Allocate() (code, userID string) {
	userID = domain.NewUserID()
	for i := 0; i < allocateAttempts; i++ {
		code = domain.NewRoomCode()
		if _, err := s.rooms.GetRoom(code); errors.Is(err, apperrors.ErrRoomNotFound) {
			return code, userID
		}
	}
	s.log.Warn("no free room code found, handing out a possibly occupied one", "room", code)
	return code, userID
}

// Join implements the membership protocol: validate the code, lazily
// create the room, enforce capacity on recomputed occupancy, append or
// update the member, then poll until the store reflects the write or
// attempts run out.
func (s *RoomService) Join(ctx context.Context, cmd JoinCommand) (*domain.Room, error) {
	if !domain.ValidRoomCode(cmd.Code) {
		observability.JoinsTotal.WithLabelValues("invalid_code").Inc()
		return nil, apperrors.ErrInvalidRoomCode
	}

	room, err := s.getOrCreateRoom(cmd.Code)
	if err != nil {
		observability.JoinsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if room.Status == domain.StatusEnded {
		observability.JoinsTotal.WithLabelValues("ended").Inc()
		return nil, apperrors.ErrRoomEnded
	}

	if _, ok := room.Member(cmd.UserID); ok {
		return s.rejoin(room, cmd)
	}

	if room.Occupancy() >= domain.RoomCapacity {
		observability.JoinsTotal.WithLabelValues("full").Inc()
		return nil, apperrors.ErrRoomFull
	}

	// Read-modify-write on the room document. Not atomic against another
	// joiner; the spare capacity slot and idempotent rejoin absorb the
	// rare lost update.
	latest, err := s.rooms.GetRoom(cmd.Code)
	if err != nil {
		observability.JoinsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("re-reading room before join: %w", err)
	}
	latest.AddMember(domain.Member{
		UserID:       cmd.UserID,
		AssignedRole: cmd.Role,
		Model:        cmd.Model,
		JoinedAt:     time.Now().UTC(),
	})
	if err := s.rooms.SaveRoom(latest); err != nil {
		observability.JoinsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("persisting join: %w", err)
	}

	s.awaitConvergence(ctx, cmd.Code, latest.Occupancy())
	observability.JoinsTotal.WithLabelValues("joined").Inc()

	joined, err := s.rooms.GetRoom(cmd.Code)
	if err != nil {
		// The write went through; hand back our local view.
		return latest, nil
	}
	return joined, nil
}

// rejoin handles a userId already present in the member set: a role
// change is applied in place, anything else is a no-op. Join is
// idempotent per (code, userId).
func (s *RoomService) rejoin(room *domain.Room, cmd JoinCommand) (*domain.Room, error) {
	if room.SetRole(cmd.UserID, cmd.Role) {
		if err := s.rooms.SaveRoom(room); err != nil {
			observability.JoinsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("persisting role change: %w", err)
		}
		s.log.Info("member role updated", "room", room.Code, "user", cmd.UserID, "role", cmd.Role)
	}
	observability.JoinsTotal.WithLabelValues("rejoined").Inc()
	return room, nil
}

// awaitConvergence compensates for read-after-write staleness: it
// re-reads occupancy with a fixed delay between attempts until the store
// reflects the expected post-join count. Best effort only; running out
// of attempts is not an error.
func (s *RoomService) awaitConvergence(ctx context.Context, code string, expected int) {
	for attempt := 1; attempt <= s.convergeAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.convergeDelay):
		}
		report := s.GetStatus(code)
		if report.Occupancy >= expected {
			return
		}
		s.log.Debug("join not yet visible",
			"room", code, "attempt", attempt, "expected", expected, "observed", report.Occupancy)
	}
}

func (s *RoomService) getOrCreateRoom(code string) (*domain.Room, error) {
	room, err := s.rooms.GetRoom(code)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, apperrors.ErrRoomNotFound) {
		return nil, fmt.Errorf("looking up room %s: %w", code, err)
	}
	room = domain.NewRoom(code)
	if err := s.rooms.CreateRoom(room); err != nil {
		return nil, fmt.Errorf("creating room %s: %w", code, err)
	}
	s.log.Info("room created", "room", code)
	return room, nil
}

// EndRoom marks a room ENDED. The coordination logic never produces this
// transition on its own; it belongs to the operator surface.
func (s *RoomService) EndRoom(code string) error {
	return s.rooms.UpdateStatus(code, domain.StatusEnded)
}

// SweepIdle marks rooms ENDED when nothing happened in them for longer
// than the idle TTL. Activity is the latest message timestamp, falling
// back to the room's creation time for rooms that never got a message.
// Returns the codes of the rooms it ended.
func (s *RoomService) SweepIdle(idleTTL time.Duration, now time.Time) ([]string, error) {
	rooms, err := s.rooms.ListRooms()
	if err != nil {
		observability.StoreFailures.Inc()
		return nil, fmt.Errorf("listing rooms for sweep: %w", err)
	}

	var ended []string
	for _, room := range rooms {
		if room.Status == domain.StatusEnded {
			continue
		}
		if now.Sub(s.lastActivity(room)) < idleTTL {
			continue
		}
		if err := s.rooms.UpdateStatus(room.Code, domain.StatusEnded); err != nil {
			observability.StoreFailures.Inc()
			s.log.Warn("sweep could not end room", "room", room.Code, "err", err)
			continue
		}
		s.log.Info("idle room ended", "room", room.Code)
		ended = append(ended, room.Code)
	}
	return ended, nil
}

func (s *RoomService) lastActivity(room domain.Room) time.Time {
	messages, err := s.messages.ListByRoom(room.Code)
	if err != nil || len(messages) == 0 {
		return room.CreatedAt
	}
	return messages[len(messages)-1].CreatedAt
}

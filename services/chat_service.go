package services

import (
	apperrors "chat-bridge/errors"

	"chat-bridge/ai"
	"chat-bridge/contract"
	"chat-bridge/domain"
	"chat-bridge/moderation"
	"chat-bridge/observability"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
)

type IChatService interface {
	VisibleMessages(code, requesterID string) []domain.Message
	SendUserMessage(ctx context.Context, code, userID, text string) ([]domain.Message, error)
}

// ChatService owns the message read and write paths: the per-recipient
// visibility filter, and the send pipeline (moderation, persistence,
// generation, split-on-length).
type ChatService struct {
	rooms          contract.IRoomRepository
	messages       contract.IMessageRepository
	responder      contract.IResponder
	index          contract.ISearchIndex // optional
	moderator      *moderation.Moderator // optional
	log            *slog.Logger
	splitThreshold int
	splitDelay     time.Duration
	historyWindow  int
	reducedWindow  int
}

func NewChatService(
	rooms contract.IRoomRepository,
	messages contract.IMessageRepository,
	responder contract.IResponder,
	index contract.ISearchIndex,
	moderator *moderation.Moderator,
	log *slog.Logger,
	splitThreshold int,
	splitDelay time.Duration,
	historyWindow int,
	reducedWindow int,
) *ChatService {
	return &ChatService{
		rooms:          rooms,
		messages:       messages,
		responder:      responder,
		index:          index,
		moderator:      moderator,
		log:            log,
		splitThreshold: splitThreshold,
		splitDelay:     splitDelay,
		historyWindow:  historyWindow,
		reducedWindow:  reducedWindow,
	}
}

// VisibleMessages returns the subset of a room's history the requester
// may see, in ascending creation order. A failing store downgrades to an
// empty list; the poll loop will try again.
func (s *ChatService) VisibleMessages(code, requesterID string) []domain.Message {
	all, err := s.messages.ListByRoom(code)
	if err != nil {
		observability.StoreFailures.Inc()
		s.log.Error("message scan failed, returning empty view", "room", code, "err", err)
		return nil
	}
	return lo.Filter(all, func(m domain.Message, _ int) bool {
		return m.VisibleTo(requesterID)
	})
}

// SendUserMessage stores the user's submission and produces the reply
// addressed to that user. Replies over the length threshold are split
// into two sequential messages whose concatenation equals the original.
// The returned slice holds the stored reply messages.
func (s *ChatService) SendUserMessage(ctx context.Context, code, userID, text string) ([]domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ErrEmptyMessage
	}

	room, err := s.rooms.GetRoom(code)
	if err != nil {
		if errors.Is(err, apperrors.ErrRoomNotFound) {
			return nil, apperrors.ErrRoomNotFound
		}
		observability.StoreFailures.Inc()
		return nil, apperrors.ErrRoomNotFound
	}
	if room.Status == domain.StatusEnded {
		return nil, apperrors.ErrRoomEnded
	}
	if room.Occupancy() < 2 {
		return nil, apperrors.ErrRoomNotReady
	}

	member, ok := room.Member(userID)
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}

	if s.moderator != nil {
		text = s.moderator.Censor(text)
	}
	userMessage := domain.NewUserMessage(code, userID, text)
	if err := s.messages.Append(userMessage); err != nil {
		observability.StoreFailures.Inc()
		return nil, err
	}
	s.indexMessage(userMessage)

	reply := s.generateReply(ctx, code, room, member)

	return s.storeReply(ctx, code, userID, reply)
}

// generateReply builds the windowed history and calls the collaborator.
// A token-limit-shaped rejection gets one retry with the reduced window;
// any remaining failure falls back to the fixed reply so the
// conversation never stalls.
func (s *ChatService) generateReply(ctx context.Context, code string, room *domain.Room, member domain.Member) string {
	history, err := s.messages.ListByRoom(code)
	if err != nil {
		observability.StoreFailures.Inc()
		s.log.Error("history read failed, using fallback reply", "room", code, "err", err)
		observability.RepliesTotal.WithLabelValues("fallback").Inc()
		return ai.FallbackReply(member.Model)
	}

	otherRole := domain.Role("")
	if other, ok := room.OtherMember(member.UserID); ok {
		otherRole = other.AssignedRole
	}
	request := ai.HistoryRequest{
		Messages:    history,
		UserID:      member.UserID,
		CurrentRole: member.AssignedRole,
		OtherRole:   otherRole,
		Model:       member.Model,
		Window:      s.historyWindow,
	}

	reply, err := s.responder.Reply(ctx, ai.BuildTurns(request))
	if err != nil && ai.IsTokenLimit(err) {
		s.log.Warn("request too large, retrying with reduced window",
			"room", code, "window", s.reducedWindow, "err", err)
		request.Window = s.reducedWindow
		reply, err = s.responder.Reply(ctx, ai.BuildTurns(request))
		if err == nil {
			observability.RepliesTotal.WithLabelValues("reduced_window").Inc()
			return ai.ScrubTags(reply)
		}
	}
	if err != nil {
		s.log.Error("generation failed, using fallback reply", "room", code, "err", err)
		observability.RepliesTotal.WithLabelValues("fallback").Inc()
		return ai.FallbackReply(member.Model)
	}
	observability.RepliesTotal.WithLabelValues("generated").Inc()
	return ai.ScrubTags(reply)
}

// storeReply persists the reply, split in two when it exceeds the
// threshold. Both parts carry the same visibility target; the short
// delay between them keeps the parts readable as separate bubbles.
func (s *ChatService) storeReply(ctx context.Context, code, userID, reply string) ([]domain.Message, error) {
	runes := []rune(reply)
	if len(runes) <= s.splitThreshold {
		message := domain.NewReplyMessage(code, userID, reply)
		if err := s.messages.Append(message); err != nil {
			observability.StoreFailures.Inc()
			return nil, err
		}
		s.indexMessage(message)
		return []domain.Message{message}, nil
	}

	observability.ReplySplits.Inc()
	first := domain.NewReplyMessage(code, userID, string(runes[:s.splitThreshold]))
	if err := s.messages.Append(first); err != nil {
		observability.StoreFailures.Inc()
		return nil, err
	}
	s.indexMessage(first)

	select {
	case <-ctx.Done():
		return []domain.Message{first}, ctx.Err()
	case <-time.After(s.splitDelay):
	}

	second := domain.NewReplyMessage(code, userID, string(runes[s.splitThreshold:]))
	if err := s.messages.Append(second); err != nil {
		observability.StoreFailures.Inc()
		return []domain.Message{first}, err
	}
	s.indexMessage(second)
	return []domain.Message{first, second}, nil
}

func (s *ChatService) indexMessage(message domain.Message) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(message); err != nil {
		s.log.Warn("search indexing failed", "message", message.ID, "err", err)
	}
}

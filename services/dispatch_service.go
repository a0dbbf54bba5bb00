package services

import (
	apperrors "chat-bridge/errors"

	"chat-bridge/contract"
	"chat-bridge/domain"
	"chat-bridge/observability"
	"context"
	"errors"
	"log/slog"
)

// OpeningPrompt is the canonical system message broadcast once per room
// the moment both parties are present. Its exact content doubles as the
// deduplication key of the dispatch protocol, so it must never vary
// between dispatch attempts.
const OpeningPrompt = "I heard that you and your family have been in a disagreement over " +
	"phone usage lately. Could you tell me your side of it? What did the most recent " +
	"argument look like, and how did it make you feel? The more detail you can give " +
	"me, the better I can understand the situation."

// Dispatch outcome reasons, in protocol order.
const (
	ReasonAlreadyExists     = "already_exists"
	ReasonRoomNotFound      = "room_not_found"
	ReasonAlreadySent       = "already_sent"
	ReasonInsufficientUsers = "insufficient_users"
	ReasonSentByOther       = "already_sent_by_other"
	ReasonError             = "error"
)

// DispatchService sends the one-time opening broadcast. The store has no
// transactions and no compare-and-swap, so exactly-once cannot be won by
// atomicity: the protocol is flag-then-verify with content-based dedup as
// the authoritative backstop. Any number of concurrent callers may race
// through it; at most one canonical message is ever persisted.
type DispatchService struct {
	rooms     contract.IRoomRepository
	messages  contract.IMessageRepository
	log       *slog.Logger
	canonical string
}

func NewDispatchService(
	rooms contract.IRoomRepository,
	messages contract.IMessageRepository,
	log *slog.Logger,
	canonical string,
) *DispatchService {
	return &DispatchService{rooms: rooms, messages: messages, log: log, canonical: canonical}
}

// DispatchOnce runs the full protocol for one room. Each step
// short-circuits on a positive result; the order of the steps is the
// safety argument, do not reorder them.
func (s *DispatchService) DispatchOnce(ctx context.Context, code string) contract.DispatchResult {
	result := s.dispatchOnce(ctx, code)
	observability.DispatchAttempts.WithLabelValues(reasonLabel(result)).Inc()
	return result
}

func reasonLabel(r contract.DispatchResult) string {
	if r.Dispatched {
		return "dispatched"
	}
	return r.Reason
}

func (s *DispatchService) dispatchOnce(ctx context.Context, code string) contract.DispatchResult {
	// Step 1: content dedup. If the canonical message is already stored,
	// nothing else matters.
	found, err := s.messages.HasCanonical(code, s.canonical)
	if err != nil {
		return s.fail(code, "canonical pre-check failed", err)
	}
	if found {
		return contract.DispatchResult{Reason: ReasonAlreadyExists}
	}

	// Step 2: flag check on a fresh room read.
	room, err := s.rooms.GetRoom(code)
	if errors.Is(err, apperrors.ErrRoomNotFound) {
		return contract.DispatchResult{Reason: ReasonRoomNotFound}
	}
	if err != nil {
		return s.fail(code, "room read failed", err)
	}
	if room.BroadcastDispatched {
		return contract.DispatchResult{Reason: ReasonAlreadySent}
	}

	// Step 3: recomputed occupancy gate.
	if room.Occupancy() < 2 {
		return contract.DispatchResult{Reason: ReasonInsufficientUsers}
	}

	// Step 4: optimistic flag set. A single-document write, atomic in
	// isolation, but not a test-and-set against another step-4 writer:
	// the read above and this write are separate round trips.
	if err := s.rooms.SetBroadcastDispatched(code, true); err != nil {
		// The write may have been applied despite the error. Re-read
		// before deciding.
		recheck, readErr := s.rooms.GetRoom(code)
		if readErr == nil && recheck.BroadcastDispatched {
			if found, checkErr := s.messages.HasCanonical(code, s.canonical); checkErr == nil && found {
				return contract.DispatchResult{Reason: ReasonAlreadySent}
			}
		}
		// Flag state unknown or unset: reset so a later attempt can
		// retry, then report the failure.
		s.resetFlag(code)
		return s.fail(code, "flag write failed", err)
	}

	// Step 5: verify. If the message appeared between steps 1 and 4,
	// another caller won; the flag stays set, no rollback.
	found, err = s.messages.HasCanonical(code, s.canonical)
	if err != nil {
		return s.fail(code, "post-flag verify failed", err)
	}
	if found {
		return contract.DispatchResult{Reason: ReasonSentByOther}
	}

	// Step 6: one more check against the narrow window where two callers
	// both passed step 5 before either wrote the message.
	found, err = s.messages.HasCanonical(code, s.canonical)
	if err != nil {
		return s.fail(code, "double-check failed", err)
	}
	if found {
		return contract.DispatchResult{Reason: ReasonAlreadyExists}
	}

	// Step 7: persist the broadcast, then advance the status cache.
	message := domain.NewSystemMessage(code, s.canonical)
	if err := s.messages.Append(message); err != nil {
		s.resetFlag(code)
		return s.fail(code, "broadcast persist failed", err)
	}
	if err := s.rooms.UpdateStatus(code, domain.StatusReady); err != nil {
		// Cache only; the next status read repairs it.
		s.log.Warn("status write after dispatch failed", "room", code, "err", err)
	}
	s.log.Info("opening broadcast dispatched", "room", code, "message", message.ID)
	return contract.DispatchResult{Dispatched: true}
}

func (s *DispatchService) resetFlag(code string) {
	if err := s.rooms.SetBroadcastDispatched(code, false); err != nil {
		s.log.Warn("flag reset failed", "room", code, "err", err)
	}
}

func (s *DispatchService) fail(code, msg string, err error) contract.DispatchResult {
	observability.StoreFailures.Inc()
	s.log.Error(msg, "room", code, "err", err)
	return contract.DispatchResult{Reason: ReasonError}
}

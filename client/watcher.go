package client

import (
	"chat-bridge/contract"
	"chat-bridge/domain"
	"chat-bridge/observability"
	"context"
	"log/slog"
	"time"
)

// Snapshot is what one poll cycle observed about a room.
type Snapshot struct {
	Status    domain.Status
	Occupancy int
	Messages  int
}

// RoomWatcher polls a room through the gateway and reconciles the local
// timeline. When it observes the room leave WAITING it triggers the
// opening broadcast dispatch, at most once per process; the server-side
// dedup makes a duplicate trigger harmless, this guard just avoids
// pointless calls.
type RoomWatcher struct {
	gateway  contract.IRoomGateway
	log      *slog.Logger
	code     string
	userID   string
	interval time.Duration

	timeline *Timeline
	onChange func(Snapshot)

	last             Snapshot
	dispatchTried    bool
	dispatchInFlight bool
}

func NewRoomWatcher(
	gateway contract.IRoomGateway,
	log *slog.Logger,
	code string,
	userID string,
	interval time.Duration,
	onChange func(Snapshot),
) *RoomWatcher {
	return &RoomWatcher{
		gateway:  gateway,
		log:      log,
		code:     code,
		userID:   userID,
		interval: interval,
		timeline: NewTimeline(userID),
		onChange: onChange,
		last:     Snapshot{Status: domain.StatusWaiting},
	}
}

// Timeline exposes the reconciled local view.
func (w *RoomWatcher) Timeline() *Timeline {
	return w.timeline
}

// Run executes the poll loop until the context is cancelled. One failed
// cycle is logged and skipped; the next tick retries.
func (w *RoomWatcher) Run(ctx context.Context) error {
	w.log.Info("Starting room watcher", "room", w.code, "user", w.userID)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

func (w *RoomWatcher) cycle(ctx context.Context) {
	observability.PollCycles.Inc()

	report := w.gateway.Status(ctx, w.code)

	messages, err := w.gateway.VisibleMessages(ctx, w.code, w.userID)
	if err != nil {
		w.log.Warn("Poll cycle failed, keeping previous view", "room", w.code, "err", err)
		return
	}
	w.timeline.Merge(messages)

	current := Snapshot{
		Status:    report.Status,
		Occupancy: report.Occupancy,
		Messages:  w.timeline.Len(),
	}

	if w.last.Status == domain.StatusWaiting &&
		current.Status == domain.StatusReady && current.Occupancy >= 2 {
		w.triggerDispatch(ctx)
	}

	if current != w.last {
		w.last = current
		if w.onChange != nil {
			w.onChange(current)
		}
	}
}

// triggerDispatch fires the opening broadcast on the WAITING to READY edge.
// The in-flight guard stops a slow call from being doubled by the next
// tick; dispatchTried stops this process from ever asking twice.
func (w *RoomWatcher) triggerDispatch(ctx context.Context) {
	if w.dispatchTried || w.dispatchInFlight {
		return
	}
	w.dispatchInFlight = true
	defer func() { w.dispatchInFlight = false }()

	result := w.gateway.Dispatch(ctx, w.code)
	w.dispatchTried = true
	w.log.Info("Opening broadcast attempt",
		"room", w.code, "dispatched", result.Dispatched, "reason", result.Reason)
}
